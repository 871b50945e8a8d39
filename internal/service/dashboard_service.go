package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"plate-dashboard/internal/chart"
	"plate-dashboard/internal/config"
	"plate-dashboard/internal/domain/anpr"
	"plate-dashboard/internal/view"
)

// Repository is the read-only aggregation API the dashboard displays.
type Repository interface {
	Overview(ctx context.Context) (anpr.OverviewStats, error)
	DailyCounts(ctx context.Context, days int) ([]anpr.DailyCount, error)
	HourlyCounts(ctx context.Context, date string) ([]anpr.HourlyCount, error)
	TopPlates(ctx context.Context, limit, days int) ([]anpr.TopPlate, error)
	SearchPlates(ctx context.Context, q anpr.PlateQuery) (anpr.PageResult, error)
}

// DashboardService owns the state of one dashboard page and coordinates every
// load of remote data into that page's view. Sessions creates one per page
// load; nothing in it is shared with other pages.
type DashboardService struct {
	id      string
	repo    Repository
	view    *view.View
	charts  *chart.Registry
	router  *Router
	clock   *Clock
	metrics *Metrics
	cfg     config.DashboardConfig
	log     zerolog.Logger

	mu             sync.Mutex
	state          State
	generations    map[Resource]uint64
	platesInFlight int
}

func NewDashboardService(
	id string,
	repo Repository,
	v *view.View,
	clock *Clock,
	metrics *Metrics,
	cfg config.DashboardConfig,
	log zerolog.Logger,
) *DashboardService {
	s := &DashboardService{
		id:          id,
		repo:        repo,
		view:        v,
		clock:       clock,
		metrics:     metrics,
		cfg:         cfg,
		log:         log,
		state:       newState(cfg.DailyDays),
		generations: make(map[Resource]uint64),
	}
	// The registry calls the observer under its own lock, so prev needs none.
	prev := 0
	s.charts = chart.NewRegistry(func(live int) {
		metrics.AddLiveCharts(live - prev)
		prev = live
	})

	s.router = NewRouter(v)
	s.router.Handle(SectionDashboard, func(ctx context.Context) { _ = s.FullLoad(ctx) })
	s.router.Handle(SectionPlates, func(ctx context.Context) { _ = s.loadPlates(ctx) })
	s.router.Handle(SectionAnalytics, func(ctx context.Context) { _ = s.loadAnalytics(ctx) })

	s.Reset()
	return s
}

// ID identifies the page session in URLs.
func (s *DashboardService) ID() string { return s.id }

func (s *DashboardService) Charts() *chart.Registry { return s.charts }

func (s *DashboardService) View() *view.View { return s.view }

func (s *DashboardService) ActiveSection() Section { return s.router.Active() }

// State returns a copy of the current parameters.
func (s *DashboardService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns to the startup state: default filters, dashboard selected and
// no plate results. Nothing is loaded until the page navigates.
func (s *DashboardService) Reset() {
	s.mu.Lock()
	s.state = newState(s.cfg.DailyDays)
	s.generations[ResourcePlates]++
	for _, target := range plateTargets {
		s.view.SetHTML(target, "")
	}
	s.mu.Unlock()

	s.view.SetVisible(view.TargetWindowControl, false)
	s.view.SetVisible(view.TargetDedupeBanner, false)
	s.view.SetVisible(view.TargetLoading, false)
	s.router.activate(SectionDashboard)
}

// Close releases the charts and ends the page's event streams.
func (s *DashboardService) Close() {
	for _, slot := range chart.Slots {
		s.charts.Release(slot)
	}
	s.view.Bus().Shutdown()
}

// Navigate shows a section and loads its data.
func (s *DashboardService) Navigate(ctx context.Context, section Section) {
	s.router.Show(ctx, section)
}

func (s *DashboardService) SetSearch(ctx context.Context, term string) error {
	s.mu.Lock()
	s.state.Search = strings.TrimSpace(term)
	s.state.Page = 1
	s.mu.Unlock()

	_ = s.loadPlates(ctx)
	return nil
}

// SetDateRange filters the plate table by day. Either bound may be empty.
func (s *DashboardService) SetDateRange(ctx context.Context, from, to string) error {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, d)
		}
	}

	s.mu.Lock()
	s.state.DateFrom = from
	s.state.DateTo = to
	s.state.Page = 1
	s.mu.Unlock()

	_ = s.loadPlates(ctx)
	return nil
}

// SetDeduplication switches server-side grouping. Disabling it hides the
// window control and drops the window so it cannot leak into a later query.
func (s *DashboardService) SetDeduplication(ctx context.Context, enabled bool, window int) error {
	s.mu.Lock()
	s.state.Deduplicate = enabled
	if enabled {
		s.state.TimeWindow = window
	} else {
		s.state.TimeWindow = 0
	}
	s.state.Page = 1
	s.view.SetVisible(view.TargetWindowControl, enabled)
	s.mu.Unlock()

	_ = s.loadPlates(ctx)
	return nil
}

// SetTimeWindow changes the grouping window. It only reloads while
// deduplication is on; otherwise the value is ignored.
func (s *DashboardService) SetTimeWindow(ctx context.Context, window int) error {
	s.mu.Lock()
	if !s.state.Deduplicate {
		s.mu.Unlock()
		return nil
	}
	s.state.TimeWindow = window
	s.state.Page = 1
	s.mu.Unlock()

	_ = s.loadPlates(ctx)
	return nil
}

func (s *DashboardService) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidInput)
	}
	s.mu.Lock()
	s.state.Page = page
	s.mu.Unlock()

	_ = s.loadPlates(ctx)
	return nil
}

// SetDailyPeriod changes the range of the daily chart and reloads only it.
func (s *DashboardService) SetDailyPeriod(ctx context.Context, days int) error {
	if days < 1 {
		return fmt.Errorf("%w: days must be >= 1", ErrInvalidInput)
	}
	s.mu.Lock()
	s.state.DailyDays = days
	s.mu.Unlock()

	_ = s.loadDaily(ctx)
	return nil
}

// FullLoad fetches every dashboard resource concurrently and waits for all
// of them. A failing resource is reported on its own and never stops the rest.
func (s *DashboardService) FullLoad(ctx context.Context) error {
	return s.cycle(ctx, "full", s.loadOverview, s.loadDaily, s.loadHourly, s.loadTopPlates)
}

// Refresh updates the counters and the top plates table, leaving the charts
// alone. It does nothing unless the dashboard is the active section.
func (s *DashboardService) Refresh(ctx context.Context) error {
	if s.router.Active() != SectionDashboard {
		return nil
	}
	return s.cycle(ctx, "refresh", s.loadOverview, s.loadTopPlates)
}

func (s *DashboardService) cycle(ctx context.Context, kind string, loaders ...func(context.Context) error) error {
	log := s.log.With().Str("cycle", kind).Str("cycle_id", uuid.NewString()).Logger()
	start := time.Now()
	s.metrics.RecordCycle(kind)

	errs := make([]error, len(loaders))
	var wg conc.WaitGroup
	for i, load := range loaders {
		wg.Go(func() {
			errs[i] = load(ctx)
		})
	}
	wg.Wait()

	err := errors.Join(errs...)
	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}
	log.Debug().
		Int("loaders", len(loaders)).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("load cycle finished")
	return err
}
