package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plate-dashboard/internal/chart"
	"plate-dashboard/internal/view"
)

// plateTargets are the page targets filled by the plate loader.
var plateTargets = []string{
	view.TargetPlatesTable,
	view.TargetPlatesCount,
	view.TargetPagination,
	view.TargetDedupeBanner,
}

// run executes one loader. Every failure, panics included, ends here: it is
// logged, counted and shown as a single toast, and the target keeps whatever
// it showed before. The returned error is for the caller's bookkeeping only.
func (s *DashboardService) run(ctx context.Context, res Resource, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLoaderPanic, r)
		}
		s.metrics.RecordLoad(res, outcome(err), time.Since(start))

		switch {
		case err == nil:
		case errors.Is(err, errStale):
			s.metrics.RecordStale(res)
			s.log.Debug().Str("resource", string(res)).Msg("discarded stale response")
			err = nil
		default:
			s.log.Warn().
				Err(err).
				Str("resource", string(res)).
				Dur("elapsed", time.Since(start)).
				Msg("load failed")
			s.view.Notify(view.ToastError, fmt.Sprintf("Failed to load %s: %s", res.Label(), failureReason(err)))
			err = &LoadError{Resource: res, Err: err}
		}
	}()
	return fn(ctx)
}

// begin hands out the generation of a new request for res.
func (s *DashboardService) begin(res Resource) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[res]++
	return s.generations[res]
}

// superseded must be called with s.mu held.
func (s *DashboardService) superseded(res Resource, gen uint64) bool {
	return s.generations[res] != gen
}

func (s *DashboardService) loadOverview(ctx context.Context) error {
	gen := s.begin(ResourceOverview)
	return s.run(ctx, ResourceOverview, func(ctx context.Context) error {
		stats, err := s.repo.Overview(ctx)
		if err != nil {
			return err
		}
		html, err := view.Render("overview", stats)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.superseded(ResourceOverview, gen) {
			return errStale
		}
		s.view.SetHTML(view.TargetOverview, html)
		return nil
	})
}

func (s *DashboardService) loadTopPlates(ctx context.Context) error {
	gen := s.begin(ResourceTopPlates)
	return s.run(ctx, ResourceTopPlates, func(ctx context.Context) error {
		plates, err := s.repo.TopPlates(ctx, s.cfg.TopPlatesLimit, s.cfg.TopPlatesDays)
		if err != nil {
			return err
		}
		html, err := view.Render("top-plates", topPlateRows(plates))
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.superseded(ResourceTopPlates, gen) {
			return errStale
		}
		s.view.SetHTML(view.TargetTopPlates, html)
		return nil
	})
}

func (s *DashboardService) loadDaily(ctx context.Context) error {
	gen := s.begin(ResourceDaily)
	s.mu.Lock()
	days := s.state.DailyDays
	s.mu.Unlock()

	return s.run(ctx, ResourceDaily, func(ctx context.Context) error {
		rows, err := s.repo.DailyCounts(ctx, days)
		if err != nil {
			return err
		}
		spec, err := chart.NewDailySpec(rows)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.superseded(ResourceDaily, gen) || s.state.DailyDays != days {
			return errStale
		}
		inst, err := s.charts.Set(chart.SlotDaily, spec)
		if err != nil {
			return err
		}
		html, err := view.Render("chart", chartImage{
			Session: s.id,
			Slot:    string(inst.Slot),
			Version: inst.Version,
			Alt:     fmt.Sprintf("Reads per day, last %d days", days),
		})
		if err != nil {
			return err
		}
		s.view.SetHTML(view.TargetDailyChart, html)
		return nil
	})
}

func (s *DashboardService) loadHourly(ctx context.Context) error {
	gen := s.begin(ResourceHourly)
	date := s.clock.Today()

	return s.run(ctx, ResourceHourly, func(ctx context.Context) error {
		rows, err := s.repo.HourlyCounts(ctx, date)
		if err != nil {
			return err
		}
		spec, err := chart.NewHourlySpec(rows)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.superseded(ResourceHourly, gen) {
			return errStale
		}
		inst, err := s.charts.Set(chart.SlotHourly, spec)
		if err != nil {
			return err
		}
		html, err := view.Render("chart", chartImage{
			Session: s.id,
			Slot:    string(inst.Slot),
			Version: inst.Version,
			Alt:     fmt.Sprintf("Reads per hour on %s", date),
		})
		if err != nil {
			return err
		}
		s.view.SetHTML(view.TargetHourlyChart, html)
		return nil
	})
}

// loadPlates fetches the plate table for the query current at call time. The
// response is applied only if the state still produces the same query and no
// Reset happened in between.
func (s *DashboardService) loadPlates(ctx context.Context) error {
	s.mu.Lock()
	q := s.state.PlateQuery(s.cfg.PerPage)
	gen := s.generations[ResourcePlates]
	s.platesInFlight++
	s.view.SetVisible(view.TargetLoading, true)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.platesInFlight--
		if s.platesInFlight == 0 {
			s.view.SetVisible(view.TargetLoading, false)
		}
		s.mu.Unlock()
	}()

	return s.run(ctx, ResourcePlates, func(ctx context.Context) error {
		res, err := s.repo.SearchPlates(ctx, q)
		if err != nil {
			return err
		}

		page := res.Page
		if page < 1 {
			page = q.Page
		}
		table, err := view.Render("plates-table", plateRows(res.Data))
		if err != nil {
			return err
		}
		count, err := view.Render("plates-count", res.Total)
		if err != nil {
			return err
		}
		pager, err := view.Render("pagination", PlanPagination(page, res.TotalPages))
		if err != nil {
			return err
		}
		banner := view.Text("")
		if res.Deduplicated {
			if banner, err = view.Render("dedupe-banner", dedupeSummary(res, q.TimeWindow)); err != nil {
				return err
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.superseded(ResourcePlates, gen) || s.state.PlateQuery(s.cfg.PerPage) != q {
			return errStale
		}
		s.view.SetHTML(view.TargetPlatesTable, table)
		s.view.SetHTML(view.TargetPlatesCount, count)
		s.view.SetHTML(view.TargetPagination, pager)
		s.view.SetHTML(view.TargetDedupeBanner, banner)
		s.view.SetVisible(view.TargetDedupeBanner, res.Deduplicated)
		return nil
	})
}

func (s *DashboardService) loadAnalytics(ctx context.Context) error {
	return s.run(ctx, ResourceAnalytics, func(ctx context.Context) error {
		html, err := view.Render("analytics", nil)
		if err != nil {
			return err
		}
		s.view.SetHTML(view.TargetAnalytics, html)
		return nil
	})
}
