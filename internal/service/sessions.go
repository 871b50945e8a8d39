package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"plate-dashboard/internal/config"
	"plate-dashboard/internal/view"
)

var ErrSessionLimit = errors.New("too many open dashboard pages")

type session struct {
	svc      *DashboardService
	streams  int
	lastSeen time.Time
}

// Sessions keeps one DashboardService per loaded page. Every page has its own
// state, section, view and charts; the clock and refresh timers are shared.
//
// A session lives while its page holds an event stream open. Once the last
// stream closes it is kept for dashboard.session_idle_timeout so a
// reconnecting page finds it again, then evicted.
type Sessions struct {
	repo    Repository
	metrics *Metrics
	cfg     config.DashboardConfig
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessions(
	repo Repository,
	metrics *Metrics,
	cfg config.DashboardConfig,
	log zerolog.Logger,
	now func() time.Time,
) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		repo:     repo,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
		now:      now,
		sessions: make(map[string]*session),
	}
}

// Create opens a session for a new page load.
func (m *Sessions) Create() (*DashboardService, error) {
	m.Sweep()

	id := uuid.NewString()
	v := view.New(view.NewBus())
	clock := NewClock(v, m.now)
	svc := NewDashboardService(id, m.repo, v, clock, m.metrics, m.cfg, m.log.With().Str("session", id).Logger())
	clock.Tick()

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		svc.Close()
		return nil, ErrSessionLimit
	}
	m.sessions[id] = &session{svc: svc, lastSeen: m.now()}
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	m.log.Debug().Str("session", id).Int("sessions", n).Msg("session opened")
	return svc, nil
}

// Get returns the session and marks it as used.
func (m *Sessions) Get(id string) (*DashboardService, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = m.now()
	return s.svc, true
}

// Attach registers an open event stream on the session. The returned func
// must be called when the stream ends.
func (m *Sessions) Attach(id string) (*DashboardService, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil, false
	}
	s.streams++
	s.lastSeen = m.now()

	var once sync.Once
	detach := func() {
		once.Do(func() {
			m.mu.Lock()
			s.streams--
			s.lastSeen = m.now()
			m.mu.Unlock()
		})
	}
	return s.svc, detach, true
}

func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions without an open stream that have been idle for longer
// than the idle timeout. It returns the number evicted.
func (m *Sessions) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var evicted []*DashboardService
	for id, s := range m.sessions {
		if s.streams == 0 && now.Sub(s.lastSeen) >= m.cfg.SessionIdleTimeout {
			evicted = append(evicted, s.svc)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if len(evicted) == 0 {
		return 0
	}
	for _, svc := range evicted {
		svc.Close()
		m.metrics.RecordSessionEvicted("idle")
		m.log.Debug().Str("session", svc.ID()).Msg("session evicted")
	}
	m.metrics.SetSessions(n)
	return len(evicted)
}

// Shutdown closes every session, ending all open event streams.
func (m *Sessions) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range all {
		s.svc.Close()
		m.metrics.RecordSessionEvicted("shutdown")
	}
	m.metrics.SetSessions(0)
}

func (m *Sessions) live() []*DashboardService {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*DashboardService, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.svc)
	}
	return out
}

// TickClocks writes the current time into every page.
func (m *Sessions) TickClocks() {
	for _, svc := range m.live() {
		svc.clock.Tick()
	}
}

// RefreshAll refreshes every session concurrently. Sessions whose dashboard
// section is not active skip the refresh themselves.
func (m *Sessions) RefreshAll(ctx context.Context) error {
	live := m.live()
	errs := make([]error, len(live))
	var wg conc.WaitGroup
	for i, svc := range live {
		wg.Go(func() {
			errs[i] = svc.Refresh(ctx)
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Run drives the shared clock, refresh and eviction timers until ctx is done.
// Call it once per process.
func (m *Sessions) Run(ctx context.Context) {
	clock := time.NewTicker(m.cfg.ClockInterval)
	defer clock.Stop()
	refresh := time.NewTicker(m.cfg.RefreshInterval)
	defer refresh.Stop()
	sweep := time.NewTicker(max(m.cfg.SessionIdleTimeout/2, time.Second))
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-clock.C:
			m.TickClocks()
		case <-refresh.C:
			_ = m.RefreshAll(ctx)
		case <-sweep.C:
			m.Sweep()
		}
	}
}
