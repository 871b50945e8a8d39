package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSessions(repo Repository) (*Sessions, *manualClock) {
	clock := &manualClock{now: time.Date(2024, 5, 2, 14, 30, 0, 0, time.Local)}
	return NewSessions(repo, nil, testConfig(), zerolog.Nop(), clock.Now), clock
}

func TestSessions_PagesAreIndependent(t *testing.T) {
	repo := newFakeRepo()
	sessions, _ := newTestSessions(repo)
	ctx := context.Background()

	a, err := sessions.Create()
	if err != nil {
		t.Fatal(err)
	}
	a.Navigate(ctx, SectionPlates)
	_ = a.SetSearch(ctx, "ABC")
	_ = a.SetDeduplication(ctx, true, 300)

	b, err := sessions.Create()
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == b.ID() {
		t.Fatal("sessions share an id")
	}
	b.Navigate(ctx, SectionDashboard)

	st := a.State()
	if st.Search != "ABC" || !st.Deduplicate || st.TimeWindow != 300 {
		t.Errorf("first page lost its filters: %+v", st)
	}
	if a.ActiveSection() != SectionPlates {
		t.Errorf("first page section = %s", a.ActiveSection())
	}
	if !a.View().Snapshot().IsVisible(SectionPlates.ContentTarget()) {
		t.Error("first page's plates section was hidden by the second page")
	}
	if b.State().Search != "" || b.View().Snapshot().Fragment("plates-table") != "" {
		t.Error("second page sees the first page's plate results")
	}
	if a.Charts() == b.Charts() {
		t.Error("pages share a chart registry")
	}
}

func TestSessions_GetAndLimit(t *testing.T) {
	sessions, _ := newTestSessions(newFakeRepo())

	a, _ := sessions.Create()
	if got, ok := sessions.Get(a.ID()); !ok || got != a {
		t.Fatal("Get() did not return the created session")
	}
	if _, ok := sessions.Get("unknown"); ok {
		t.Error("Get() found an unknown session")
	}

	_, _ = sessions.Create()
	if _, err := sessions.Create(); !errors.Is(err, ErrSessionLimit) {
		t.Errorf("third Create() error = %v, want ErrSessionLimit", err)
	}
	if sessions.Len() != 2 {
		t.Errorf("Len() = %d, want 2", sessions.Len())
	}
}

func TestSessions_EvictsIdleAfterStreamCloses(t *testing.T) {
	sessions, clock := newTestSessions(newFakeRepo())

	idle, _ := sessions.Create()
	streaming, _ := sessions.Create()
	_, detach, ok := sessions.Attach(streaming.ID())
	if !ok {
		t.Fatal("Attach() failed")
	}
	updates := streaming.View().Bus().Subscribe()

	clock.Advance(2 * time.Minute)
	if n := sessions.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, ok := sessions.Get(idle.ID()); ok {
		t.Error("idle session without a stream was kept")
	}
	if _, ok := sessions.Get(streaming.ID()); !ok {
		t.Fatal("session with an open stream was evicted")
	}

	detach()
	detach()
	clock.Advance(30 * time.Second)
	if n := sessions.Sweep(); n != 0 {
		t.Fatalf("session evicted before the idle timeout: %d", n)
	}
	clock.Advance(time.Minute)
	if n := sessions.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	for range updates {
	}
	if streaming.Charts().Live() != 0 {
		t.Error("evicted session kept its charts")
	}
	if _, _, ok := sessions.Attach(streaming.ID()); ok {
		t.Error("Attach() succeeded on an evicted session")
	}
}

func TestSessions_RefreshAllOnlyDashboardPages(t *testing.T) {
	repo := newFakeRepo()
	sessions, _ := newTestSessions(repo)
	ctx := context.Background()

	onDashboard, _ := sessions.Create()
	onPlates, _ := sessions.Create()
	onDashboard.Navigate(ctx, SectionDashboard)
	onPlates.Navigate(ctx, SectionPlates)
	before := repo.count("overview")

	if err := sessions.RefreshAll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := repo.count("overview") - before; got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}
}

func TestSessions_TickClocks(t *testing.T) {
	sessions, clock := newTestSessions(newFakeRepo())
	a, _ := sessions.Create()
	b, _ := sessions.Create()

	clock.Advance(5 * time.Second)
	sessions.TickClocks()
	for _, svc := range []*DashboardService{a, b} {
		if got := svc.View().Snapshot().Fragment("clock"); got != "02/05/2024 14:30:05" {
			t.Errorf("clock = %q", got)
		}
	}
}

func TestSessions_Shutdown(t *testing.T) {
	sessions, _ := newTestSessions(newFakeRepo())
	a, _ := sessions.Create()
	updates := a.View().Bus().Subscribe()

	sessions.Shutdown()
	if sessions.Len() != 0 {
		t.Errorf("Len() = %d after shutdown", sessions.Len())
	}
	select {
	case _, ok := <-updates:
		if ok {
			for range updates {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("stream not closed by shutdown")
	}
}
