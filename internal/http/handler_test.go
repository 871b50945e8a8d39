package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"plate-dashboard/internal/config"
	"plate-dashboard/internal/domain/anpr"
	"plate-dashboard/internal/service"
	"plate-dashboard/internal/view"
)

type stubRepo struct {
	mu      sync.Mutex
	queries []anpr.PlateQuery
}

func (s *stubRepo) Overview(context.Context) (anpr.OverviewStats, error) {
	return anpr.OverviewStats{TotalReads: 10, TodayReads: 2, UniquePlates: 4, AvgConfidence: 0.9}, nil
}

func (s *stubRepo) DailyCounts(context.Context, int) ([]anpr.DailyCount, error) {
	return []anpr.DailyCount{{Date: "2024-05-01", Count: 3}, {Date: "2024-05-02", Count: 7}}, nil
}

func (s *stubRepo) HourlyCounts(context.Context, string) ([]anpr.HourlyCount, error) {
	return []anpr.HourlyCount{{Hour: 9, Count: 4}}, nil
}

func (s *stubRepo) TopPlates(context.Context, int, int) ([]anpr.TopPlate, error) {
	return nil, nil
}

func (s *stubRepo) SearchPlates(_ context.Context, q anpr.PlateQuery) (anpr.PageResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	return anpr.PageResult{Page: q.Page, TotalPages: 1, Total: 1, Data: []anpr.PlateRead{{ID: 1, LicenseNumber: "ABC1234", Confidence: 0.9}}}, nil
}

func (s *stubRepo) searches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{Addr: ":0", CORSAllowOrigins: []string{"*"}},
		Dashboard: config.DashboardConfig{
			RefreshInterval:    time.Minute,
			ClockInterval:      time.Second,
			PerPage:            50,
			DailyDays:          30,
			DailyPeriodOptions: []int{7, 30, 90},
			TopPlatesLimit:     10,
			TopPlatesDays:      7,
			DefaultTimeWindow:  60,
			TimeWindowOptions:  []int{30, 60, 300},
			SessionIdleTimeout: time.Minute,
			MaxSessions:        4,
		},
	}
}

func setup(t *testing.T) (*gin.Engine, *service.Sessions, *stubRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &stubRepo{}
	cfg := testConfig()
	sessions := service.NewSessions(repo, nil, cfg.Dashboard, zerolog.Nop(), nil)
	t.Cleanup(sessions.Shutdown)

	r := gin.New()
	r.Use(CORS(cfg.HTTP.CORSAllowOrigins))
	NewHandler(sessions, cfg, zerolog.Nop()).Register(r)
	return r, sessions, repo
}

var sessionAttr = regexp.MustCompile(`data-session="([^"]+)"`)

// openPage loads the shell and returns the session it was given.
func openPage(t *testing.T, r http.Handler, sessions *service.Sessions) *service.DashboardService {
	t.Helper()
	w := get(r, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", w.Code)
	}
	m := sessionAttr.FindStringSubmatch(w.Body.String())
	if m == nil {
		t.Fatal("shell has no session id")
	}
	svc, ok := sessions.Get(m[1])
	if !ok {
		t.Fatalf("session %q not registered", m[1])
	}
	return svc
}

func postAction(r http.Handler, svc *service.DashboardService, action, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ui/s/"+svc.ID()+"/actions/"+action, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestIndex_RendersShellForNewSession(t *testing.T) {
	r, sessions, _ := setup(t)

	w := get(r, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`id="section-dashboard"`, `id="plates-table"`, `data-action="navigate"`, `base + "/events"`, `data-session="`} {
		if !strings.Contains(body, want) {
			t.Errorf("shell missing %s", want)
		}
	}
	if !strings.Contains(body, `id="section-plates" hidden`) {
		t.Error("inactive sections should start hidden")
	}
	if sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", sessions.Len())
	}
}

func TestIndex_SecondPageLeavesFirstAlone(t *testing.T) {
	r, sessions, repo := setup(t)

	a := openPage(t, r, sessions)
	for _, step := range []struct{ action, body string }{
		{"navigate", `{"section":"plates"}`},
		{"search", `{"search":"ABC"}`},
		{"dedupe", `{"enabled":true,"time_window":300}`},
	} {
		if w := postAction(r, a, step.action, step.body); w.Code != http.StatusOK {
			t.Fatalf("%s status = %d body = %s", step.action, w.Code, w.Body)
		}
	}
	searches := repo.searches()
	tableBefore := a.View().Snapshot().Fragment(view.TargetPlatesTable)

	b := openPage(t, r, sessions)
	if b.ID() == a.ID() {
		t.Fatal("second page reused the first page's session")
	}
	if w := postAction(r, b, "navigate", `{"section":"dashboard"}`); w.Code != http.StatusOK {
		t.Fatalf("navigate status = %d", w.Code)
	}

	st := a.State()
	if st.Search != "ABC" || !st.Deduplicate || st.TimeWindow != 300 {
		t.Errorf("first page state = %+v", st)
	}
	if a.ActiveSection() != service.SectionPlates {
		t.Errorf("first page section = %s", a.ActiveSection())
	}
	snap := a.View().Snapshot()
	if !snap.IsVisible(service.SectionPlates.ContentTarget()) || snap.IsVisible(service.SectionDashboard.ContentTarget()) {
		t.Error("first page's section visibility changed")
	}
	if snap.Fragment(view.TargetPlatesTable) != tableBefore {
		t.Error("first page's plate table changed")
	}
	if repo.searches() != searches {
		t.Errorf("second page reloaded plates: %d searches", repo.searches()-searches)
	}
	if b.State().Search != "" || b.State().Deduplicate {
		t.Errorf("second page state = %+v", b.State())
	}
}

func TestIndex_SessionLimit(t *testing.T) {
	r, sessions, _ := setup(t)
	for range testConfig().Dashboard.MaxSessions {
		openPage(t, r, sessions)
	}
	if w := get(r, "/"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	r, _, _ := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/ui/s/missing/actions/navigate", strings.NewReader(`{"section":"plates"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "session expired") {
		t.Errorf("action = %d %s", w.Code, w.Body)
	}
	for _, path := range []string{"/ui/s/missing/events", "/ui/s/missing/charts/daily"} {
		if w := get(r, path); w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}

func TestActions_Navigate(t *testing.T) {
	r, sessions, repo := setup(t)
	svc := openPage(t, r, sessions)

	w := postAction(r, svc, "navigate", `{"section":"plates"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var resp struct {
		Data struct {
			Section string `json:"section"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Section != "plates" || svc.ActiveSection() != service.SectionPlates {
		t.Errorf("section = %q", resp.Data.Section)
	}
	if repo.searches() != 1 {
		t.Errorf("searches = %d", repo.searches())
	}
}

func TestActions_Errors(t *testing.T) {
	r, sessions, repo := setup(t)
	svc := openPage(t, r, sessions)

	tests := []struct {
		action, body string
		want         int
	}{
		{"explode", `{}`, http.StatusNotFound},
		{"navigate", `{"section":"settings"}`, http.StatusNotFound},
		{"navigate", `{}`, http.StatusBadRequest},
		{"page", `{"page":0}`, http.StatusBadRequest},
		{"page", `{"page":-2}`, http.StatusBadRequest},
		{"dates", `{"date_from":"01/05/2024"}`, http.StatusBadRequest},
		{"window", `{}`, http.StatusBadRequest},
		{"search", `not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := postAction(r, svc, tt.action, tt.body)
		if w.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.action, tt.body, w.Code, tt.want)
		}
		if !strings.Contains(w.Body.String(), `"error"`) {
			t.Errorf("%s: missing error body", tt.action)
		}
	}
	if repo.searches() != 0 {
		t.Errorf("rejected actions issued %d searches", repo.searches())
	}
}

func TestActions_DedupeDefaultsWindow(t *testing.T) {
	r, sessions, _ := setup(t)
	svc := openPage(t, r, sessions)

	if w := postAction(r, svc, "dedupe", `{"enabled":true}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if st := svc.State(); !st.Deduplicate || st.TimeWindow != 60 {
		t.Errorf("state = %+v", st)
	}
	if w := postAction(r, svc, "window", `{"time_window":300}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if st := svc.State(); st.TimeWindow != 300 {
		t.Errorf("TimeWindow = %d", st.TimeWindow)
	}
}

func TestChartSVG(t *testing.T) {
	r, sessions, _ := setup(t)
	svc := openPage(t, r, sessions)
	charts := "/ui/s/" + svc.ID() + "/charts/"

	if w := get(r, charts+"daily"); w.Code != http.StatusNotFound {
		t.Fatalf("before load status = %d", w.Code)
	}
	if w := get(r, charts+"weekly"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown slot status = %d", w.Code)
	}

	postAction(r, svc, "navigate", `{"section":"dashboard"}`)

	for _, slot := range []string{"daily", "hourly"} {
		w := get(r, charts+slot)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", slot, w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("%s content type = %q", slot, ct)
		}
		if !bytes.Contains(w.Body.Bytes(), []byte("<svg")) {
			t.Errorf("%s body is not svg", slot)
		}
	}

	other := openPage(t, r, sessions)
	if w := get(r, "/ui/s/"+other.ID()+"/charts/daily"); w.Code != http.StatusNotFound {
		t.Errorf("other page served this page's chart: %d", w.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	r, _, _ := setup(t)
	if w := get(r, "/healthz"); w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", w.Code, w.Body)
	}
	if w := get(r, "/metrics"); w.Code != http.StatusOK {
		t.Errorf("metrics = %d", w.Code)
	}
}

func TestEvents_StreamsUpdates(t *testing.T) {
	r, sessions, _ := setup(t)
	svc := openPage(t, r, sessions)
	other := openPage(t, r, sessions)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/ui/s/"+svc.ID()+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	if !lines.Scan() || lines.Text() != ": connected" {
		t.Fatalf("first line = %q", lines.Text())
	}

	other.View().SetHTML(view.TargetClock, "99:99")
	svc.View().SetHTML(view.TargetClock, "12:00")

	var event, data string
	for lines.Scan() {
		line := lines.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if event != "" && data != "" {
			break
		}
	}
	if event != "html" {
		t.Fatalf("event = %q", event)
	}
	var u view.Update
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		t.Fatalf("data %q: %v", data, err)
	}
	if u.Target != view.TargetClock || u.HTML != "12:00" {
		t.Errorf("update = %+v", u)
	}
}
