package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"plate-dashboard/internal/chart"
	"plate-dashboard/internal/config"
	"plate-dashboard/internal/service"
)

var errUnknown = errors.New("not found")

const sessionKey = "dashboard"

type Handler struct {
	sessions *service.Sessions
	config   *config.Config
	log      zerolog.Logger
	actions  map[string]actionFunc
}

// actionFunc applies one user intent to the page's session. It runs to
// completion before the request is answered; view changes reach the page over
// the event stream.
type actionFunc func(ctx context.Context, c *gin.Context, svc *service.DashboardService) error

func NewHandler(
	sessions *service.Sessions,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	h := &Handler{
		sessions: sessions,
		config:   cfg,
		log:      log,
	}
	h.actions = map[string]actionFunc{
		"navigate":     h.navigate,
		"search":       h.search,
		"dates":        h.dates,
		"dedupe":       h.dedupe,
		"window":       h.window,
		"page":         h.page,
		"daily-period": h.dailyPeriod,
	}
	return h
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.index)
	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Every page load gets its own session; the page addresses it by id.
	page := r.Group("/ui/s/:session")
	page.Use(h.requireSession)
	{
		page.POST("/actions/:action", h.dispatch)
		page.GET("/events", h.events)
		page.GET("/charts/:slot", h.chartSVG)
	}
}

// index opens a fresh session and serves the page shell with its fragments.
// The page script then subscribes and selects the dashboard.
func (h *Handler) index(c *gin.Context) {
	svc, err := h.sessions.Create()
	if err != nil {
		h.handleError(c, err)
		return
	}

	data := shellData{
		Session:       svc.ID(),
		Snapshot:      svc.View().Snapshot(),
		Sections:      navItems(),
		TimeWindows:   h.config.Dashboard.TimeWindowOptions,
		DefaultWindow: h.config.Dashboard.DefaultTimeWindow,
		DailyPeriods:  h.config.Dashboard.DailyPeriodOptions,
		DailyDays:     h.config.Dashboard.DailyDays,
	}
	var buf bytes.Buffer
	if err := shell.Execute(&buf, data); err != nil {
		h.log.Error().Err(err).Msg("failed to render page shell")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) requireSession(c *gin.Context) {
	svc, ok := h.sessions.Get(c.Param("session"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse("session expired, reload the page"))
		return
	}
	c.Set(sessionKey, svc)
	c.Next()
}

func sessionOf(c *gin.Context) *service.DashboardService {
	return c.MustGet(sessionKey).(*service.DashboardService)
}

func (h *Handler) healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handler) dispatch(c *gin.Context) {
	name := c.Param("action")
	action, ok := h.actions[name]
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse(fmt.Sprintf("unknown action %q", name)))
		return
	}

	// Loads finish even if the page goes away mid-request.
	svc := sessionOf(c)
	ctx := context.WithoutCancel(c.Request.Context())
	if err := action(ctx, c, svc); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{
		"section": svc.ActiveSection(),
		"state":   stateResponse(svc.State()),
	}))
}

type navigateRequest struct {
	Section string `json:"section" binding:"required"`
}

type searchRequest struct {
	Search string `json:"search"`
}

type datesRequest struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

type dedupeRequest struct {
	Enabled    bool `json:"enabled"`
	TimeWindow *int `json:"time_window"`
}

type windowRequest struct {
	TimeWindow *int `json:"time_window" binding:"required"`
}

type pageRequest struct {
	Page int `json:"page" binding:"required"`
}

type dailyPeriodRequest struct {
	Days int `json:"days" binding:"required"`
}

func (h *Handler) navigate(ctx context.Context, c *gin.Context, svc *service.DashboardService) error {
	var req navigateRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	section, ok := service.ParseSection(strings.TrimSpace(req.Section))
	if !ok {
		return fmt.Errorf("%w: section %q", errUnknown, req.Section)
	}
	svc.Navigate(ctx, section)
	return nil
}

func (h *Handler) search(ctx context.Context, c *gin.Context, svc *service.DashboardService) error {
	var req searchRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	return svc.SetSearch(ctx, req.Search)
}

func (h *Handler) dates(ctx context.Context, c *gin.Context, svc *service.DashboardService) error {
	var req datesRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	return svc.SetDateRange(ctx, req.DateFrom, req.DateTo)
}

func (h *Handler) dedupe(ctx context.Context, c *gin.Context, svc *service.DashboardService) error {
	var req dedupeRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	window := h.config.Dashboard.DefaultTimeWindow
	if req.TimeWindow != nil {
		window = *req.TimeWindow
	}
	return svc.SetDeduplication(ctx, req.Enabled, window)
}

func (h *Handler) window(ctx context.Context, c *gin.Context, svc *service.DashboardService) error {
	var req windowRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	return svc.SetTimeWindow(ctx, *req.TimeWindow)
}

func (h *Handler) page(ctx context.Context, c *gin.Context, svc *service.DashboardService) error {
	var req pageRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	return svc.SetPage(ctx, req.Page)
}

func (h *Handler) dailyPeriod(ctx context.Context, c *gin.Context, svc *service.DashboardService) error {
	var req dailyPeriodRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	return svc.SetDailyPeriod(ctx, req.Days)
}

// events streams the page's view updates as server-sent events until the
// client leaves or the session is closed.
func (h *Handler) events(c *gin.Context) {
	svc, detach, ok := h.sessions.Attach(c.Param("session"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("session expired, reload the page"))
		return
	}
	defer detach()

	bus := svc.View().Bus()
	updates := bus.Subscribe()
	defer bus.Unsubscribe(updates)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	_, _ = io.WriteString(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case u, ok := <-updates:
			if !ok {
				return false
			}
			payload, err := json.Marshal(u)
			if err != nil {
				h.log.Warn().Err(err).Str("kind", string(u.Kind)).Msg("failed to encode update")
				return true
			}
			c.SSEvent(string(u.Kind), string(payload))
			return true
		}
	})
}

func (h *Handler) chartSVG(c *gin.Context) {
	slot, ok := chart.ParseSlot(c.Param("slot"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("unknown chart"))
		return
	}
	inst, ok := sessionOf(c).Charts().Get(slot)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("chart not rendered"))
		return
	}
	svg, ok := inst.SVG()
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("chart not rendered"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/svg+xml", svg)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, errUnknown):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrSessionLimit):
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func bindJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return nil
}

func stateResponse(s service.State) gin.H {
	return gin.H{
		"page":        s.Page,
		"search":      s.Search,
		"date_from":   s.DateFrom,
		"date_to":     s.DateTo,
		"deduplicate": s.Deduplicate,
		"time_window": s.TimeWindow,
		"daily_days":  s.DailyDays,
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
