// Package view holds the rendered state of the dashboard page: HTML fragments
// per target, visibility and active flags, and toast notifications. Every
// change is applied in order and pushed to connected pages over the Bus.
package view

import (
	"html/template"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Page targets. Each is the id of an element in the page shell.
const (
	TargetClock         = "clock"
	TargetOverview      = "overview-stats"
	TargetTopPlates     = "top-plates"
	TargetDailyChart    = "daily-chart"
	TargetHourlyChart   = "hourly-chart"
	TargetPlatesTable   = "plates-table"
	TargetPlatesCount   = "plates-count"
	TargetPagination    = "plates-pagination"
	TargetDedupeBanner  = "dedupe-banner"
	TargetLoading       = "plates-loading"
	TargetWindowControl = "time-window-control"
	TargetAnalytics     = "analytics-content"
)

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

type Toast struct {
	ID      string     `json:"id"`
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

const recentToasts = 20

// Snapshot is a consistent copy of the page state.
type Snapshot struct {
	Seq       uint64
	Fragments map[string]template.HTML
	Visible   map[string]bool
	Active    map[string]bool
	Toasts    []Toast
}

// Fragment returns the HTML for target, or "" when nothing was rendered.
func (s Snapshot) Fragment(target string) template.HTML {
	return s.Fragments[target]
}

// IsVisible reports the target's visibility; targets never toggled are visible.
func (s Snapshot) IsVisible(target string) bool {
	v, ok := s.Visible[target]
	return !ok || v
}

func (s Snapshot) IsActive(target string) bool {
	return s.Active[target]
}

type View struct {
	mu        sync.RWMutex
	seq       uint64
	fragments map[string]template.HTML
	visible   map[string]bool
	active    map[string]bool
	toasts    []Toast
	bus       *Bus
}

func New(bus *Bus) *View {
	if bus == nil {
		bus = NewBus()
	}
	return &View{
		fragments: make(map[string]template.HTML),
		visible:   make(map[string]bool),
		active:    make(map[string]bool),
		bus:       bus,
	}
}

func (v *View) Bus() *Bus {
	return v.bus
}

// SetHTML replaces the content of target.
func (v *View) SetHTML(target string, html template.HTML) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fragments[target] = html
	v.publish(Update{Kind: UpdateHTML, Target: target, HTML: string(html)})
}

func (v *View) SetVisible(target string, visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if cur, ok := v.visible[target]; ok && cur == visible {
		return
	}
	v.visible[target] = visible
	v.publish(Update{Kind: UpdateVisible, Target: target, Visible: visible})
}

func (v *View) SetActive(target string, active bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active[target] == active {
		return
	}
	v.active[target] = active
	v.publish(Update{Kind: UpdateActive, Target: target, Active: active})
}

// Notify shows a toast and keeps it among the recent ones.
func (v *View) Notify(level ToastLevel, message string) Toast {
	t := Toast{
		ID:      uuid.NewString(),
		Level:   level,
		Message: message,
		At:      time.Now(),
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.toasts = append(v.toasts, t)
	if len(v.toasts) > recentToasts {
		v.toasts = v.toasts[len(v.toasts)-recentToasts:]
	}
	v.publish(Update{Kind: UpdateToast, Toast: &t})
	return t
}

func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := Snapshot{
		Seq:       v.seq,
		Fragments: make(map[string]template.HTML, len(v.fragments)),
		Visible:   make(map[string]bool, len(v.visible)),
		Active:    make(map[string]bool, len(v.active)),
		Toasts:    append([]Toast(nil), v.toasts...),
	}
	for k, f := range v.fragments {
		s.Fragments[k] = f
	}
	for k, b := range v.visible {
		s.Visible[k] = b
	}
	for k, b := range v.active {
		s.Active[k] = b
	}
	return s
}

// publish must be called with v.mu held so sequence and delivery order agree.
func (v *View) publish(u Update) {
	v.seq++
	u.Seq = v.seq
	v.bus.Publish(u)
}
