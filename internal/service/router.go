package service

import (
	"context"
	"fmt"
	"sync"
)

type Section string

const (
	SectionDashboard Section = "dashboard"
	SectionPlates    Section = "plates"
	SectionAnalytics Section = "analytics"
)

// Sections lists the navigable sections in menu order.
var Sections = []Section{SectionDashboard, SectionPlates, SectionAnalytics}

func ParseSection(name string) (Section, bool) {
	for _, s := range Sections {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// ContentTarget is the page element holding the section.
func (s Section) ContentTarget() string { return "section-" + string(s) }

// NavTarget is the navigation item that selects the section.
func (s Section) NavTarget() string { return "nav-" + string(s) }

// Surface is the part of the page the router toggles.
type Surface interface {
	SetVisible(target string, visible bool)
	SetActive(target string, active bool)
}

type LoadFunc func(ctx context.Context)

// Router keeps exactly one section active and runs its load routine on every
// selection, including re-selection of the active one.
type Router struct {
	mu       sync.Mutex
	active   Section
	sections []Section
	loaders  map[Section]LoadFunc
	surface  Surface
}

func NewRouter(surface Surface) *Router {
	return &Router{
		loaders: make(map[Section]LoadFunc),
		surface: surface,
	}
}

// Handle registers the load routine of a section. Registration order is the
// set of sections the router can show.
func (r *Router) Handle(s Section, load LoadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loaders[s]; !ok {
		r.sections = append(r.sections, s)
	}
	r.loaders[s] = load
}

// Active reads the current section at call time.
func (r *Router) Active() Section {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Show activates s and runs its load routine. Showing a section that was
// never registered is a wiring defect and panics.
func (r *Router) Show(ctx context.Context, s Section) {
	load := r.activate(s)
	if load != nil {
		load(ctx)
	}
}

func (r *Router) activate(s Section) LoadFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	load, ok := r.loaders[s]
	if !ok {
		panic(fmt.Sprintf("service: section %q has no registered target", s))
	}
	for _, other := range r.sections {
		r.surface.SetVisible(other.ContentTarget(), false)
		r.surface.SetActive(other.NavTarget(), false)
	}
	r.surface.SetVisible(s.ContentTarget(), true)
	r.surface.SetActive(s.NavTarget(), true)
	r.active = s
	return load
}
