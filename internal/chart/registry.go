// Package chart owns the rendered chart instances shown on the dashboard.
//
// Each named slot holds at most one live instance. Replacing a chart destroys
// the previous instance before the new one is built, so repeated reloads never
// accumulate rendered buffers.
package chart

import (
	"bytes"
	"fmt"
	"sync"
)

type Slot string

const (
	SlotDaily  Slot = "daily"
	SlotHourly Slot = "hourly"
)

// Slots lists every slot the dashboard renders.
var Slots = []Slot{SlotDaily, SlotHourly}

func ParseSlot(name string) (Slot, bool) {
	for _, s := range Slots {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// Instance is one rendered chart. Its SVG buffer is released by Destroy.
type Instance struct {
	Slot    Slot
	Kind    string
	Version uint64

	mu        sync.RWMutex
	svg       []byte
	destroyed bool
}

// SVG returns a copy of the rendered chart, or false once destroyed.
func (i *Instance) SVG() ([]byte, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.destroyed {
		return nil, false
	}
	return append([]byte(nil), i.svg...), true
}

func (i *Instance) Destroy() {
	i.mu.Lock()
	i.svg = nil
	i.destroyed = true
	i.mu.Unlock()
}

func (i *Instance) Destroyed() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.destroyed
}

// Observer is told how many instances are live after every change.
type Observer func(live int)

type Registry struct {
	mu       sync.Mutex
	slots    map[Slot]*Instance
	version  uint64
	observer Observer
}

func NewRegistry(observer Observer) *Registry {
	return &Registry{
		slots:    make(map[Slot]*Instance),
		observer: observer,
	}
}

// Set replaces the chart in slot with one built from spec. The old instance is
// destroyed first; if the new one fails to render the slot stays empty.
func (r *Registry) Set(slot Slot, spec Spec) (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.slots[slot]; ok {
		old.Destroy()
		delete(r.slots, slot)
	}
	defer r.notify()

	var buf bytes.Buffer
	if err := spec.Render(&buf); err != nil {
		return nil, fmt.Errorf("render %s chart: %w", slot, err)
	}

	r.version++
	inst := &Instance{
		Slot:    slot,
		Kind:    spec.Kind(),
		Version: r.version,
		svg:     buf.Bytes(),
	}
	r.slots[slot] = inst
	return inst, nil
}

func (r *Registry) Get(slot Slot) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.slots[slot]
	return inst, ok
}

// Release destroys the instance in slot, if any.
func (r *Registry) Release(slot Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.slots[slot]; ok {
		old.Destroy()
		delete(r.slots, slot)
		r.notify()
	}
}

func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// notify must be called with r.mu held.
func (r *Registry) notify() {
	if r.observer != nil {
		r.observer(len(r.slots))
	}
}
