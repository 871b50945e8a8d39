package view

import (
	"sync"
)

// UpdateKind is the type of change pushed to connected pages.
type UpdateKind string

const (
	UpdateHTML    UpdateKind = "html"
	UpdateVisible UpdateKind = "visible"
	UpdateActive  UpdateKind = "active"
	UpdateToast   UpdateKind = "toast"
)

// Update is one change to a page target, in the order it was applied.
type Update struct {
	Kind    UpdateKind `json:"kind"`
	Seq     uint64     `json:"seq"`
	Target  string     `json:"target,omitempty"`
	HTML    string     `json:"html,omitempty"`
	Visible bool       `json:"visible,omitempty"`
	Active  bool       `json:"active,omitempty"`
	Toast   *Toast     `json:"toast,omitempty"`
}

// Bus fans updates out to SSE subscribers. Slow subscribers miss updates
// rather than block the dashboard.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Update]struct{}
	closed      bool
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Update]struct{})}
}

func (b *Bus) Publish(u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- u:
		default:
			// subscriber full, drop
		}
	}
}

func (b *Bus) Subscribe() chan Update {
	ch := make(chan Update, 64)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subscribers[ch] = struct{}{}
	}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(ch chan Update) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Shutdown closes every subscriber so open streams end.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan Update]struct{})
}
