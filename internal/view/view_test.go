package view

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func recv(t *testing.T, ch chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return u
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
	return Update{}
}

func TestView_PublishesInOrder(t *testing.T) {
	v := New(nil)
	ch := v.Bus().Subscribe()
	defer v.Bus().Unsubscribe(ch)

	v.SetHTML(TargetOverview, "<b>1</b>")
	v.SetVisible(TargetLoading, false)
	v.SetActive("nav-plates", true)
	v.Notify(ToastError, "boom")

	want := []UpdateKind{UpdateHTML, UpdateVisible, UpdateActive, UpdateToast}
	var last uint64
	for _, kind := range want {
		u := recv(t, ch)
		if u.Kind != kind {
			t.Fatalf("kind = %s, want %s", u.Kind, kind)
		}
		if u.Seq <= last {
			t.Fatalf("sequence not increasing: %d after %d", u.Seq, last)
		}
		last = u.Seq
	}
}

func TestView_SkipsNoopToggles(t *testing.T) {
	v := New(nil)
	v.SetVisible(TargetLoading, false)
	seq := v.Snapshot().Seq
	v.SetVisible(TargetLoading, false)
	v.SetActive("nav-dashboard", false)
	if got := v.Snapshot().Seq; got != seq {
		t.Errorf("no-op toggles published: seq %d -> %d", seq, got)
	}
}

func TestSnapshot_DefaultsVisible(t *testing.T) {
	v := New(nil)
	v.SetVisible(TargetDedupeBanner, false)
	s := v.Snapshot()
	if !s.IsVisible(TargetOverview) {
		t.Error("untouched target should be visible")
	}
	if s.IsVisible(TargetDedupeBanner) {
		t.Error("hidden target reported visible")
	}
}

func TestView_KeepsRecentToasts(t *testing.T) {
	v := New(nil)
	for i := 0; i < recentToasts+5; i++ {
		v.Notify(ToastInfo, fmt.Sprintf("toast %d", i))
	}
	toasts := v.Snapshot().Toasts
	if len(toasts) != recentToasts {
		t.Fatalf("toasts = %d, want %d", len(toasts), recentToasts)
	}
	if toasts[0].Message != "toast 5" || toasts[0].ID == "" {
		t.Errorf("oldest kept toast = %+v", toasts[0])
	}
}

func TestBus_ShutdownClosesSubscribers(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	b.Shutdown()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("subscribe after shutdown should return a closed channel")
	}
	b.Unsubscribe(ch)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(Update{Kind: UpdateHTML, Seq: uint64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestRender(t *testing.T) {
	type overview struct {
		TotalReads, TodayReads, UniquePlates int64
		AvgConfidence                        float64
		LastRead                             *struct{ Time time.Time }
	}
	html, err := Render("overview", overview{TotalReads: 1234567, AvgConfidence: 0.875})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"1.234.567", "87.5%"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("overview missing %q: %s", want, html)
		}
	}

	if _, err := Render("no-such-fragment", nil); err == nil {
		t.Error("expected error for unknown fragment")
	}

	table, err := Render("plates-table", []struct {
		ID, FrameNumber, VehicleID int64
		License                    string
		Confidence                 float64
		Tier, Timestamp            string
		Grouped                    bool
		GroupSize                  int
		GroupSpan                  string
		Variants                   []string
	}{{License: "<script>", Confidence: 0.5, Tier: "warning"}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(table), "<script>") {
		t.Errorf("plate text not escaped: %s", table)
	}
}

func TestGroupThousands(t *testing.T) {
	tests := map[int64]string{0: "0", 999: "999", 1000: "1.000", -45000: "-45.000", 1234567: "1.234.567"}
	for in, want := range tests {
		if got := groupThousands(in); got != want {
			t.Errorf("groupThousands(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestText_Escapes(t *testing.T) {
	if got := Text(`<a href="x">`); strings.Contains(string(got), "<") {
		t.Errorf("Text() = %q", got)
	}
}
