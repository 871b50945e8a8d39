package service

import (
	"time"

	"plate-dashboard/internal/view"
)

// Clock writes the wall-clock time into one page. Sessions ticks every
// page's clock from a single timer.
type Clock struct {
	now  func() time.Time
	view *view.View
}

func NewClock(v *view.View, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, view: v}
}

func (c *Clock) Format() string {
	return c.now().Format(view.DateTimeLayout)
}

// Today is the calendar day used for the hourly series.
func (c *Clock) Today() string {
	return c.now().Format("2006-01-02")
}

func (c *Clock) Tick() {
	c.view.SetHTML(view.TargetClock, view.Text(c.Format()))
}
