package service

import (
	"strings"

	"plate-dashboard/internal/domain/anpr"
)

// State is the filter, pagination and deduplication parameter store. It is
// the only source of outgoing query parameters and is mutated only through
// the DashboardService intent methods.
type State struct {
	Page        int
	Search      string
	DateFrom    string
	DateTo      string
	Deduplicate bool
	// TimeWindow is zero whenever Deduplicate is false.
	TimeWindow int
	DailyDays  int
}

func newState(dailyDays int) State {
	return State{Page: 1, DailyDays: dailyDays}
}

// PlateQuery builds the query for the plate table from the current state.
func (s State) PlateQuery(perPage int) anpr.PlateQuery {
	q := anpr.PlateQuery{
		Page:     s.Page,
		PerPage:  perPage,
		Search:   strings.TrimSpace(s.Search),
		DateFrom: strings.TrimSpace(s.DateFrom),
		DateTo:   strings.TrimSpace(s.DateTo),
	}
	if s.Deduplicate {
		q.Deduplicate = true
		q.TimeWindow = s.TimeWindow
	}
	return q
}
