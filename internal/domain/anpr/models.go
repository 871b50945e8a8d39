package anpr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp accepts both RFC3339 and the naive ISO-8601 form the API emits
// for columns without a time zone.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

type OverviewStats struct {
	TotalReads    int64      `json:"total_reads"`
	TodayReads    int64      `json:"today_reads"`
	UniquePlates  int64      `json:"unique_plates"`
	AvgConfidence float64    `json:"avg_confidence"`
	LastRead      *Timestamp `json:"last_read,omitempty"`
}

func (s OverviewStats) Validate() error {
	if s.TotalReads < 0 || s.TodayReads < 0 || s.UniquePlates < 0 {
		return fmt.Errorf("negative counter in overview")
	}
	if !validConfidence(s.AvgConfidence) {
		return fmt.Errorf("avg_confidence %v outside [0,1]", s.AvgConfidence)
	}
	return nil
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Day parses Date as a calendar day.
func (d DailyCount) Day() (time.Time, error) {
	return time.ParseInLocation("2006-01-02", d.Date, time.Local)
}

func (d DailyCount) Validate() error {
	if _, err := d.Day(); err != nil {
		return fmt.Errorf("invalid date %q", d.Date)
	}
	if d.Count < 0 {
		return fmt.Errorf("negative count for %s", d.Date)
	}
	return nil
}

type HourlyCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

func (h HourlyCount) Validate() error {
	if h.Hour < 0 || h.Hour > 23 {
		return fmt.Errorf("hour %d outside 0..23", h.Hour)
	}
	if h.Count < 0 {
		return fmt.Errorf("negative count for hour %d", h.Hour)
	}
	return nil
}

type TopPlate struct {
	LicenseNumber string     `json:"license_number"`
	Count         int64      `json:"count"`
	AvgConfidence float64    `json:"avg_confidence"`
	LastSeen      *Timestamp `json:"last_seen,omitempty"`
}

func (p TopPlate) Validate() error {
	if p.Count < 0 {
		return fmt.Errorf("negative count for %s", p.LicenseNumber)
	}
	if !validConfidence(p.AvgConfidence) {
		return fmt.Errorf("avg_confidence %v outside [0,1] for %s", p.AvgConfidence, p.LicenseNumber)
	}
	return nil
}

// PlateRead is one recognition event as returned by /api/placas. The group
// fields are only populated when the server deduplicated the page.
type PlateRead struct {
	ID            int64     `json:"id"`
	FrameNumber   int64     `json:"frame_nmr"`
	VehicleID     int64     `json:"car_id"`
	LicenseNumber string    `json:"license_number"`
	Confidence    float64   `json:"license_number_score"`
	Timestamp     Timestamp `json:"data_hora"`

	GroupSize             int      `json:"group_size,omitempty"`
	GroupTimeSpanSeconds  float64  `json:"group_time_span,omitempty"`
	GroupedLicenseNumbers []string `json:"grouped_license_numbers,omitempty"`
}

// Grouped reports whether the read represents more than one raw read.
func (r PlateRead) Grouped() bool {
	return r.GroupSize > 1
}

type PageResult struct {
	Data                []PlateRead `json:"data"`
	Page                int         `json:"page"`
	PerPage             int         `json:"per_page"`
	TotalPages          int         `json:"total_pages"`
	Total               int64       `json:"total"`
	Deduplicated        bool        `json:"deduplicated"`
	TimeWindow          *int        `json:"time_window,omitempty"`
	OriginalCount       *int64      `json:"original_count,omitempty"`
	ReductionPercentage *float64    `json:"reduction_percentage,omitempty"`
}

func (p PageResult) Validate() error {
	if p.Total < 0 || p.TotalPages < 0 {
		return fmt.Errorf("negative totals")
	}
	if p.Total > 0 && (p.Page < 1 || p.Page > p.TotalPages) {
		return fmt.Errorf("page %d outside 1..%d", p.Page, p.TotalPages)
	}
	for _, r := range p.Data {
		if !validConfidence(r.Confidence) {
			return fmt.Errorf("confidence %v outside [0,1] for read %d", r.Confidence, r.ID)
		}
		if p.Deduplicated && r.GroupSize < 1 {
			return fmt.Errorf("group_size %d for read %d", r.GroupSize, r.ID)
		}
		if r.GroupTimeSpanSeconds < 0 {
			return fmt.Errorf("negative group_time_span for read %d", r.ID)
		}
	}
	return nil
}

// PlateQuery is the exact parameter set of one /api/placas request. It is
// comparable so a response can be matched against the query that is current
// when it arrives.
type PlateQuery struct {
	Page        int
	PerPage     int
	Search      string
	DateFrom    string
	DateTo      string
	Deduplicate bool
	TimeWindow  int
}

// Values encodes the query, leaving out empty filters and, unless
// deduplication is on, every deduplication parameter.
func (q PlateQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("search", s)
	}
	if q.DateFrom != "" {
		v.Set("date_from", q.DateFrom)
	}
	if q.DateTo != "" {
		v.Set("date_to", q.DateTo)
	}
	if q.Deduplicate {
		v.Set("deduplicate", "true")
		v.Set("time_window", strconv.Itoa(q.TimeWindow))
	}
	return v
}

func validConfidence(c float64) bool {
	return c >= 0 && c <= 1
}
