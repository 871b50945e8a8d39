package service

import (
	"fmt"
	"math"

	"plate-dashboard/internal/domain/anpr"
	"plate-dashboard/internal/view"
)

type Tier string

const (
	TierSuccess Tier = "success"
	TierWarning Tier = "warning"
	TierDanger  Tier = "danger"
)

// ConfidenceTier maps a recognition score to a badge tier. Boundaries belong
// to the higher tier.
func ConfidenceTier(c float64) Tier {
	switch {
	case c >= 0.8:
		return TierSuccess
	case c >= 0.5:
		return TierWarning
	default:
		return TierDanger
	}
}

// OtherVariants returns the distinct license numbers of a group other than
// the one shown as its label, in order of first appearance.
func OtherVariants(primary string, variants []string) []string {
	seen := map[string]bool{primary: true}
	var out []string
	for _, v := range variants {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func formatSpan(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.0fs", seconds)
	case seconds < 3600:
		m := math.Floor(seconds / 60)
		return fmt.Sprintf("%.0fm %.0fs", m, seconds-m*60)
	default:
		h := math.Floor(seconds / 3600)
		return fmt.Sprintf("%.0fh %.0fm", h, math.Floor((seconds-h*3600)/60))
	}
}

func formatTimestamp(t *anpr.Timestamp) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(view.DateTimeLayout)
}

type PlateRow struct {
	ID          int64
	FrameNumber int64
	VehicleID   int64
	License     string
	Confidence  float64
	Tier        Tier
	Timestamp   string
	Grouped     bool
	GroupSize   int
	GroupSpan   string
	Variants    []string
}

func plateRows(reads []anpr.PlateRead) []PlateRow {
	rows := make([]PlateRow, 0, len(reads))
	for _, r := range reads {
		row := PlateRow{
			ID:          r.ID,
			FrameNumber: r.FrameNumber,
			VehicleID:   r.VehicleID,
			License:     r.LicenseNumber,
			Confidence:  r.Confidence,
			Tier:        ConfidenceTier(r.Confidence),
			Timestamp:   formatTimestamp(&r.Timestamp),
		}
		if r.Grouped() {
			row.Grouped = true
			row.GroupSize = r.GroupSize
			row.GroupSpan = formatSpan(r.GroupTimeSpanSeconds)
			row.Variants = OtherVariants(r.LicenseNumber, r.GroupedLicenseNumbers)
		}
		rows = append(rows, row)
	}
	return rows
}

type TopPlateRow struct {
	License    string
	Count      int64
	Confidence float64
	Tier       Tier
	LastSeen   string
}

func topPlateRows(plates []anpr.TopPlate) []TopPlateRow {
	rows := make([]TopPlateRow, 0, len(plates))
	for _, p := range plates {
		rows = append(rows, TopPlateRow{
			License:    p.LicenseNumber,
			Count:      p.Count,
			Confidence: p.AvgConfidence,
			Tier:       ConfidenceTier(p.AvgConfidence),
			LastSeen:   formatTimestamp(p.LastSeen),
		})
	}
	return rows
}

type DedupeSummary struct {
	TimeWindow    int
	Count         int64
	OriginalCount int64
	HasOriginal   bool
	Reduction     float64
	HasReduction  bool
}

func dedupeSummary(res anpr.PageResult, requestedWindow int) DedupeSummary {
	s := DedupeSummary{TimeWindow: requestedWindow, Count: res.Total}
	if res.TimeWindow != nil {
		s.TimeWindow = *res.TimeWindow
	}
	if res.OriginalCount != nil {
		s.OriginalCount = *res.OriginalCount
		s.HasOriginal = true
	}
	if res.ReductionPercentage != nil {
		s.Reduction = *res.ReductionPercentage
		s.HasReduction = true
	}
	return s
}

type chartImage struct {
	Session string
	Slot    string
	Version uint64
	Alt     string
}
