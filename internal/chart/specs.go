package chart

import (
	"fmt"
	"io"
	"sort"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"plate-dashboard/internal/domain/anpr"
)

const (
	chartWidth  = 720
	chartHeight = 300

	// HoursPerDay is the fixed domain of the hourly chart.
	HoursPerDay = 24
)

// Spec describes a chart that can be rendered as SVG.
type Spec interface {
	Kind() string
	Render(w io.Writer) error
}

type DailyPoint struct {
	Day   time.Time
	Count int64
}

// DailySpec is a line chart of reads per day in ascending date order.
type DailySpec struct {
	Points []DailyPoint
}

// NewDailySpec orders the API rows by date. The API returns newest first.
func NewDailySpec(rows []anpr.DailyCount) (DailySpec, error) {
	points := make([]DailyPoint, 0, len(rows))
	for _, r := range rows {
		day, err := r.Day()
		if err != nil {
			return DailySpec{}, fmt.Errorf("daily row %q: %w", r.Date, err)
		}
		points = append(points, DailyPoint{Day: day, Count: r.Count})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Day.Before(points[j].Day) })
	return DailySpec{Points: points}, nil
}

func (s DailySpec) Kind() string { return "line" }

func (s DailySpec) Render(w io.Writer) error {
	points := s.Points
	if len(points) == 0 {
		points = []DailyPoint{{Day: time.Now().Truncate(24 * time.Hour)}}
	}

	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	maxY := 1.0
	for i, p := range points {
		xs[i] = p.Day
		ys[i] = float64(p.Count)
		if ys[i] > maxY {
			maxY = ys[i]
		}
	}

	minX, maxX := xs[0], xs[len(xs)-1]
	if !maxX.After(minX) {
		minX = minX.Add(-12 * time.Hour)
		maxX = maxX.Add(12 * time.Hour)
	}

	color := drawing.ColorFromHex("0d6efd")
	graph := gochart.Chart{
		Width:      chartWidth,
		Height:     chartHeight,
		Background: gochart.Style{Padding: gochart.Box{Top: 20, Left: 16, Right: 20, Bottom: 10}},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatterWithFormat("02/01"),
			Range: &gochart.ContinuousRange{
				Min: gochart.TimeToFloat64(minX),
				Max: gochart.TimeToFloat64(maxX),
			},
		},
		YAxis: gochart.YAxis{
			Name:  "reads",
			Range: &gochart.ContinuousRange{Min: 0, Max: maxY * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []gochart.Series{
			gochart.TimeSeries{
				Name:    "Reads",
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: color,
					StrokeWidth: 2,
					DotColor:    color,
					DotWidth:    3,
					FillColor:   color.WithAlpha(40),
				},
			},
		},
	}
	return graph.Render(gochart.SVG, w)
}

// HourlySpec is a proportion chart over all 24 hours of one day.
type HourlySpec struct {
	Counts [HoursPerDay]int64
}

// NewHourlySpec spreads the sparse API rows over the full day; absent hours
// count zero.
func NewHourlySpec(rows []anpr.HourlyCount) (HourlySpec, error) {
	var spec HourlySpec
	for _, r := range rows {
		if r.Hour < 0 || r.Hour >= HoursPerDay {
			return HourlySpec{}, fmt.Errorf("hour %d outside 0..23", r.Hour)
		}
		spec.Counts[r.Hour] += r.Count
	}
	return spec, nil
}

func (s HourlySpec) Kind() string { return "proportion" }

func (s HourlySpec) Total() int64 {
	var total int64
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// Render draws the pie in a square on the left and a legend for every hour
// on the right. Hours without reads have no slice but are still listed.
func (s HourlySpec) Render(w io.Writer) error {
	var values []gochart.Value
	for hour, c := range s.Counts {
		// zero slices have no area and break normalization
		if c == 0 {
			continue
		}
		values = append(values, gochart.Value{
			Value: float64(c),
			Label: hourLabel(hour),
		})
	}
	if len(values) == 0 {
		values = []gochart.Value{{
			Value: 1,
			Label: "no reads",
			Style: gochart.Style{FillColor: drawing.ColorFromHex("dee2e6")},
		}}
	}

	pie := gochart.PieChart{
		Width:  chartWidth,
		Height: chartHeight,
		Background: gochart.Style{Padding: gochart.Box{
			Top:    10,
			Left:   10,
			Right:  chartWidth - chartHeight + 10,
			Bottom: 10,
		}},
		Values:   values,
		Elements: []gochart.Renderable{s.legend},
	}
	return pie.Render(gochart.SVG, w)
}

const (
	legendRows      = 8
	legendLeft      = chartHeight + 20
	legendTop       = 40
	legendColWidth  = 130
	legendRowHeight = 30
)

func (s HourlySpec) legend(r gochart.Renderer, _ gochart.Box, defaults gochart.Style) {
	gochart.Style{
		FontSize:  10,
		FontColor: drawing.ColorFromHex("495057"),
	}.InheritFrom(defaults).WriteTextOptionsToRenderer(r)

	for hour, c := range s.Counts {
		x := legendLeft + (hour/legendRows)*legendColWidth
		y := legendTop + (hour%legendRows)*legendRowHeight
		r.Text(fmt.Sprintf("%s: %d", hourLabel(hour), c), x, y)
	}
}

func hourLabel(hour int) string {
	return fmt.Sprintf("%02dh", hour)
}
