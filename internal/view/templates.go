package view

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// DateTimeLayout is the display format for timestamps on the page.
const DateTimeLayout = "02/01/2006 15:04:05"

var funcs = template.FuncMap{
	"percent": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v*100)
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(DateTimeLayout)
	},
	"number": func(n int64) string {
		return groupThousands(n)
	},
}

var fragments = template.Must(template.New("fragments").Funcs(funcs).Parse(fragmentTemplates))

// Render executes the named fragment fully before returning it, so a failing
// template never leaves half-written markup in a target.
func Render(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// Text escapes s for use as a fragment.
func Text(s string) template.HTML {
	return template.HTML(template.HTMLEscapeString(s))
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

const fragmentTemplates = `
{{define "overview"}}
<div class="stat-card"><span class="stat-label">Total reads</span><span class="stat-value">{{number .TotalReads}}</span></div>
<div class="stat-card"><span class="stat-label">Reads today</span><span class="stat-value">{{number .TodayReads}}</span></div>
<div class="stat-card"><span class="stat-label">Unique plates</span><span class="stat-value">{{number .UniquePlates}}</span></div>
<div class="stat-card"><span class="stat-label">Average confidence</span><span class="stat-value">{{percent .AvgConfidence}}</span></div>
{{with .LastRead}}<div class="stat-footnote">Last read {{datetime .Time}}</div>{{end}}
{{end}}

{{define "top-plates"}}
{{if not .}}<tr><td colspan="4" class="empty">No reads in the period</td></tr>{{end}}
{{range .}}
<tr>
  <td class="plate">{{.License}}</td>
  <td>{{.Count}}</td>
  <td><span class="badge badge-{{.Tier}}">{{percent .Confidence}}</span></td>
  <td>{{.LastSeen}}</td>
</tr>
{{end}}
{{end}}

{{define "plates-table"}}
{{if not .}}<tr><td colspan="6" class="empty">No records found</td></tr>{{end}}
{{range .}}
<tr>
  <td>{{.ID}}</td>
  <td>{{.FrameNumber}}</td>
  <td>{{.VehicleID}}</td>
  <td>
    <span class="plate">{{.License}}</span>
    {{if .Grouped}}
    <div class="group-info">{{.GroupSize}} reads in {{.GroupSpan}}</div>
    {{if .Variants}}<div class="group-variants">Variants: {{range $i, $v := .Variants}}{{if $i}}, {{end}}<span class="variant">{{$v}}</span>{{end}}</div>{{end}}
    {{end}}
  </td>
  <td><span class="badge badge-{{.Tier}}">{{percent .Confidence}}</span></td>
  <td>{{.Timestamp}}</td>
</tr>
{{end}}
{{end}}

{{define "plates-count"}}{{number .}} records{{end}}

{{define "pagination"}}
{{range .}}
{{if eq .Kind "prev"}}<button class="page-link" data-action="page" data-page="{{.Page}}">&laquo; Previous</button>
{{else if eq .Kind "next"}}<button class="page-link" data-action="page" data-page="{{.Page}}">Next &raquo;</button>
{{else if eq .Kind "ellipsis"}}<span class="page-ellipsis">&hellip;</span>
{{else}}<button class="page-link{{if .Active}} active{{end}}" data-action="page" data-page="{{.Page}}">{{.Page}}</button>
{{end}}
{{end}}
{{end}}

{{define "dedupe-banner"}}
<div class="dedupe-banner">
  Deduplication active: {{.TimeWindow}}s window, {{number .Count}} results
  {{if .HasOriginal}}from {{number .OriginalCount}} original reads{{end}}
  {{if .HasReduction}}({{printf "%.1f" .Reduction}}% reduction){{end}}
</div>
{{end}}

{{define "chart"}}<img class="chart" src="/ui/s/{{.Session}}/charts/{{.Slot}}?v={{.Version}}" alt="{{.Alt}}">{{end}}

{{define "analytics"}}<div class="placeholder">Advanced analytics are not available yet.</div>{{end}}
`
