package service

type DirectiveKind string

const (
	DirectivePrev     DirectiveKind = "prev"
	DirectiveFirst    DirectiveKind = "first"
	DirectiveEllipsis DirectiveKind = "ellipsis"
	DirectivePage     DirectiveKind = "page"
	DirectiveLast     DirectiveKind = "last"
	DirectiveNext     DirectiveKind = "next"
)

// Directive is one control of the pagination bar. Page is the page the
// control navigates to; it is zero for ellipses.
type Directive struct {
	Kind   DirectiveKind
	Page   int
	Active bool
}

// paginationRadius is how many pages are shown on each side of the current one.
const paginationRadius = 2

// PlanPagination returns the pagination bar for current out of total pages:
// an optional previous control, page 1 and an ellipsis when the window does
// not reach them, the window of pages around current, the symmetric tail, and
// an optional next control. It returns nil when there are no pages.
func PlanPagination(current, total int) []Directive {
	if total < 1 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start := max(1, current-paginationRadius)
	end := min(total, current+paginationRadius)

	out := make([]Directive, 0, end-start+7)
	if current > 1 {
		out = append(out, Directive{Kind: DirectivePrev, Page: current - 1})
	}
	if start > 1 {
		out = append(out, Directive{Kind: DirectiveFirst, Page: 1})
		if start > 2 {
			out = append(out, Directive{Kind: DirectiveEllipsis})
		}
	}
	for p := start; p <= end; p++ {
		out = append(out, Directive{Kind: DirectivePage, Page: p, Active: p == current})
	}
	if end < total {
		if end < total-1 {
			out = append(out, Directive{Kind: DirectiveEllipsis})
		}
		out = append(out, Directive{Kind: DirectiveLast, Page: total})
	}
	if current < total {
		out = append(out, Directive{Kind: DirectiveNext, Page: current + 1})
	}
	return out
}
