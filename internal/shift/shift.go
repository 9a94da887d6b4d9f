// Package shift maps production shift labels to hour-of-day windows.
package shift

import (
	"fmt"
	"strings"
)

type Shift string

const (
	All       Shift = "all"
	Morning   Shift = "morning"
	Afternoon Shift = "afternoon"
	Night     Shift = "night"
)

// Window is a closed-open hour range [Start, End).
type Window struct {
	Start int
	End   int
}

var windows = map[Shift][]Window{
	Morning:   {{Start: 6, End: 14}},
	Afternoon: {{Start: 14, End: 22}},
	Night:     {{Start: 22, End: 24}, {Start: 0, End: 6}},
}

// Parse accepts the shift labels case-insensitively. An empty label means All.
func Parse(label string) (Shift, error) {
	s := Shift(strings.ToLower(strings.TrimSpace(label)))
	switch s {
	case "":
		return All, nil
	case All, Morning, Afternoon, Night:
		return s, nil
	default:
		return "", fmt.Errorf("unknown shift %q", label)
	}
}

// Predicate renders the shift as a boolean SQL expression over hourExpr, an
// integer hour-of-day expression for the date column. All yields "".
func Predicate(s Shift, hourExpr string) string {
	ws := windows[s]
	if len(ws) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		var conds []string
		if w.Start > 0 {
			conds = append(conds, fmt.Sprintf("%s >= %d", hourExpr, w.Start))
		}
		if w.End < 24 {
			conds = append(conds, fmt.Sprintf("%s < %d", hourExpr, w.End))
		}
		part := strings.Join(conds, " AND ")
		if len(ws) > 1 && len(conds) > 1 {
			part = "(" + part + ")"
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
