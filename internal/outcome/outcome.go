// Package outcome holds the markers that classify free-text test results as
// pass or fail.
package outcome

type Outcome int

const (
	Unknown Outcome = iota
	Pass
	Fail
)

// Markers are matched as case-insensitive substrings. Pass is checked first so
// a value can never count as both.
var (
	PassMarkers = []string{"PASS", "OK", "SUCCESS"}
	FailMarkers = []string{"FAIL", "NG", "ERROR"}
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}
