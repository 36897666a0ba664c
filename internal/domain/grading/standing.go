package grading

import (
	"fmt"
	"math"
	"strconv"
)

// Standing is the academic classification of a GPA.
type Standing string

const (
	StandingExcellent Standing = "excellent"
	StandingVeryGood  Standing = "very_good"
	StandingGood      Standing = "good"
	StandingAverage   Standing = "average"
	StandingWeak      Standing = "weak"
)

// standingThresholds is ordered by descending minimum GPA.
var standingThresholds = [...]struct {
	min      float64
	standing Standing
	label    string
}{
	{3.6, StandingExcellent, "Xuất sắc"},
	{3.2, StandingVeryGood, "Giỏi"},
	{2.5, StandingGood, "Khá"},
	{2.0, StandingAverage, "Trung bình"},
	{math.Inf(-1), StandingWeak, "Yếu"},
}

// StandingFor classifies a GPA on the 4.0 scale.
func StandingFor(gpa float64) Standing {
	for _, t := range standingThresholds {
		if gpa >= t.min {
			return t.standing
		}
	}
	return StandingWeak
}

// Standings returns every standing, best first.
func Standings() []Standing {
	out := make([]Standing, 0, len(standingThresholds))
	for _, t := range standingThresholds {
		out = append(out, t.standing)
	}
	return out
}

// String returns the machine name.
func (s Standing) String() string {
	return string(s)
}

// Label returns the Vietnamese label shown on transcripts.
func (s Standing) Label() string {
	for _, t := range standingThresholds {
		if t.standing == s {
			return t.label
		}
	}
	return ""
}

// MinGPA returns the lowest GPA that still earns the standing.
func (s Standing) MinGPA() float64 {
	for _, t := range standingThresholds {
		if t.standing == s {
			if math.IsInf(t.min, -1) {
				return 0
			}
			return t.min
		}
	}
	return 0
}

// ═══════════════════════════════════════════════════════════════════════════
// Display formatting
// ═══════════════════════════════════════════════════════════════════════════

// FormatGPA renders a GPA with two decimals, e.g. "3.55".
// Display only: never parse the result back into a stored value.
func FormatGPA(gpa float64) string {
	return strconv.FormatFloat(gpa, 'f', 2, 64)
}

// FormatPoint renders a grade point with one decimal, e.g. "3.5".
func FormatPoint(point float64) string {
	return strconv.FormatFloat(point, 'f', 1, 64)
}

// FormatScore renders a score the way a grade table prints it.
func FormatScore(score float64) string {
	if score == math.Trunc(score) {
		return strconv.FormatFloat(score, 'f', 1, 64)
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// FormatBandRange renders the score range of a band, e.g. "8.0 - 8.9" or
// "< 4.0" for the open F band.
func FormatBandRange(b GradeBand) string {
	if math.IsInf(b.LowerBound, -1) {
		idx, ok := bandIndex(b.Letter)
		if ok && idx > 0 {
			return fmt.Sprintf("< %s", FormatScore(bands[idx-1].LowerBound))
		}
		return fmt.Sprintf("<= %s", FormatScore(b.UpperBound))
	}
	return fmt.Sprintf("%s - %s", FormatScore(b.LowerBound), FormatScore(b.UpperBound))
}
