package grading

import (
	"math"
	"strings"
)

// Letter is one of the eight canonical letter grades.
type Letter string

const (
	LetterA      Letter = "A"
	LetterBPlus  Letter = "B+"
	LetterB      Letter = "B"
	LetterCPlus  Letter = "C+"
	LetterC      Letter = "C"
	LetterDPlus  Letter = "D+"
	LetterD      Letter = "D"
	LetterF      Letter = "F"
	LetterAbsent Letter = ""
)

// String returns the letter as written on a transcript.
func (l Letter) String() string {
	return string(l)
}

// IsValid reports whether l is one of the canonical letters.
func (l Letter) IsValid() bool {
	_, ok := bandIndex(l)
	return ok
}

// Passing reports whether the letter earns credit (anything above F).
func (l Letter) Passing() bool {
	return l.IsValid() && l != LetterF
}

// ParseLetter trims surrounding whitespace and upper-cases the input before
// matching it against the canonical letters. Use it for user input only;
// LetterToPoint matches exactly.
func ParseLetter(raw string) (Letter, error) {
	l := Letter(strings.ToUpper(strings.TrimSpace(raw)))
	if !l.IsValid() {
		return LetterAbsent, errUnknownLetter(raw)
	}
	return l, nil
}

// GradeBand is one row of the conversion table. The F band has an infinite
// lower bound, so callers that serialize bands must map them to a DTO first.
type GradeBand struct {
	// LowerBound is inclusive. The F band uses -Inf.
	LowerBound float64
	// UpperBound is the highest one-decimal score printed for the band.
	UpperBound float64
	Letter     Letter
	Point      float64
	// Representative is the score recorded when a user picks the letter
	// instead of typing a score. It always lies inside the band.
	Representative float64
}

// Contains reports whether score falls inside the band, using the lower bound
// of the next band up as the exclusive ceiling.
func (b GradeBand) Contains(score float64) bool {
	idx, ok := bandIndex(b.Letter)
	if !ok || math.IsNaN(score) {
		return false
	}
	if score < b.LowerBound {
		return false
	}
	if idx == 0 {
		return true
	}
	return score < bands[idx-1].LowerBound
}

// bands is ordered by descending lower bound; the first match wins.
var bands = [...]GradeBand{
	{LowerBound: 9.0, UpperBound: 10.0, Letter: LetterA, Point: 4.0, Representative: 9.5},
	{LowerBound: 8.0, UpperBound: 8.9, Letter: LetterBPlus, Point: 3.5, Representative: 8.5},
	{LowerBound: 7.0, UpperBound: 7.9, Letter: LetterB, Point: 3.0, Representative: 7.5},
	{LowerBound: 6.5, UpperBound: 6.9, Letter: LetterCPlus, Point: 2.5, Representative: 6.75},
	{LowerBound: 5.5, UpperBound: 6.4, Letter: LetterC, Point: 2.0, Representative: 6.0},
	{LowerBound: 5.0, UpperBound: 5.4, Letter: LetterDPlus, Point: 1.5, Representative: 5.25},
	{LowerBound: 4.0, UpperBound: 4.9, Letter: LetterD, Point: 1.0, Representative: 4.5},
	{LowerBound: math.Inf(-1), UpperBound: 3.9, Letter: LetterF, Point: 0.0, Representative: 2.0},
}

// Bands returns a copy of the conversion table, highest band first.
func Bands() []GradeBand {
	out := make([]GradeBand, len(bands))
	copy(out, bands[:])
	return out
}

// Letters returns the canonical letters, highest first.
func Letters() []Letter {
	out := make([]Letter, len(bands))
	for i, b := range bands {
		out[i] = b.Letter
	}
	return out
}

// BandFor returns the band for a letter.
func BandFor(letter Letter) (GradeBand, error) {
	idx, ok := bandIndex(letter)
	if !ok {
		return GradeBand{}, errUnknownLetter(string(letter))
	}
	return bands[idx], nil
}

func bandIndex(letter Letter) (int, bool) {
	for i := range bands {
		if bands[i].Letter == letter {
			return i, true
		}
	}
	return -1, false
}
