package grading

import (
	"fmt"
	"math"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

const (
	// MinScore and MaxScore bound scores accepted from user input.
	MinScore = 0.0
	MaxScore = 10.0
)

// ResolvedGrade is the letter and grade point derived for one course.
type ResolvedGrade struct {
	Letter     Letter  `json:"letter"`
	GradePoint float64 `json:"grade_point"`
}

// CourseGradeInput is a course as it enters the converter. When Score is set
// it is authoritative; otherwise Letter is used.
type CourseGradeInput struct {
	Credits int
	Score   *float64
	Letter  Letter
}

// WithScore builds an input graded by numeric score.
func WithScore(credits int, score float64) CourseGradeInput {
	return CourseGradeInput{Credits: credits, Score: &score}
}

// WithLetter builds an input graded by letter.
func WithLetter(credits int, letter Letter) CourseGradeInput {
	return CourseGradeInput{Credits: credits, Letter: letter}
}

// ScoreToGrade classifies a score. It never fails: the first band whose
// lower bound is <= score wins, so anything above 10 is an A and anything
// below 4.0 (NaN included) is an F. Use ValidateScore on untrusted input.
func ScoreToGrade(score float64) ResolvedGrade {
	for i := range bands {
		if bands[i].LowerBound <= score {
			return ResolvedGrade{Letter: bands[i].Letter, GradePoint: bands[i].Point}
		}
	}
	last := bands[len(bands)-1]
	return ResolvedGrade{Letter: last.Letter, GradePoint: last.Point}
}

// LetterToPoint returns the grade point of a letter. The match is exact:
// "b+" and " A" are unknown letters.
func LetterToPoint(letter string) (float64, error) {
	idx, ok := bandIndex(Letter(letter))
	if !ok {
		return 0, errUnknownLetter(letter)
	}
	return bands[idx].Point, nil
}

// LetterToRepresentativeScore returns the score recorded for a letter picked
// directly by the user. The values are fixed per band (C+ is 6.75, not the
// midpoint 6.7) and ScoreToGrade maps each of them back to its own letter.
func LetterToRepresentativeScore(letter string) (float64, error) {
	idx, ok := bandIndex(Letter(letter))
	if !ok {
		return 0, errUnknownLetter(letter)
	}
	return bands[idx].Representative, nil
}

// Resolve converts a course input into its letter and grade point.
func Resolve(in CourseGradeInput) (ResolvedGrade, error) {
	if in.Score != nil {
		return ScoreToGrade(*in.Score), nil
	}
	if in.Letter == LetterAbsent {
		return ResolvedGrade{}, shared.ErrNoGradeProvided
	}
	point, err := LetterToPoint(string(in.Letter))
	if err != nil {
		return ResolvedGrade{}, err
	}
	return ResolvedGrade{Letter: in.Letter, GradePoint: point}, nil
}

// ResolveWeighted resolves every input and pairs the grade point with its
// credits, ready for Aggregate. It stops at the first unresolvable input.
func ResolveWeighted(inputs []CourseGradeInput) ([]WeightedGrade, error) {
	out := make([]WeightedGrade, 0, len(inputs))
	for i, in := range inputs {
		rg, err := Resolve(in)
		if err != nil {
			return nil, fmt.Errorf("course %d: %w", i, err)
		}
		out = append(out, WeightedGrade{Credits: in.Credits, GradePoint: rg.GradePoint})
	}
	return out, nil
}

// ValidateScore rejects scores a user could not have earned: NaN, infinities
// and anything outside [0, 10].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return shared.ErrScoreOutOfRange
	}
	return nil
}

func errUnknownLetter(letter string) error {
	return &shared.DomainError{
		Domain:  shared.ErrUnknownGradeLetter.Domain,
		Op:      shared.ErrUnknownGradeLetter.Op,
		Kind:    shared.ErrUnknownGradeLetter.Kind,
		Message: shared.ErrUnknownGradeLetter.Message,
		Err:     fmt.Errorf("letter %q is not one of A, B+, B, C+, C, D+, D, F", letter),
	}
}
