package grading

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

func TestScoreToGrade_FixedPoints(t *testing.T) {
	tests := []struct {
		score  float64
		letter Letter
		point  float64
	}{
		{10.0, LetterA, 4.0},
		{9.0, LetterA, 4.0},
		{8.99, LetterBPlus, 3.5},
		{8.0, LetterBPlus, 3.5},
		{7.9, LetterB, 3.0},
		{7.0, LetterB, 3.0},
		{6.9, LetterCPlus, 2.5},
		{6.5, LetterCPlus, 2.5},
		{6.4, LetterC, 2.0},
		{5.5, LetterC, 2.0},
		{5.4, LetterDPlus, 1.5},
		{5.0, LetterDPlus, 1.5},
		{4.9, LetterD, 1.0},
		{4.0, LetterD, 1.0},
		{3.9, LetterF, 0.0},
		{0.0, LetterF, 0.0},
	}

	for _, tt := range tests {
		got := ScoreToGrade(tt.score)
		assert.Equal(t, tt.letter, got.Letter, "score %v", tt.score)
		assert.Equal(t, tt.point, got.GradePoint, "score %v", tt.score)
	}
}

func TestScoreToGrade_OutOfRangeIsTotal(t *testing.T) {
	assert.Equal(t, ResolvedGrade{Letter: LetterA, GradePoint: 4.0}, ScoreToGrade(10.5))
	assert.Equal(t, ResolvedGrade{Letter: LetterA, GradePoint: 4.0}, ScoreToGrade(math.Inf(1)))
	assert.Equal(t, ResolvedGrade{Letter: LetterF, GradePoint: 0.0}, ScoreToGrade(-3))
	assert.Equal(t, ResolvedGrade{Letter: LetterF, GradePoint: 0.0}, ScoreToGrade(math.Inf(-1)))
	assert.Equal(t, ResolvedGrade{Letter: LetterF, GradePoint: 0.0}, ScoreToGrade(math.NaN()))
}

func TestScoreToGrade_Monotonic(t *testing.T) {
	prev := -1.0
	for i := 400; i <= 1000; i++ {
		s := float64(i) / 100
		p := ScoreToGrade(s).GradePoint
		assert.GreaterOrEqual(t, p, prev, "score %v", s)
		prev = p
	}
}

func TestLetterToPoint(t *testing.T) {
	want := map[string]float64{
		"A": 4.0, "B+": 3.5, "B": 3.0, "C+": 2.5,
		"C": 2.0, "D+": 1.5, "D": 1.0, "F": 0.0,
	}
	for letter, point := range want {
		got, err := LetterToPoint(letter)
		require.NoError(t, err, letter)
		assert.Equal(t, point, got, letter)
	}
}

func TestLetterToPoint_Unknown(t *testing.T) {
	for _, letter := range []string{"Z", "", "a", "b+", " A", "A+", "E"} {
		_, err := LetterToPoint(letter)
		require.Error(t, err, "letter %q", letter)
		assert.True(t, errors.Is(err, shared.ErrUnknownGradeLetter), "letter %q", letter)
		assert.True(t, shared.IsValidation(err))
	}
}

func TestLetterToRepresentativeScore(t *testing.T) {
	want := map[string]float64{
		"A": 9.5, "B+": 8.5, "B": 7.5, "C+": 6.75,
		"C": 6.0, "D+": 5.25, "D": 4.5, "F": 2.0,
	}
	for letter, score := range want {
		got, err := LetterToRepresentativeScore(letter)
		require.NoError(t, err, letter)
		assert.Equal(t, score, got, letter)
	}

	_, err := LetterToRepresentativeScore("Z")
	assert.ErrorIs(t, err, shared.ErrUnknownGradeLetter)
}

func TestRepresentativeScore_RoundTrip(t *testing.T) {
	for _, l := range Letters() {
		score, err := LetterToRepresentativeScore(string(l))
		require.NoError(t, err)
		assert.Equal(t, l, ScoreToGrade(score).Letter, "letter %s", l)
		assert.NoError(t, ValidateScore(score))
	}
}

func TestResolve(t *testing.T) {
	t.Run("score wins over letter", func(t *testing.T) {
		in := WithScore(3, 8.2)
		in.Letter = LetterF
		got, err := Resolve(in)
		require.NoError(t, err)
		assert.Equal(t, ResolvedGrade{Letter: LetterBPlus, GradePoint: 3.5}, got)
	})

	t.Run("letter path", func(t *testing.T) {
		got, err := Resolve(WithLetter(2, LetterCPlus))
		require.NoError(t, err)
		assert.Equal(t, ResolvedGrade{Letter: LetterCPlus, GradePoint: 2.5}, got)
	})

	t.Run("unknown letter", func(t *testing.T) {
		_, err := Resolve(WithLetter(2, Letter("Q")))
		assert.ErrorIs(t, err, shared.ErrUnknownGradeLetter)
	})

	t.Run("nothing to resolve", func(t *testing.T) {
		_, err := Resolve(CourseGradeInput{Credits: 2})
		assert.ErrorIs(t, err, shared.ErrNoGradeProvided)
	})
}

func TestResolveWeighted(t *testing.T) {
	got, err := ResolveWeighted([]CourseGradeInput{
		WithScore(3, 8.0),
		WithLetter(4, LetterA),
		WithScore(3, 7.2),
	})
	require.NoError(t, err)
	assert.Equal(t, []WeightedGrade{
		{Credits: 3, GradePoint: 3.5},
		{Credits: 4, GradePoint: 4.0},
		{Credits: 3, GradePoint: 3.0},
	}, got)

	_, err = ResolveWeighted([]CourseGradeInput{WithScore(3, 8.0), WithLetter(1, "X")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "course 1")
	assert.ErrorIs(t, err, shared.ErrUnknownGradeLetter)
}

func TestValidateScore(t *testing.T) {
	for _, s := range []float64{0, 4, 9.99, 10} {
		assert.NoError(t, ValidateScore(s), "score %v", s)
	}
	for _, s := range []float64{-0.01, 10.01, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.ErrorIs(t, ValidateScore(s), shared.ErrScoreOutOfRange, "score %v", s)
	}
}

func TestParseLetter(t *testing.T) {
	l, err := ParseLetter(" b+ ")
	require.NoError(t, err)
	assert.Equal(t, LetterBPlus, l)

	_, err = ParseLetter("G")
	assert.ErrorIs(t, err, shared.ErrUnknownGradeLetter)
}

func TestBands_Contiguous(t *testing.T) {
	bs := Bands()
	require.Len(t, bs, 8)
	assert.True(t, math.IsInf(bs[len(bs)-1].LowerBound, -1))
	for i := 1; i < len(bs); i++ {
		assert.Less(t, bs[i].LowerBound, bs[i-1].LowerBound)
		assert.Less(t, bs[i].Point, bs[i-1].Point)
		assert.True(t, bs[i].Contains(bs[i].Representative))
		assert.False(t, bs[i].Contains(bs[i-1].LowerBound))
	}

	// Mutating the copy leaves the table intact.
	bs[0].Point = 99
	assert.Equal(t, 4.0, Bands()[0].Point)
}

func TestBandFor(t *testing.T) {
	b, err := BandFor(LetterD)
	require.NoError(t, err)
	assert.Equal(t, 4.0, b.LowerBound)
	assert.Equal(t, 4.9, b.UpperBound)

	_, err = BandFor("X")
	assert.ErrorIs(t, err, shared.ErrUnknownGradeLetter)
}
