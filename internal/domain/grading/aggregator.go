package grading

// WeightedGrade is one course reduced to what the aggregator needs.
type WeightedGrade struct {
	Credits    int     `json:"credits"`
	GradePoint float64 `json:"grade_point"`
}

// GpaResult is the outcome of an aggregation. It is recomputed from scratch
// whenever the inputs change and never mutated.
type GpaResult struct {
	TotalWeightedPoints float64 `json:"total_weighted_points"`
	TotalCredits        int     `json:"total_credits"`
	GPA                 float64 `json:"gpa"`
}

// IsEmpty reports whether no credits were aggregated.
func (r GpaResult) IsEmpty() bool {
	return r.TotalCredits == 0
}

// Standing classifies the GPA of the result.
func (r GpaResult) Standing() Standing {
	return StandingFor(r.GPA)
}

// Aggregate computes the credit-weighted mean grade point. Courses are
// summed in input order and nothing is rounded. Zero total credits yield a
// GPA of 0, which is a valid state for an empty semester.
func Aggregate(courses []WeightedGrade) GpaResult {
	var res GpaResult
	for _, c := range courses {
		res.TotalWeightedPoints += float64(c.Credits) * c.GradePoint
		res.TotalCredits += c.Credits
	}
	if res.TotalCredits > 0 {
		res.GPA = res.TotalWeightedPoints / float64(res.TotalCredits)
	}
	return res
}

// AggregateSemesters computes one result per semester and the cumulative
// result over the union of all courses. The cumulative GPA is therefore
// credit-weighted across semesters, not the mean of semester GPAs.
func AggregateSemesters(semesters [][]WeightedGrade) ([]GpaResult, GpaResult) {
	per := make([]GpaResult, len(semesters))
	n := 0
	for i, courses := range semesters {
		per[i] = Aggregate(courses)
		n += len(courses)
	}

	all := make([]WeightedGrade, 0, n)
	for _, courses := range semesters {
		all = append(all, courses...)
	}
	return per, Aggregate(all)
}
