// Package grading is the reference implementation of grade normalization and
// GPA aggregation.
//
// A course grade exists in three representations: a numeric score on the
// 0-10 scale, a letter grade (A, B+, B, C+, C, D+, D, F) and a grade point on
// the 4.0 scale. The mapping between them is a fixed table of eight bands:
//
//	score >= 9.0  → A   4.0
//	score >= 8.0  → B+  3.5
//	score >= 7.0  → B   3.0
//	score >= 6.5  → C+  2.5
//	score >= 5.5  → C   2.0
//	score >= 5.0  → D+  1.5
//	score >= 4.0  → D   1.0
//	otherwise     → F   0.0
//
// Aggregation is a credit-weighted mean of grade points. The same reduction
// computes a semester GPA and the cumulative GPA; only the course population
// differs.
//
// Everything in this package is pure and safe for concurrent use. The band
// table is constant for the lifetime of the process.
package grading
