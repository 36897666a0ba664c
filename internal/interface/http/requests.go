package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gpa-hub/gpa-tracker/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report JSON field names instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var (
	// errEmptyBody is returned by decodeJSON when the body is empty and not allowed.
	errEmptyBody = errors.New("request body is empty")

	errMalformedBody = errors.New("malformed JSON body")
)

// decodeJSON decodes the body into dst and validates it. With allowEmpty an
// empty body leaves dst at its zero value.
func decodeJSON(r *http.Request, dst interface{}, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if !allowEmpty {
				return errEmptyBody
			}
		} else {
			return fmt.Errorf("%w: %v", errMalformedBody, err)
		}
	}
	return validate.Struct(dst)
}

// validationFields flattens validator errors into field -> message.
func validationFields(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		field := strings.TrimPrefix(e.Namespace(), strings.SplitN(e.Namespace(), ".", 2)[0]+".")
		switch e.Tag() {
		case "required", "required_without":
			out[field] = "is required"
		case "oneof":
			out[field] = "must be one of " + e.Param()
		case "gte", "min":
			out[field] = "must be at least " + e.Param()
		case "lte", "max":
			out[field] = "must be at most " + e.Param()
		default:
			out[field] = "failed on " + e.Tag()
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

// ConvertGradeRequest is the body of POST /api/v1/grades/convert.
type ConvertGradeRequest struct {
	Score  *float64 `json:"score" validate:"required_without=Letter,omitempty,gte=0,lte=10"`
	Letter string   `json:"letter" validate:"omitempty,oneof=A B+ B C+ C D+ D F"`
}

func (r ConvertGradeRequest) toQuery() query.ConvertGradeQuery {
	return query.ConvertGradeQuery{Score: r.Score, Letter: r.Letter}
}

// CourseRequest is one course of an aggregation request.
type CourseRequest struct {
	Credits int      `json:"credits" validate:"gte=0,lte=30"`
	Score   *float64 `json:"score" validate:"required_without=Letter,omitempty,gte=0,lte=10"`
	Letter  string   `json:"letter" validate:"omitempty,oneof=A B+ B C+ C D+ D F"`
}

// SemesterRequest groups courses of an aggregation request.
type SemesterRequest struct {
	Name    string          `json:"name" validate:"max=100"`
	Courses []CourseRequest `json:"courses" validate:"dive"`
}

// AggregateGPARequest is the body of POST /api/v1/gpa/aggregate.
type AggregateGPARequest struct {
	Semesters []SemesterRequest `json:"semesters" validate:"required,min=1,max=40,dive"`
}

func (r AggregateGPARequest) toQuery() query.AggregateGPAQuery {
	q := query.AggregateGPAQuery{Semesters: make([]query.SemesterInput, 0, len(r.Semesters))}
	for _, s := range r.Semesters {
		in := query.SemesterInput{Name: s.Name, Courses: make([]query.CourseInput, 0, len(s.Courses))}
		for _, c := range s.Courses {
			in.Courses = append(in.Courses, query.CourseInput{Credits: c.Credits, Score: c.Score, Letter: c.Letter})
		}
		q.Semesters = append(q.Semesters, in)
	}
	return q
}

// RunConformanceRequest is the optional body of POST /api/v1/conformance/run.
type RunConformanceRequest struct {
	Tolerance *float64 `json:"tolerance" validate:"omitempty,gte=0,lte=1"`
}
