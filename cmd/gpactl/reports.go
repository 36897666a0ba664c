package main

import (
	"context"
	"sync"
	"time"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// sessionReports хранит отчёты сверки до конца запуска gpactl,
// когда база данных не настроена.
type sessionReports struct {
	mu      sync.Mutex
	reports []*conformance.Report
}

func newSessionReports() *sessionReports {
	return &sessionReports{}
}

func (s *sessionReports) Save(_ context.Context, report *conformance.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append([]*conformance.Report{report}, s.reports...)
	return nil
}

func (s *sessionReports) GetByID(_ context.Context, id shared.ReportID) (*conformance.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, shared.ErrReportNotFound
}

func (s *sessionReports) Latest(context.Context) (*conformance.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return nil, shared.ErrReportNotFound
	}
	return s.reports[0], nil
}

func (s *sessionReports) List(_ context.Context, limit int) ([]*conformance.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.reports) {
		limit = len(s.reports)
	}
	out := make([]*conformance.Report, limit)
	copy(out, s.reports)
	return out, nil
}

func (s *sessionReports) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.reports[:0]
	var deleted int64
	for _, r := range s.reports {
		if r.StartedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.reports = kept
	return deleted, nil
}
