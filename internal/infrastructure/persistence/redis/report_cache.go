package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/pkg/circuitbreaker"
)

// store is the subset of Cache used by ReportCache.
type store interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// ReportCache implements conformance.Cache. Calls go through a circuit
// breaker so that a dead Redis costs one fast failure per request instead
// of a dial timeout.
type ReportCache struct {
	store   store
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewReportCache creates a ReportCache. A zero ttl means TTLLatestReport.
func NewReportCache(cache *Cache, ttl time.Duration, logger *slog.Logger) *ReportCache {
	return newReportCache(cache, ttl, logger)
}

func newReportCache(s store, ttl time.Duration, logger *slog.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = TTLLatestReport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportCache{
		store: s,
		ttl:   ttl,
		breaker: circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}, circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, ErrCacheMiss)
		})),
	}
}

// GetLatest returns the cached report or conformance's ErrReportNotFound.
func (c *ReportCache) GetLatest(ctx context.Context) (*conformance.Report, error) {
	var rec reportRecord
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.store.Get(ctx, LatestReportKey(), &rec)
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrReportNotFound
		}
		return nil, fmt.Errorf("get latest report: %w", err)
	}
	return rec.toDomain()
}

// SetLatest caches report as the latest one.
func (c *ReportCache) SetLatest(ctx context.Context, report *conformance.Report) error {
	if report == nil {
		return ErrCacheNilValue
	}
	rec := recordFromDomain(report)
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.store.Set(ctx, LatestReportKey(), rec, c.ttl)
	})
}

// Invalidate drops the cached report.
func (c *ReportCache) Invalidate(ctx context.Context) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.store.Delete(ctx, LatestReportKey())
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERIALIZATION
// ══════════════════════════════════════════════════════════════════════════════

type reportRecord struct {
	ID         string              `json:"id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Tolerance  float64             `json:"tolerance"`
	Status     string              `json:"status"`
	Semesters  int                 `json:"semesters"`
	Courses    int                 `json:"courses"`
	Checks     []conformance.Check `json:"checks"`
	Error      string              `json:"error,omitempty"`
}

func recordFromDomain(r *conformance.Report) reportRecord {
	return reportRecord{
		ID:         r.ID.String(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Tolerance:  float64(r.Tolerance),
		Status:     string(r.Status),
		Semesters:  r.Semesters,
		Courses:    r.Courses,
		Checks:     r.Checks,
		Error:      r.Error,
	}
}

func (rec reportRecord) toDomain() (*conformance.Report, error) {
	id, err := shared.NewReportID(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return &conformance.Report{
		ID:         id,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Tolerance:  conformance.Tolerance(rec.Tolerance),
		Status:     conformance.Status(rec.Status),
		Semesters:  rec.Semesters,
		Courses:    rec.Courses,
		Checks:     rec.Checks,
		Error:      rec.Error,
	}, nil
}
