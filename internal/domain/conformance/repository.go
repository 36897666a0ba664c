package conformance

import (
	"context"
	"time"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит отчёты о проверках.
type Repository interface {
	// Save сохраняет отчёт вместе с проверками.
	Save(ctx context.Context, report *Report) error

	// GetByID возвращает отчёт по ID.
	// Возвращает ErrReportNotFound, если отчёт не найден.
	GetByID(ctx context.Context, id shared.ReportID) (*Report, error)

	// Latest возвращает последний завершённый отчёт.
	// Возвращает ErrReportNotFound, если отчётов нет.
	Latest(ctx context.Context) (*Report, error)

	// List возвращает последние отчёты, новые первыми.
	List(ctx context.Context, limit int) ([]*Report, error)

	// DeleteOlderThan удаляет отчёты старше указанного момента.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Cache кеширует последний отчёт.
type Cache interface {
	// GetLatest возвращает закешированный отчёт.
	// Возвращает ErrReportNotFound при промахе.
	GetLatest(ctx context.Context) (*Report, error)

	// SetLatest сохраняет отчёт как последний.
	SetLatest(ctx context.Context, report *Report) error

	// Invalidate удаляет закешированный отчёт.
	Invalidate(ctx context.Context) error
}
