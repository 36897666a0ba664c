package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ReportRepository implements conformance.Repository for PostgreSQL.
type ReportRepository struct {
	conn *Connection
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(conn *Connection) *ReportRepository {
	return &ReportRepository{conn: conn}
}

// Compile-time interface check.
var _ conformance.Repository = (*ReportRepository)(nil)

const reportColumns = `id, started_at, finished_at, tolerance, status, semesters, courses, error`

// Save inserts or replaces a report together with its checks.
func (r *ReportRepository) Save(ctx context.Context, report *conformance.Report) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var finishedAt *time.Time
		if !report.FinishedAt.IsZero() {
			t := report.FinishedAt
			finishedAt = &t
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO conformance_reports
				(id, started_at, finished_at, tolerance, status, semesters, courses, checks_total, mismatches, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				finished_at = EXCLUDED.finished_at,
				status = EXCLUDED.status,
				semesters = EXCLUDED.semesters,
				courses = EXCLUDED.courses,
				checks_total = EXCLUDED.checks_total,
				mismatches = EXCLUDED.mismatches,
				error = EXCLUDED.error
		`,
			report.ID.String(),
			report.StartedAt,
			finishedAt,
			float64(report.Tolerance),
			string(report.Status),
			report.Semesters,
			report.Courses,
			len(report.Checks),
			report.MismatchCount(),
			report.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to save report %s: %w", report.ID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM conformance_checks WHERE report_id = $1`, report.ID.String()); err != nil {
			return fmt.Errorf("failed to clear checks of report %s: %w", report.ID, err)
		}
		if len(report.Checks) == 0 {
			return nil
		}

		rows := make([][]interface{}, 0, len(report.Checks))
		for i, c := range report.Checks {
			rows = append(rows, []interface{}{
				report.ID.String(), i, c.Subject, string(c.Field),
				c.Expected, c.Actual, c.ExpectedText, c.ActualText, c.Passed,
			})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"conformance_checks"},
			[]string{"report_id", "position", "subject", "field", "expected", "actual", "expected_text", "actual_text", "passed"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to save checks of report %s: %w", report.ID, err)
		}
		return nil
	})
}

// GetByID returns a report with its checks.
func (r *ReportRepository) GetByID(ctx context.Context, id shared.ReportID) (*conformance.Report, error) {
	var report *conformance.Report
	err := r.conn.WithReadTx(ctx, func(tx pgx.Tx) error {
		var err error
		row := tx.QueryRow(ctx, `SELECT `+reportColumns+` FROM conformance_reports WHERE id = $1`, id.String())
		if report, err = scanReport(row); err != nil {
			return err
		}
		return loadChecks(ctx, tx, report)
	})
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return report, nil
}

// Latest returns the most recent finished report with its checks.
func (r *ReportRepository) Latest(ctx context.Context) (*conformance.Report, error) {
	var report *conformance.Report
	err := r.conn.WithReadTx(ctx, func(tx pgx.Tx) error {
		var err error
		row := tx.QueryRow(ctx, `
			SELECT `+reportColumns+`
			FROM conformance_reports
			WHERE finished_at IS NOT NULL
			ORDER BY started_at DESC
			LIMIT 1
		`)
		if report, err = scanReport(row); err != nil {
			return err
		}
		return loadChecks(ctx, tx, report)
	})
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	return report, nil
}

// List returns the newest reports with their checks.
func (r *ReportRepository) List(ctx context.Context, limit int) ([]*conformance.Report, error) {
	if limit <= 0 {
		limit = 20
	}

	var reports []*conformance.Report
	err := r.conn.WithReadTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+reportColumns+`
			FROM conformance_reports
			ORDER BY started_at DESC
			LIMIT $1
		`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			report, err := scanReport(rows)
			if err != nil {
				return fmt.Errorf("failed to scan report: %w", err)
			}
			reports = append(reports, report)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		for _, report := range reports {
			if err := loadChecks(ctx, tx, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// DeleteOlderThan removes reports started before the given time. Checks go
// with them through ON DELETE CASCADE.
func (r *ReportRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM conformance_reports WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reports: %w", err)
	}
	return tag.RowsAffected(), nil
}

func loadChecks(ctx context.Context, tx pgx.Tx, report *conformance.Report) error {
	rows, err := tx.Query(ctx, `
		SELECT subject, field, expected, actual, expected_text, actual_text, passed
		FROM conformance_checks
		WHERE report_id = $1
		ORDER BY position
	`, report.ID.String())
	if err != nil {
		return fmt.Errorf("failed to query checks of report %s: %w", report.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c conformance.Check
		var field string
		if err := rows.Scan(&c.Subject, &field, &c.Expected, &c.Actual, &c.ExpectedText, &c.ActualText, &c.Passed); err != nil {
			return fmt.Errorf("failed to scan check: %w", err)
		}
		c.Field = conformance.Field(field)
		report.Checks = append(report.Checks, c)
	}
	return rows.Err()
}

func scanReport(row pgx.Row) (*conformance.Report, error) {
	var (
		id         string
		finishedAt *time.Time
		tolerance  float64
		status     string
		report     conformance.Report
	)
	err := row.Scan(&id, &report.StartedAt, &finishedAt, &tolerance, &status, &report.Semesters, &report.Courses, &report.Error)
	if err != nil {
		return nil, err
	}

	report.ID = shared.ReportID(id)
	report.Tolerance = conformance.Tolerance(tolerance)
	report.Status = conformance.Status(status)
	if finishedAt != nil {
		report.FinishedAt = *finishedAt
	}
	return &report, nil
}
