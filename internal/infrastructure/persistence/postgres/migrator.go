package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migrationsTable = "schema_migrations"

// Migration is one schema step. AppliedAt and IsApplied are filled by Status.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator over GetMigrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every pending migration, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range pendingMigrations(m.migrations, applied) {
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO `+migrationsTable+` (version, name) VALUES ($1, $2)`,
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Rollback reverts the newest applied migration and returns it. Nil when
// nothing is applied.
func (m *Migrator) Rollback(ctx context.Context) (*Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	last := lastApplied(m.migrations, applied)
	if last == nil {
		return nil, nil
	}

	err = m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, last.DownSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM `+migrationsTable+` WHERE version = $1`, last.Version)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rollback %03d_%s: %v", ErrMigrationFailed, last.Version, last.Name, err)
	}
	return last, nil
}

// Status lists every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	return migrationStatus(m.migrations, applied), nil
}

// applied creates the tracking table when missing and reads it.
func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int]time.Time)
	err = m.conn.WithReadTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT version, applied_at FROM `+migrationsTable)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var version int
			var at time.Time
			if err := rows.Scan(&version, &at); err != nil {
				return err
			}
			applied[version] = at
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	return applied, nil
}

func pendingMigrations(all []Migration, applied map[int]time.Time) []Migration {
	var pending []Migration
	for _, mig := range all {
		if _, ok := applied[mig.Version]; !ok {
			pending = append(pending, mig)
		}
	}
	return pending
}

func lastApplied(all []Migration, applied map[int]time.Time) *Migration {
	for i := len(all) - 1; i >= 0; i-- {
		if _, ok := applied[all[i].Version]; ok {
			mig := all[i]
			return &mig
		}
	}
	return nil
}

func migrationStatus(all []Migration, applied map[int]time.Time) []Migration {
	out := make([]Migration, len(all))
	for i, mig := range all {
		mig.AppliedAt, mig.IsApplied = applied[mig.Version]
		out[i] = mig
	}
	return out
}
