package postgres

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_conformance_reports",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_conformance_checks",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CONFORMANCE REPORTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One row per conformance run
CREATE TABLE IF NOT EXISTS conformance_reports (
    id UUID PRIMARY KEY,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    finished_at TIMESTAMP WITH TIME ZONE,
    tolerance DOUBLE PRECISION NOT NULL,
    status VARCHAR(10) NOT NULL,
    semesters INTEGER NOT NULL DEFAULT 0,
    courses INTEGER NOT NULL DEFAULT 0,
    checks_total INTEGER NOT NULL DEFAULT 0,
    mismatches INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('pass', 'drift', 'error')),
    CONSTRAINT valid_tolerance CHECK (tolerance >= 0),
    CONSTRAINT valid_counts CHECK (semesters >= 0 AND courses >= 0 AND mismatches >= 0)
);

CREATE INDEX IF NOT EXISTS idx_conformance_reports_started_at ON conformance_reports(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_conformance_reports_status ON conformance_reports(status) WHERE status != 'pass';
`

const migration001Down = `
DROP TABLE IF EXISTS conformance_reports;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE CONFORMANCE CHECKS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Individual comparisons of a run
CREATE TABLE IF NOT EXISTS conformance_checks (
    id BIGSERIAL PRIMARY KEY,
    report_id UUID NOT NULL REFERENCES conformance_reports(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    subject VARCHAR(64) NOT NULL,
    field VARCHAR(32) NOT NULL,
    expected DOUBLE PRECISION NOT NULL DEFAULT 0,
    actual DOUBLE PRECISION NOT NULL DEFAULT 0,
    expected_text TEXT NOT NULL DEFAULT '',
    actual_text TEXT NOT NULL DEFAULT '',
    passed BOOLEAN NOT NULL,

    CONSTRAINT uq_conformance_checks_position UNIQUE (report_id, position)
);

CREATE INDEX IF NOT EXISTS idx_conformance_checks_failed ON conformance_checks(report_id) WHERE NOT passed;
`

const migration002Down = `
DROP TABLE IF EXISTS conformance_checks;
`
