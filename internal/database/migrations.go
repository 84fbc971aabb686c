package database

import (
	"context"
	"fmt"
)

// migrations is the ordered list of idempotent schema statements. The
// service owns its schema; statements must stay safe to re-run on startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS directions (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_directions_name_ci ON directions (LOWER(name))`,

	`CREATE TABLE IF NOT EXISTS departments (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		direction_id  TEXT NOT NULL REFERENCES directions(id) ON DELETE CASCADE,
		manager_email TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_departments_name_direction_ci
		ON departments (LOWER(name), direction_id)`,

	`CREATE TABLE IF NOT EXISTS employees (
		id            TEXT PRIMARY KEY,
		matricule     TEXT NOT NULL UNIQUE,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		email         TEXT,
		department_id TEXT REFERENCES departments(id) ON DELETE SET NULL,
		direction_id  TEXT REFERENCES directions(id) ON DELETE SET NULL,
		manager_email TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS import_batches (
		id          TEXT PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		uploaded_by TEXT NOT NULL,
		filename    TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS attendance_records (
		id                        TEXT PRIMARY KEY,
		employee_id               TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		date                      DATE NOT NULL,
		entry_time                TEXT,
		exit_time                 TEXT,
		presence_actual_secs      BIGINT,
		presence_expected_secs    BIGINT,
		late_arrival_secs         BIGINT,
		early_leave_secs          BIGINT,
		absence_justified_hours   NUMERIC(5,2) NOT NULL DEFAULT 0,
		absence_unjustified_hours NUMERIC(5,2) NOT NULL DEFAULT 0,
		odd_badge                 BOOLEAN NOT NULL DEFAULT FALSE,
		telework_planned          BOOLEAN NOT NULL DEFAULT FALSE,
		department_id             TEXT REFERENCES departments(id) ON DELETE SET NULL,
		direction_id              TEXT REFERENCES directions(id) ON DELETE SET NULL,
		batch_id                  TEXT REFERENCES import_batches(id) ON DELETE CASCADE,
		created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (employee_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_records_date ON attendance_records (date)`,

	`CREATE TABLE IF NOT EXISTS anomalies (
		id          TEXT PRIMARY KEY,
		record_id   TEXT NOT NULL REFERENCES attendance_records(id) ON DELETE CASCADE,
		type        TEXT NOT NULL,
		detail      TEXT NOT NULL DEFAULT '',
		is_holiday  BOOLEAN NOT NULL DEFAULT FALSE,
		is_leave    BOOLEAN NOT NULL DEFAULT FALSE,
		is_telework BOOLEAN NOT NULL DEFAULT FALSE,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_anomalies_record ON anomalies (record_id)`,

	`CREATE TABLE IF NOT EXISTS telework_days (
		id          TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		date        DATE NOT NULL,
		UNIQUE (employee_id, date)
	)`,

	`CREATE TABLE IF NOT EXISTS email_history (
		id            TEXT PRIMARY KEY,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		to_email      TEXT NOT NULL,
		cc_manager    TEXT,
		subject       TEXT NOT NULL,
		body          TEXT NOT NULL,
		status        TEXT NOT NULL,
		employee_id   TEXT REFERENCES employees(id) ON DELETE SET NULL,
		manager_email TEXT,
		batch_id      TEXT REFERENCES import_batches(id) ON DELETE SET NULL,
		record_id     TEXT REFERENCES attendance_records(id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_history_record ON email_history (record_id)`,

	`CREATE TABLE IF NOT EXISTS holidays (
		id    TEXT PRIMARY KEY,
		date  DATE NOT NULL UNIQUE,
		label TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate applies the schema statements in order.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
