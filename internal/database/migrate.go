package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// advisory lock key shared by every process running migrations against the same database
const migrationLockKey int64 = 0x5245464d // "REFM"

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	id SERIAL PRIMARY KEY,
	version VARCHAR(255) NOT NULL UNIQUE,
	run_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Step is one named, ordered schema change. Apply runs inside the step's transaction.
type Step struct {
	Version string
	Apply   func(ctx context.Context, tx *sqlx.Tx) error
}

// Exec returns an Apply func running a fixed statement. Statements must be idempotent
// on their own (IF NOT EXISTS) because a legacy database may already contain the object.
func Exec(stmt string) func(ctx context.Context, tx *sqlx.Tx) error {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, stmt)
		return err
	}
}

// AddColumn adds table.column unless it is already there. The existence check replaces
// error suppression: any failure of the ALTER itself propagates.
func AddColumn(table, column, definition string) func(ctx context.Context, tx *sqlx.Tx) error {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		const q = `
			SELECT EXISTS(
				SELECT 1 FROM information_schema.columns
				WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
			)
		`
		var exists bool
		if err := tx.GetContext(ctx, &exists, q, table, column); err != nil {
			return fmt.Errorf("error checking column %s.%s: %w", table, column, err)
		}
		if exists {
			return nil
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition))
		return err
	}
}

// Migrator applies Steps in order, recording each version in schema_migrations.
type Migrator struct {
	db     *sqlx.DB
	steps  []Step
	logger *zap.SugaredLogger
}

func NewMigrator(db *sqlx.DB, steps []Step, logger *zap.SugaredLogger) *Migrator {
	return &Migrator{db: db, steps: steps, logger: logger}
}

// Migrate brings the schema up to date with the built-in step list.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.SugaredLogger) ([]string, error) {
	return NewMigrator(db, Steps(), logger).Run(ctx)
}

// Run applies every step not yet recorded and returns the versions it applied.
func (m *Migrator) Run(ctx context.Context) ([]string, error) {
	if err := m.inLockedTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, createMigrationsTable)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := []string{}
	for _, step := range m.steps {
		ran, err := m.apply(ctx, step)
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", step.Version, err)
		}
		if ran {
			m.logger.Infow("applied migration", "version", step.Version)
			applied = append(applied, step.Version)
		}
	}
	m.logger.Infow("schema up to date", "applied", len(applied), "known", len(m.steps))
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, step Step) (bool, error) {
	ran := false
	err := m.inLockedTx(ctx, func(tx *sqlx.Tx) error {
		var done bool
		if err := tx.GetContext(ctx, &done,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, step.Version); err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := step.Apply(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, step.Version); err != nil {
			return err
		}
		ran = true
		return nil
	})
	return ran, err
}

func (m *Migrator) inLockedTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
