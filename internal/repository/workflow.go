package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/SinaHo/referral-bot-core/internal/model"
)

// transition moves the row id in table from the lifecycle's initial status to `to`,
// scanning the updated row into dest. The update is guarded by the expected current
// status, so of two concurrent reviewers only one succeeds. table and columns are
// package constants, never caller input.
func transition(
	ctx context.Context,
	db sqlx.ExtContext,
	lc model.Lifecycle,
	table, columns string,
	id int64,
	to model.Status,
	now Clock,
	dest interface{},
) error {
	if lc.IsTerminal(to) {
		q := `UPDATE ` + table + ` SET status = $2, reviewed_at = $3
			WHERE id = $1 AND status = $4
			RETURNING ` + columns
		err := sqlx.GetContext(ctx, db, dest, q, id, to, now(), lc.Initial)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("error updating %s %d: %w", lc.Name, id, err)
		}
	}

	// missed update or unreachable target: existence decides between not found and
	// invalid transition
	var current model.Status
	err := sqlx.GetContext(ctx, db, &current, `SELECT status FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %d: %w", lc.Name, id, ErrNotFound)
		}
		return fmt.Errorf("error selecting %s %d: %w", lc.Name, id, err)
	}
	if err := lc.Validate(current, to); err != nil {
		return err
	}
	return fmt.Errorf("%s %d: guarded update missed while status is still %q", lc.Name, id, current)
}
