package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/SinaHo/referral-bot-core/internal/model"
)

// Expected, non-fatal outcomes. Anything else returned by a repository is a storage
// failure the caller should treat as retryable.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyActivated  = errors.New("user already activated")
	ErrPhoneTaken        = errors.New("phone already used by another user")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrInvalidTransition = model.ErrInvalidTransition
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	phoneUniqueConstraint = "users_phone_key"
)

// pgError returns the SQLSTATE code and constraint name of a Postgres error, if err is one.
func pgError(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", "", false
	}
	return string(pqErr.Code), pqErr.Constraint, true
}

func isUniqueViolation(err error, constraint string) bool {
	code, c, ok := pgError(err)
	return ok && code == pgUniqueViolation && c == constraint
}

func isForeignKeyViolation(err error) bool {
	code, _, ok := pgError(err)
	return ok && code == pgForeignKeyViolation
}

// execOne runs a statement and reports whether it touched at least one row.
func execOne(ctx context.Context, q sqlx.ExecerContext, query string, args ...interface{}) (bool, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func limitOrDefault(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
