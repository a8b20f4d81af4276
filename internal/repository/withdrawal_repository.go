package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/SinaHo/referral-bot-core/internal/model"
)

const (
	withdrawalColumns = `id, tg_id, method, details, amount, status, created_at, reviewed_at`

	// DefaultPendingLimit bounds the admin review queue when no limit is given.
	DefaultPendingLimit = 30
)

// WithdrawalRepository records cash-out requests and their review decisions.
type WithdrawalRepository interface {
	Create(ctx context.Context, userID int64, method, details string, amount decimal.Decimal) (int64, error)
	Get(ctx context.Context, id int64) (*model.Withdrawal, error)
	SetStatus(ctx context.Context, id int64, status model.Status) (*model.Withdrawal, error)
	ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error)
}

type withdrawalRepository struct {
	db  sqlx.ExtContext
	now Clock
}

func NewWithdrawalRepository(db sqlx.ExtContext, now Clock) WithdrawalRepository {
	return &withdrawalRepository{db: db, now: now}
}

// Create always inserts a new request with status "new". An unknown owner yields ErrNotFound.
func (r *withdrawalRepository) Create(ctx context.Context, userID int64, method, details string, amount decimal.Decimal) (int64, error) {
	const q = `
		INSERT INTO withdrawals (tg_id, method, details, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := sqlx.GetContext(ctx, r.db, &id, q, userID, method, details, amount, model.WithdrawalLifecycle.Initial, r.now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return 0, fmt.Errorf("error inserting withdrawal: %w", err)
	}
	return id, nil
}

// Get returns (nil, nil) if the request does not exist.
func (r *withdrawalRepository) Get(ctx context.Context, id int64) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := sqlx.GetContext(ctx, r.db, &w, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error selecting withdrawal %d: %w", id, err)
	}
	return &w, nil
}

// SetStatus applies an admin decision. Only new -> approved and new -> rejected are
// allowed; anything else is ErrInvalidTransition.
func (r *withdrawalRepository) SetStatus(ctx context.Context, id int64, status model.Status) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := transition(ctx, r.db, model.WithdrawalLifecycle, "withdrawals", withdrawalColumns, id, status, r.now, &w)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListPending returns the review queue, oldest first.
func (r *withdrawalRepository) ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	q := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE status = $1 ORDER BY id ASC LIMIT $2`
	items := []model.Withdrawal{}
	err := sqlx.SelectContext(ctx, r.db, &items, q, model.WithdrawalLifecycle.Initial, limitOrDefault(limit, DefaultPendingLimit))
	if err != nil {
		return nil, fmt.Errorf("error listing pending withdrawals: %w", err)
	}
	return items, nil
}
