package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/SinaHo/referral-bot-core/internal/model"
)

const userColumns = `tg_id, balance, referrer_id, activated, phone, created_at, last_bonus_at, banned`

// UserRepository owns user identity, balance, activation, phone and ban state.
type UserRepository interface {
	Create(ctx context.Context, id int64, referrerID *int64) (createdAt time.Time, created bool, err error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Lock(ctx context.Context, id int64) (*model.User, error)
	Activate(ctx context.Context, id int64) (referrerID *int64, err error)
	AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error
	Debit(ctx context.Context, id int64, amount decimal.Decimal) error
	GetBalance(ctx context.Context, id int64) (decimal.Decimal, error)
	SetPhone(ctx context.Context, id int64, phone string) error
	GetPhone(ctx context.Context, id int64) (*string, error)
	IsPhoneUsed(ctx context.Context, phone string, excluding *int64) (bool, error)
	GetLastBonusAt(ctx context.Context, id int64) (*time.Time, error)
	SetLastBonusAt(ctx context.Context, id int64, at time.Time) error
	ClaimBonusSlot(ctx context.Context, id int64, at, notAfter time.Time) (bool, error)
	Ban(ctx context.Context, id int64) error
	Unban(ctx context.Context, id int64) error
	IsBanned(ctx context.Context, id int64) (bool, error)
}

type userRepository struct {
	db  sqlx.ExtContext
	now Clock
}

// NewUserRepository constructs a UserRepository over a sqlx.DB or sqlx.Tx.
func NewUserRepository(db sqlx.ExtContext, now Clock) UserRepository {
	return &userRepository{db: db, now: now}
}

// Create inserts a user with zero balance if the id is free. created is false when the
// user already exists; the existing row is left untouched. A self-referral is dropped.
func (r *userRepository) Create(ctx context.Context, id int64, referrerID *int64) (time.Time, bool, error) {
	if referrerID != nil && *referrerID == id {
		referrerID = nil
	}

	const q = `
		INSERT INTO users (tg_id, balance, referrer_id, activated, phone, created_at, last_bonus_at, banned)
		VALUES ($1, 0, $2, FALSE, NULL, $3, NULL, FALSE)
		ON CONFLICT (tg_id) DO NOTHING
		RETURNING created_at
	`
	var createdAt time.Time
	err := sqlx.GetContext(ctx, r.db, &createdAt, q, id, referrerID, r.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("error inserting user %d: %w", id, err)
	}
	return createdAt, true, nil
}

// Get fetches a user row by id. Returns (nil, nil) if not found.
func (r *userRepository) Get(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, r.db, &u, `SELECT `+userColumns+` FROM users WHERE tg_id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error selecting user %d: %w", id, err)
	}
	return &u, nil
}

// Lock reads the user with FOR UPDATE, serializing composite operations on the same
// user until the surrounding transaction ends. Outside a transaction it is a plain read.
func (r *userRepository) Lock(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, r.db, &u, `SELECT `+userColumns+` FROM users WHERE tg_id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error locking user %d: %w", id, err)
	}
	return &u, nil
}

// Activate flips activated from false to true in a single conditional update and
// returns the stored referrer. Only the caller that performs the flip gets a nil error;
// every other caller gets ErrAlreadyActivated (or ErrNotFound).
func (r *userRepository) Activate(ctx context.Context, id int64) (*int64, error) {
	const q = `
		UPDATE users SET activated = TRUE
		WHERE tg_id = $1 AND activated = FALSE
		RETURNING referrer_id
	`
	var referrer sql.NullInt64
	err := sqlx.GetContext(ctx, r.db, &referrer, q, id)
	if err == nil {
		if !referrer.Valid {
			return nil, nil
		}
		ref := referrer.Int64
		return &ref, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error activating user %d: %w", id, err)
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil, ErrAlreadyActivated
}

// AddBalance applies a signed delta in place. The resulting balance may go negative.
func (r *userRepository) AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	ok, err := execOne(ctx, r.db, `UPDATE users SET balance = balance + $2 WHERE tg_id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("error updating balance of user %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// Debit subtracts amount only if the balance covers it.
func (r *userRepository) Debit(ctx context.Context, id int64, amount decimal.Decimal) error {
	ok, err := execOne(ctx, r.db,
		`UPDATE users SET balance = balance - $2 WHERE tg_id = $1 AND balance >= $2`, id, amount)
	if err != nil {
		return fmt.Errorf("error debiting user %d: %w", id, err)
	}
	if ok {
		return nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return ErrInsufficientFunds
}

// GetBalance returns zero for unknown users.
func (r *userRepository) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := sqlx.GetContext(ctx, r.db, &balance, `SELECT balance FROM users WHERE tg_id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("error selecting balance of user %d: %w", id, err)
	}
	return balance, nil
}

// SetPhone stores the phone; an empty phone clears it. The users_phone_key unique index
// turns a concurrent duplicate into ErrPhoneTaken.
func (r *userRepository) SetPhone(ctx context.Context, id int64, phone string) error {
	var value *string
	if phone != "" {
		value = &phone
	}
	ok, err := execOne(ctx, r.db, `UPDATE users SET phone = $2 WHERE tg_id = $1`, id, value)
	if err != nil {
		if isUniqueViolation(err, phoneUniqueConstraint) {
			return ErrPhoneTaken
		}
		return fmt.Errorf("error setting phone of user %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *userRepository) GetPhone(ctx context.Context, id int64) (*string, error) {
	var phone sql.NullString
	err := sqlx.GetContext(ctx, r.db, &phone, `SELECT phone FROM users WHERE tg_id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error selecting phone of user %d: %w", id, err)
	}
	if !phone.Valid {
		return nil, nil
	}
	return &phone.String, nil
}

// IsPhoneUsed reports whether another user holds phone. excluding skips the
// caller's own row.
func (r *userRepository) IsPhoneUsed(ctx context.Context, phone string, excluding *int64) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM users
			WHERE phone = $1 AND ($2::BIGINT IS NULL OR tg_id <> $2)
		)
	`
	var used bool
	if err := sqlx.GetContext(ctx, r.db, &used, q, phone, excluding); err != nil {
		return false, fmt.Errorf("error checking phone usage: %w", err)
	}
	return used, nil
}

func (r *userRepository) GetLastBonusAt(ctx context.Context, id int64) (*time.Time, error) {
	var at sql.NullTime
	err := sqlx.GetContext(ctx, r.db, &at, `SELECT last_bonus_at FROM users WHERE tg_id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error selecting last bonus of user %d: %w", id, err)
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Time, nil
}

func (r *userRepository) SetLastBonusAt(ctx context.Context, id int64, at time.Time) error {
	ok, err := execOne(ctx, r.db, `UPDATE users SET last_bonus_at = $2 WHERE tg_id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("error setting last bonus of user %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// ClaimBonusSlot sets last_bonus_at to at only when it is unset or not later than
// notAfter. It reports whether the slot was taken by this call.
func (r *userRepository) ClaimBonusSlot(ctx context.Context, id int64, at, notAfter time.Time) (bool, error) {
	const q = `
		UPDATE users SET last_bonus_at = $2
		WHERE tg_id = $1 AND (last_bonus_at IS NULL OR last_bonus_at <= $3)
	`
	ok, err := execOne(ctx, r.db, q, id, at, notAfter)
	if err != nil {
		return false, fmt.Errorf("error claiming bonus slot of user %d: %w", id, err)
	}
	return ok, nil
}

func (r *userRepository) Ban(ctx context.Context, id int64) error {
	return r.setBanned(ctx, id, true)
}

func (r *userRepository) Unban(ctx context.Context, id int64) error {
	return r.setBanned(ctx, id, false)
}

func (r *userRepository) setBanned(ctx context.Context, id int64, banned bool) error {
	ok, err := execOne(ctx, r.db, `UPDATE users SET banned = $2 WHERE tg_id = $1`, id, banned)
	if err != nil {
		return fmt.Errorf("error updating ban flag of user %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// IsBanned is false for unknown users.
func (r *userRepository) IsBanned(ctx context.Context, id int64) (bool, error) {
	var banned bool
	err := sqlx.GetContext(ctx, r.db, &banned, `SELECT banned FROM users WHERE tg_id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error selecting ban flag of user %d: %w", id, err)
	}
	return banned, nil
}

func (r *userRepository) exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE tg_id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("error checking user %d: %w", id, err)
	}
	return exists, nil
}
