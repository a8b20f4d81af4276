package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Clock supplies timestamps written by the repositories.
type Clock func() time.Time

// Store groups the repositories over one database handle and runs work in a
// transaction. Repositories obtained from the Store passed to fn share that transaction.
type Store interface {
	Users() UserRepository
	Withdrawals() WithdrawalRepository
	Submissions() SubmissionRepository
	Stats() StatsRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type Option func(*sqlStore)

// WithClock overrides time.Now, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *sqlStore) { s.now = c }
}

type sqlStore struct {
	db  *sqlx.DB // nil when the store is bound to a transaction
	q   sqlx.ExtContext
	now Clock
}

// NewStore constructs a Store backed by a sqlx.DB.
func NewStore(db *sqlx.DB, opts ...Option) Store {
	s := &sqlStore{
		db:  db,
		q:   db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *sqlStore) Users() UserRepository             { return NewUserRepository(s.q, s.now) }
func (s *sqlStore) Withdrawals() WithdrawalRepository { return NewWithdrawalRepository(s.q, s.now) }
func (s *sqlStore) Submissions() SubmissionRepository { return NewSubmissionRepository(s.q, s.now) }
func (s *sqlStore) Stats() StatsRepository            { return NewStatsRepository(s.q, s.now) }

// WithinTx commits when fn returns nil and rolls back otherwise. Nested calls reuse
// the outer transaction.
func (s *sqlStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlStore{q: tx, now: s.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}
