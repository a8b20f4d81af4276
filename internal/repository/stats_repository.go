package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/SinaHo/referral-bot-core/internal/model"
)

const (
	DefaultTopReferrersLimit = 10
	DefaultListUsersLimit    = 200
)

// StatsRepository is the read-only reporting side used by admins and broadcasts.
type StatsRepository interface {
	Stats(ctx context.Context) (model.Stats, error)
	TopReferrers(ctx context.Context, limit int) ([]model.ReferrerCount, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
}

type statsRepository struct {
	db  sqlx.ExtContext
	now Clock
}

func NewStatsRepository(db sqlx.ExtContext, now Clock) StatsRepository {
	return &statsRepository{db: db, now: now}
}

// Stats computes every counter in one statement so the numbers are mutually consistent.
// New24h counts users created strictly after now-24h.
func (r *statsRepository) Stats(ctx context.Context) (model.Stats, error) {
	const q = `
		SELECT
			COUNT(*) AS total_users,
			COUNT(*) FILTER (WHERE activated) AS activated_users,
			COUNT(*) FILTER (WHERE phone IS NOT NULL AND phone <> '') AS with_phone,
			COUNT(*) FILTER (WHERE banned) AS banned_users,
			COUNT(*) FILTER (WHERE created_at > $1) AS new_24h,
			(SELECT COUNT(*) FROM withdrawals WHERE status = $2) AS pending_withdrawals,
			(SELECT COUNT(*) FROM task_submissions WHERE status = $3) AS pending_submissions
		FROM users
	`
	since := r.now().Add(-24 * time.Hour)

	var s model.Stats
	err := sqlx.GetContext(ctx, r.db, &s, q, since,
		model.WithdrawalLifecycle.Initial, model.SubmissionLifecycle.Initial)
	if err != nil {
		return model.Stats{}, fmt.Errorf("error computing stats: %w", err)
	}
	return s, nil
}

// TopReferrers counts activated referrals per referrer, highest first.
func (r *statsRepository) TopReferrers(ctx context.Context, limit int) ([]model.ReferrerCount, error) {
	const q = `
		SELECT referrer_id, COUNT(*) AS cnt
		FROM users
		WHERE activated AND referrer_id IS NOT NULL
		GROUP BY referrer_id
		ORDER BY cnt DESC, referrer_id ASC
		LIMIT $1
	`
	rows := []model.ReferrerCount{}
	if err := sqlx.SelectContext(ctx, r.db, &rows, q, limitOrDefault(limit, DefaultTopReferrersLimit)); err != nil {
		return nil, fmt.Errorf("error selecting top referrers: %w", err)
	}
	return rows, nil
}

// ListUsers returns users in signup order.
func (r *statsRepository) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, tg_id ASC LIMIT $1`
	users := []model.User{}
	if err := sqlx.SelectContext(ctx, r.db, &users, q, limitOrDefault(limit, DefaultListUsersLimit)); err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}
