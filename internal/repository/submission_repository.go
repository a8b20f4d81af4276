package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/SinaHo/referral-bot-core/internal/model"
)

const submissionColumns = `id, tg_id, task_id, status, proof_file_id, proof_caption, created_at, reviewed_at`

// SubmissionRepository records task-completion proofs and their review decisions.
type SubmissionRepository interface {
	Create(ctx context.Context, userID int64, taskID, proofFileID, proofCaption string) (int64, error)
	Get(ctx context.Context, id int64) (*model.TaskSubmission, error)
	Latest(ctx context.Context, userID int64, taskID string) (*model.SubmissionRef, error)
	SetStatus(ctx context.Context, id int64, status model.Status) (*model.TaskSubmission, error)
	ListPending(ctx context.Context, limit int) ([]model.TaskSubmission, error)
}

type submissionRepository struct {
	db  sqlx.ExtContext
	now Clock
}

func NewSubmissionRepository(db sqlx.ExtContext, now Clock) SubmissionRepository {
	return &submissionRepository{db: db, now: now}
}

// Create always inserts with status "pending"; it does not look at earlier submissions.
func (r *submissionRepository) Create(ctx context.Context, userID int64, taskID, proofFileID, proofCaption string) (int64, error) {
	const q = `
		INSERT INTO task_submissions (tg_id, task_id, status, proof_file_id, proof_caption, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := sqlx.GetContext(ctx, r.db, &id, q, userID, taskID, model.SubmissionLifecycle.Initial, proofFileID, proofCaption, r.now())
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return 0, fmt.Errorf("error inserting task submission: %w", err)
	}
	return id, nil
}

func (r *submissionRepository) Get(ctx context.Context, id int64) (*model.TaskSubmission, error) {
	var s model.TaskSubmission
	err := sqlx.GetContext(ctx, r.db, &s, `SELECT `+submissionColumns+` FROM task_submissions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error selecting task submission %d: %w", id, err)
	}
	return &s, nil
}

// Latest returns the submission with the greatest id for the pair, or (nil, nil).
func (r *submissionRepository) Latest(ctx context.Context, userID int64, taskID string) (*model.SubmissionRef, error) {
	const q = `
		SELECT id, status FROM task_submissions
		WHERE tg_id = $1 AND task_id = $2
		ORDER BY id DESC
		LIMIT 1
	`
	var ref model.SubmissionRef
	if err := sqlx.GetContext(ctx, r.db, &ref, q, userID, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error selecting latest submission of user %d for task %q: %w", userID, taskID, err)
	}
	return &ref, nil
}

// SetStatus applies a review decision: pending -> approved or pending -> rejected.
func (r *submissionRepository) SetStatus(ctx context.Context, id int64, status model.Status) (*model.TaskSubmission, error) {
	var s model.TaskSubmission
	err := transition(ctx, r.db, model.SubmissionLifecycle, "task_submissions", submissionColumns, id, status, r.now, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *submissionRepository) ListPending(ctx context.Context, limit int) ([]model.TaskSubmission, error) {
	q := `SELECT ` + submissionColumns + ` FROM task_submissions WHERE status = $1 ORDER BY id ASC LIMIT $2`
	items := []model.TaskSubmission{}
	err := sqlx.SelectContext(ctx, r.db, &items, q, model.SubmissionLifecycle.Initial, limitOrDefault(limit, DefaultPendingLimit))
	if err != nil {
		return nil, fmt.Errorf("error listing pending task submissions: %w", err)
	}
	return items, nil
}
