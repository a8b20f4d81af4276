package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SinaHo/referral-bot-core/internal/events"
	"github.com/SinaHo/referral-bot-core/internal/model"
	"github.com/SinaHo/referral-bot-core/internal/repository"
)

type TaskService struct {
	store        repository.Store
	publisher    events.Publisher
	logger       *zap.SugaredLogger
	pendingLimit int
}

func NewTaskService(store repository.Store, publisher events.Publisher, logger *zap.SugaredLogger, pendingLimit int) *TaskService {
	return &TaskService{store: store, publisher: publisher, logger: logger, pendingLimit: pendingLimit}
}

// Submit records a proof unless the latest submission for the same task is still
// pending or was approved. A rejected task may be resubmitted.
func (s *TaskService) Submit(ctx context.Context, userID int64, taskID, proofFileID, proofCaption string) (id int64, err error) {
	defer func(start time.Time) {
		observe(s.logger, "submit_task", start, err, "user", userID, "task", taskID)
	}(time.Now())

	taskID = strings.TrimSpace(taskID)
	if taskID == "" || proofFileID == "" {
		return 0, ErrInvalidRequest
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		u, err := tx.Users().Lock(ctx, userID)
		if err != nil {
			return err
		}
		if u.Banned {
			return ErrUserBanned
		}

		latest, err := tx.Submissions().Latest(ctx, userID, taskID)
		if err != nil {
			return err
		}
		if latest != nil {
			switch latest.Status {
			case model.StatusPending:
				return ErrSubmissionPending
			case model.StatusApproved:
				return ErrTaskAlreadyApproved
			}
		}

		id, err = tx.Submissions().Create(ctx, userID, taskID, proofFileID, proofCaption)
		return err
	})
	if err != nil {
		return 0, err
	}

	publish(ctx, s.publisher, s.logger, events.New(events.TaskSubmitted, userID, id, map[string]string{"task": taskID}))
	return id, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (*model.TaskSubmission, error) {
	sub, err := s.store.Submissions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, repository.ErrNotFound
	}
	return sub, nil
}

// Approve accepts the submission and credits reward to its owner atomically.
func (s *TaskService) Approve(ctx context.Context, id int64, reward decimal.Decimal) (sub *model.TaskSubmission, err error) {
	defer func(start time.Time) { observe(s.logger, "approve_task", start, err, "submission", id) }(time.Now())

	if reward.IsNegative() || !model.FitsAmountScale(reward) {
		return nil, ErrInvalidAmount
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		sub, err = tx.Submissions().SetStatus(ctx, id, model.StatusApproved)
		if err != nil {
			return err
		}
		if !reward.IsPositive() {
			return nil
		}
		return tx.Users().AddBalance(ctx, sub.UserID, reward)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, events.New(events.TaskApproved, sub.UserID, sub.ID, map[string]string{
		"task":   sub.TaskID,
		"reward": reward.StringFixed(2),
	}))
	return sub, nil
}

func (s *TaskService) Reject(ctx context.Context, id int64) (sub *model.TaskSubmission, err error) {
	defer func(start time.Time) { observe(s.logger, "reject_task", start, err, "submission", id) }(time.Now())

	sub, err = s.store.Submissions().SetStatus(ctx, id, model.StatusRejected)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, s.logger, events.New(events.TaskRejected, sub.UserID, sub.ID, map[string]string{"task": sub.TaskID}))
	return sub, nil
}

// Pending is the task review queue, oldest first.
func (s *TaskService) Pending(ctx context.Context, limit int) ([]model.TaskSubmission, error) {
	if limit <= 0 {
		limit = s.pendingLimit
	}
	return s.store.Submissions().ListPending(ctx, limit)
}
