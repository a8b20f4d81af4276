package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/SinaHo/referral-bot-core/internal/events"
	"github.com/SinaHo/referral-bot-core/internal/model"
	"github.com/SinaHo/referral-bot-core/internal/repository"
)

var expectedOutcomes = []error{
	repository.ErrNotFound,
	repository.ErrAlreadyActivated,
	repository.ErrPhoneTaken,
	repository.ErrInsufficientFunds,
	model.ErrInvalidTransition,
	ErrInvalidRequest,
	ErrInvalidAmount,
	ErrBelowMinimum,
	ErrUserBanned,
	ErrBonusCooldown,
	ErrSubmissionPending,
	ErrTaskAlreadyApproved,
}

func isExpected(err error) bool {
	for _, target := range expectedOutcomes {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// observe logs one operation: storage failures at error level, business rejections
// at info, successes at debug.
func observe(logger *zap.SugaredLogger, op string, start time.Time, err error, kv ...interface{}) {
	fields := append([]interface{}{"op", op, "duration", time.Since(start)}, kv...)
	switch {
	case err == nil:
		logger.Debugw("operation done", fields...)
	case isExpected(err):
		logger.Infow("operation rejected", append(fields, "reason", err.Error())...)
	default:
		logger.Errorw("operation failed", append(fields, "error", err)...)
	}
}

// publish is best effort: the state change has already committed.
func publish(ctx context.Context, p events.Publisher, logger *zap.SugaredLogger, e events.Event) {
	if err := p.Publish(ctx, e); err != nil {
		logger.Warnw("failed to publish event", "type", e.Type, "user", e.UserID, "entity", e.EntityID, "error", err)
	}
}
