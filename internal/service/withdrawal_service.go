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

// WithdrawalService holds funds when a cash-out is requested and releases them on
// review: approval keeps the debit, rejection refunds it. Paying out is left to the
// consumer of the withdrawal.approved event.
type WithdrawalService struct {
	store        repository.Store
	publisher    events.Publisher
	logger       *zap.SugaredLogger
	minAmount    decimal.Decimal
	pendingLimit int
}

func NewWithdrawalService(store repository.Store, publisher events.Publisher, logger *zap.SugaredLogger, minAmount decimal.Decimal, pendingLimit int) *WithdrawalService {
	return &WithdrawalService{
		store:        store,
		publisher:    publisher,
		logger:       logger,
		minAmount:    minAmount,
		pendingLimit: pendingLimit,
	}
}

// Request debits amount from the user's balance and records a "new" withdrawal.
func (s *WithdrawalService) Request(ctx context.Context, userID int64, method, details string, amount decimal.Decimal) (id int64, err error) {
	defer func(start time.Time) {
		observe(s.logger, "request_withdrawal", start, err, "user", userID, "amount", amount.String())
	}(time.Now())

	method, details = strings.TrimSpace(method), strings.TrimSpace(details)
	if method == "" || details == "" {
		return 0, ErrInvalidRequest
	}
	if !amount.IsPositive() || !model.FitsAmountScale(amount) {
		return 0, ErrInvalidAmount
	}
	if amount.LessThan(s.minAmount) {
		return 0, ErrBelowMinimum
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		u, err := tx.Users().Lock(ctx, userID)
		if err != nil {
			return err
		}
		if u.Banned {
			return ErrUserBanned
		}
		if err := tx.Users().Debit(ctx, userID, amount); err != nil {
			return err
		}
		id, err = tx.Withdrawals().Create(ctx, userID, method, details, amount)
		return err
	})
	if err != nil {
		return 0, err
	}

	publish(ctx, s.publisher, s.logger, events.New(events.WithdrawalRequested, userID, id,
		map[string]string{"amount": amount.StringFixed(2), "method": method}))
	return id, nil
}

func (s *WithdrawalService) Get(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := s.store.Withdrawals().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, repository.ErrNotFound
	}
	return w, nil
}

// Approve finalizes the request; the held amount stays debited.
func (s *WithdrawalService) Approve(ctx context.Context, id int64) (w *model.Withdrawal, err error) {
	defer func(start time.Time) { observe(s.logger, "approve_withdrawal", start, err, "withdrawal", id) }(time.Now())

	w, err = s.store.Withdrawals().SetStatus(ctx, id, model.StatusApproved)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, s.logger, events.New(events.WithdrawalApproved, w.UserID, w.ID, map[string]string{
		"amount":  w.Amount.StringFixed(2),
		"method":  w.Method,
		"details": w.Details,
	}))
	return w, nil
}

// Reject finalizes the request and returns the held amount to the user in the same transaction.
func (s *WithdrawalService) Reject(ctx context.Context, id int64) (w *model.Withdrawal, err error) {
	defer func(start time.Time) { observe(s.logger, "reject_withdrawal", start, err, "withdrawal", id) }(time.Now())

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		w, err = tx.Withdrawals().SetStatus(ctx, id, model.StatusRejected)
		if err != nil {
			return err
		}
		return tx.Users().AddBalance(ctx, w.UserID, w.Amount)
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, s.logger, events.New(events.WithdrawalRejected, w.UserID, w.ID,
		map[string]string{"amount": w.Amount.StringFixed(2)}))
	return w, nil
}

// Pending is the admin review queue, oldest first.
func (s *WithdrawalService) Pending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	if limit <= 0 {
		limit = s.pendingLimit
	}
	return s.store.Withdrawals().ListPending(ctx, limit)
}
