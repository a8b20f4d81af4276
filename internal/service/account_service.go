package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SinaHo/referral-bot-core/internal/events"
	"github.com/SinaHo/referral-bot-core/internal/model"
	"github.com/SinaHo/referral-bot-core/internal/repository"
)

type AccountOptions struct {
	ReferralBonus decimal.Decimal
	DailyBonus    decimal.Decimal
	DailyCooldown time.Duration
}

// AccountService is what the dialog layer calls for onboarding, phones and bonuses.
type AccountService struct {
	store     repository.Store
	publisher events.Publisher
	logger    *zap.SugaredLogger
	opts      AccountOptions
	now       func() time.Time
}

func NewAccountService(store repository.Store, publisher events.Publisher, logger *zap.SugaredLogger, opts AccountOptions) *AccountService {
	return &AccountService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type Registration struct {
	CreatedAt time.Time
	Created   bool
}

// Register creates the user on first contact. Created is false for a returning user.
func (s *AccountService) Register(ctx context.Context, userID int64, referrerID *int64) (reg Registration, err error) {
	defer func(start time.Time) { observe(s.logger, "register", start, err, "user", userID) }(time.Now())

	createdAt, created, err := s.store.Users().Create(ctx, userID, referrerID)
	if err != nil {
		return Registration{}, err
	}
	return Registration{CreatedAt: createdAt, Created: created}, nil
}

type Activation struct {
	ReferrerID *int64
	// Bonus is what the referrer received; zero when there is no referrer.
	Bonus decimal.Decimal
}

// Activate marks the user activated and, in the same transaction, credits the
// configured referral bonus to the referrer. Concurrent calls for one user credit at
// most once; the losers get repository.ErrAlreadyActivated.
func (s *AccountService) Activate(ctx context.Context, userID int64) (act Activation, err error) {
	defer func(start time.Time) { observe(s.logger, "activate", start, err, "user", userID) }(time.Now())

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		referrerID, err := tx.Users().Activate(ctx, userID)
		if err != nil {
			return err
		}
		act = Activation{ReferrerID: referrerID, Bonus: decimal.Zero}
		if referrerID == nil || !s.opts.ReferralBonus.IsPositive() {
			return nil
		}

		err = tx.Users().AddBalance(ctx, *referrerID, s.opts.ReferralBonus)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warnw("referrer missing, bonus skipped", "user", userID, "referrer", *referrerID)
			return nil
		}
		if err != nil {
			return err
		}
		act.Bonus = s.opts.ReferralBonus
		return nil
	})
	if err != nil {
		return Activation{}, err
	}

	publish(ctx, s.publisher, s.logger, events.New(events.UserActivated, userID, 0, nil))
	if act.Bonus.IsPositive() {
		publish(ctx, s.publisher, s.logger, events.New(events.ReferralBonusCredited, *act.ReferrerID, userID,
			map[string]string{"amount": act.Bonus.StringFixed(2)}))
	}
	return act, nil
}

// AttachPhone checks that no other user holds phone and stores it. The pre-check gives
// a fast answer; the unique index settles races with repository.ErrPhoneTaken.
func (s *AccountService) AttachPhone(ctx context.Context, userID int64, phone string) (err error) {
	defer func(start time.Time) { observe(s.logger, "attach_phone", start, err, "user", userID) }(time.Now())

	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrInvalidRequest
	}

	used, err := s.store.Users().IsPhoneUsed(ctx, phone, &userID)
	if err != nil {
		return err
	}
	if used {
		return repository.ErrPhoneTaken
	}
	return s.store.Users().SetPhone(ctx, userID, phone)
}

// ClaimDailyBonus credits the daily bonus when the cooldown since the last claim has passed.
func (s *AccountService) ClaimDailyBonus(ctx context.Context, userID int64) (amount decimal.Decimal, err error) {
	defer func(start time.Time) { observe(s.logger, "claim_daily_bonus", start, err, "user", userID) }(time.Now())

	now := s.now()
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		u, err := tx.Users().Lock(ctx, userID)
		if err != nil {
			return err
		}
		if u.Banned {
			return ErrUserBanned
		}
		ok, err := tx.Users().ClaimBonusSlot(ctx, userID, now, now.Add(-s.opts.DailyCooldown))
		if err != nil {
			return err
		}
		if !ok {
			return ErrBonusCooldown
		}
		return tx.Users().AddBalance(ctx, userID, s.opts.DailyBonus)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return s.opts.DailyBonus, nil
}

func (s *AccountService) Ban(ctx context.Context, userID int64) (err error) {
	defer func(start time.Time) { observe(s.logger, "ban", start, err, "user", userID) }(time.Now())
	return s.store.Users().Ban(ctx, userID)
}

func (s *AccountService) Unban(ctx context.Context, userID int64) (err error) {
	defer func(start time.Time) { observe(s.logger, "unban", start, err, "user", userID) }(time.Now())
	return s.store.Users().Unban(ctx, userID)
}

// Profile returns the user, or repository.ErrNotFound.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, repository.ErrNotFound
	}
	return u, nil
}
