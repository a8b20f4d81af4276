package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SinaHo/referral-bot-core/internal/events"
	"github.com/SinaHo/referral-bot-core/internal/model"
	"github.com/SinaHo/referral-bot-core/internal/repository"
)

// fakeStore implements repository.Store in memory. WithinTx does not roll back.
type fakeStore struct {
	mu          sync.Mutex
	users       map[int64]*model.User
	withdrawals map[int64]*model.Withdrawal
	submissions map[int64]*model.TaskSubmission
	nextID      int64
	txCount     int

	// captured inputs
	pendingLimit int
	topLimit     int
	listLimit    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[int64]*model.User{},
		withdrawals: map[int64]*model.Withdrawal{},
		submissions: map[int64]*model.TaskSubmission{},
	}
}

func (s *fakeStore) Users() repository.UserRepository             { return fakeUsers{s} }
func (s *fakeStore) Withdrawals() repository.WithdrawalRepository { return fakeWithdrawals{s} }
func (s *fakeStore) Submissions() repository.SubmissionRepository { return fakeSubmissions{s} }
func (s *fakeStore) Stats() repository.StatsRepository            { return fakeStats{s} }

func (s *fakeStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	s.txCount++
	s.mu.Unlock()
	return fn(s)
}

// seed adds a user directly, bypassing Create.
func (s *fakeStore) seed(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *fakeStore) balance(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Balance
}

func (s *fakeStore) user(id int64) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
	}
	return u, nil
}

type fakeUsers struct{ s *fakeStore }

func (f fakeUsers) Create(ctx context.Context, id int64, referrerID *int64) (time.Time, bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[id]; ok {
		return time.Time{}, false, nil
	}
	if referrerID != nil && *referrerID == id {
		referrerID = nil
	}
	now := time.Now().UTC()
	f.s.users[id] = &model.User{ID: id, Balance: decimal.Zero, ReferrerID: referrerID, CreatedAt: now}
	return now, true, nil
}

func (f fakeUsers) Get(ctx context.Context, id int64) (*model.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) Lock(ctx context.Context, id int64) (*model.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, err := f.s.user(id)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) Activate(ctx context.Context, id int64) (*int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, err := f.s.user(id)
	if err != nil {
		return nil, err
	}
	if u.Activated {
		return nil, repository.ErrAlreadyActivated
	}
	u.Activated = true
	return u.ReferrerID, nil
}

func (f fakeUsers) AddBalance(ctx context.Context, id int64, delta decimal.Decimal) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, err := f.s.user(id)
	if err != nil {
		return err
	}
	u.Balance = u.Balance.Add(delta)
	return nil
}

func (f fakeUsers) Debit(ctx context.Context, id int64, amount decimal.Decimal) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, err := f.s.user(id)
	if err != nil {
		return err
	}
	if u.Balance.LessThan(amount) {
		return repository.ErrInsufficientFunds
	}
	u.Balance = u.Balance.Sub(amount)
	return nil
}

func (f fakeUsers) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[id]; ok {
		return u.Balance, nil
	}
	return decimal.Zero, nil
}

func (f fakeUsers) SetPhone(ctx context.Context, id int64, phone string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, err := f.s.user(id)
	if err != nil {
		return err
	}
	if phone == "" {
		u.Phone = nil
		return nil
	}
	for _, other := range f.s.users {
		if other.ID != id && other.Phone != nil && *other.Phone == phone {
			return repository.ErrPhoneTaken
		}
	}
	u.Phone = &phone
	return nil
}

func (f fakeUsers) GetPhone(ctx context.Context, id int64) (*string, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[id]; ok {
		return u.Phone, nil
	}
	return nil, nil
}

func (f fakeUsers) IsPhoneUsed(ctx context.Context, phone string, excluding *int64) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if excluding != nil && u.ID == *excluding {
			continue
		}
		if u.Phone != nil && *u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeUsers) GetLastBonusAt(ctx context.Context, id int64) (*time.Time, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[id]; ok {
		return u.LastBonusAt, nil
	}
	return nil, nil
}

func (f fakeUsers) SetLastBonusAt(ctx context.Context, id int64, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, err := f.s.user(id)
	if err != nil {
		return err
	}
	u.LastBonusAt = &at
	return nil
}

func (f fakeUsers) ClaimBonusSlot(ctx context.Context, id int64, at, notAfter time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return false, nil
	}
	if u.LastBonusAt != nil && u.LastBonusAt.After(notAfter) {
		return false, nil
	}
	u.LastBonusAt = &at
	return true, nil
}

func (f fakeUsers) Ban(ctx context.Context, id int64) error   { return f.setBanned(id, true) }
func (f fakeUsers) Unban(ctx context.Context, id int64) error { return f.setBanned(id, false) }

func (f fakeUsers) setBanned(id int64, banned bool) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, err := f.s.user(id)
	if err != nil {
		return err
	}
	u.Banned = banned
	return nil
}

func (f fakeUsers) IsBanned(ctx context.Context, id int64) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if u, ok := f.s.users[id]; ok {
		return u.Banned, nil
	}
	return false, nil
}

type fakeWithdrawals struct{ s *fakeStore }

func (f fakeWithdrawals) Create(ctx context.Context, userID int64, method, details string, amount decimal.Decimal) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, err := f.s.user(userID); err != nil {
		return 0, err
	}
	f.s.nextID++
	f.s.withdrawals[f.s.nextID] = &model.Withdrawal{
		ID:        f.s.nextID,
		UserID:    userID,
		Method:    method,
		Details:   details,
		Amount:    amount,
		Status:    model.WithdrawalLifecycle.Initial,
		CreatedAt: time.Now().UTC(),
	}
	return f.s.nextID, nil
}

func (f fakeWithdrawals) Get(ctx context.Context, id int64) (*model.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (f fakeWithdrawals) SetStatus(ctx context.Context, id int64, status model.Status) (*model.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	w, ok := f.s.withdrawals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := model.WithdrawalLifecycle.Validate(w.Status, status); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	w.Status, w.ReviewedAt = status, &now
	cp := *w
	return &cp, nil
}

func (f fakeWithdrawals) ListPending(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.pendingLimit = limit
	items := []model.Withdrawal{}
	for _, w := range f.s.withdrawals {
		if w.Status == model.WithdrawalLifecycle.Initial {
			items = append(items, *w)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

type fakeSubmissions struct{ s *fakeStore }

func (f fakeSubmissions) Create(ctx context.Context, userID int64, taskID, proofFileID, proofCaption string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, err := f.s.user(userID); err != nil {
		return 0, err
	}
	f.s.nextID++
	f.s.submissions[f.s.nextID] = &model.TaskSubmission{
		ID:           f.s.nextID,
		UserID:       userID,
		TaskID:       taskID,
		Status:       model.SubmissionLifecycle.Initial,
		ProofFileID:  proofFileID,
		ProofCaption: proofCaption,
		CreatedAt:    time.Now().UTC(),
	}
	return f.s.nextID, nil
}

func (f fakeSubmissions) Get(ctx context.Context, id int64) (*model.TaskSubmission, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	sub, ok := f.s.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (f fakeSubmissions) Latest(ctx context.Context, userID int64, taskID string) (*model.SubmissionRef, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var ref *model.SubmissionRef
	for _, sub := range f.s.submissions {
		if sub.UserID != userID || sub.TaskID != taskID {
			continue
		}
		if ref == nil || sub.ID > ref.ID {
			ref = &model.SubmissionRef{ID: sub.ID, Status: sub.Status}
		}
	}
	return ref, nil
}

func (f fakeSubmissions) SetStatus(ctx context.Context, id int64, status model.Status) (*model.TaskSubmission, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	sub, ok := f.s.submissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := model.SubmissionLifecycle.Validate(sub.Status, status); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sub.Status, sub.ReviewedAt = status, &now
	cp := *sub
	return &cp, nil
}

func (f fakeSubmissions) ListPending(ctx context.Context, limit int) ([]model.TaskSubmission, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.pendingLimit = limit
	items := []model.TaskSubmission{}
	for _, sub := range f.s.submissions {
		if sub.Status == model.SubmissionLifecycle.Initial {
			items = append(items, *sub)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

type fakeStats struct{ s *fakeStore }

func (f fakeStats) Stats(ctx context.Context) (model.Stats, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var st model.Stats
	for _, u := range f.s.users {
		st.TotalUsers++
		if u.Activated {
			st.ActivatedUsers++
		}
	}
	return st, nil
}

func (f fakeStats) TopReferrers(ctx context.Context, limit int) ([]model.ReferrerCount, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.topLimit = limit
	return []model.ReferrerCount{}, nil
}

func (f fakeStats) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.listLimit = limit
	users := []model.User{}
	for _, u := range f.s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// recordingPublisher captures published events and can be told to fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
