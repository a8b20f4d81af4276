package service

import (
	"context"

	"github.com/SinaHo/referral-bot-core/internal/model"
	"github.com/SinaHo/referral-bot-core/internal/repository"
)

type ReportLimits struct {
	TopReferrers int
	ListUsers    int
}

// ReportService exposes the read-only admin views.
type ReportService struct {
	store  repository.Store
	limits ReportLimits
}

func NewReportService(store repository.Store, limits ReportLimits) *ReportService {
	return &ReportService{store: store, limits: limits}
}

func (s *ReportService) Stats(ctx context.Context) (model.Stats, error) {
	return s.store.Stats().Stats(ctx)
}

func (s *ReportService) TopReferrers(ctx context.Context, limit int) ([]model.ReferrerCount, error) {
	if limit <= 0 {
		limit = s.limits.TopReferrers
	}
	return s.store.Stats().TopReferrers(ctx, limit)
}

// Users lists accounts in signup order, for admin listings and broadcast selection.
func (s *ReportService) Users(ctx context.Context, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = s.limits.ListUsers
	}
	return s.store.Stats().ListUsers(ctx, limit)
}

// Audience is the broadcast selection: among the first limit users in signup order,
// those with a phone attached who are not banned.
func (s *ReportService) Audience(ctx context.Context, limit int) ([]model.User, error) {
	users, err := s.Users(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(users))
	for i := range users {
		if users[i].HasPhone() && !users[i].Banned {
			out = append(out, users[i])
		}
	}
	return out, nil
}
