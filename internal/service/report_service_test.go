package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SinaHo/referral-bot-core/internal/model"
	"github.com/SinaHo/referral-bot-core/internal/service"
)

func TestReportService_DefaultLimits(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := service.NewReportService(store, service.ReportLimits{TopReferrers: 10, ListUsers: 200})

	_, err := svc.TopReferrers(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, store.topLimit)

	_, err = svc.TopReferrers(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, store.topLimit)

	_, err = svc.Users(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, store.listLimit)
}

func TestReportService_Stats(t *testing.T) {
	store := newFakeStore()
	store.seed(model.User{ID: 1, Balance: decimal.Zero, Activated: true})
	store.seed(model.User{ID: 2, Balance: decimal.Zero})
	svc := service.NewReportService(store, service.ReportLimits{})

	s, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.TotalUsers)
	assert.Equal(t, int64(1), s.ActivatedUsers)
}

func TestReportService_Audience(t *testing.T) {
	store := newFakeStore()
	phone := func(v string) *string { return &v }
	store.seed(model.User{ID: 1, Balance: decimal.Zero, Phone: phone("+1001")})
	store.seed(model.User{ID: 2, Balance: decimal.Zero})
	store.seed(model.User{ID: 3, Balance: decimal.Zero, Phone: phone("")})
	store.seed(model.User{ID: 4, Balance: decimal.Zero, Phone: phone("+1004"), Banned: true})
	store.seed(model.User{ID: 5, Balance: decimal.Zero, Phone: phone("+1005")})
	svc := service.NewReportService(store, service.ReportLimits{ListUsers: 200})

	users, err := svc.Audience(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(1), users[0].ID)
	assert.Equal(t, int64(5), users[1].ID)
	assert.Equal(t, 200, store.listLimit)
}
