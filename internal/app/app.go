// internal/app/app.go
package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/SinaHo/referral-bot-core/internal/config"
	"github.com/SinaHo/referral-bot-core/internal/database"
	"github.com/SinaHo/referral-bot-core/internal/events"
	"github.com/SinaHo/referral-bot-core/internal/logger"
	"github.com/SinaHo/referral-bot-core/internal/repository"
	"github.com/SinaHo/referral-bot-core/internal/service"
)

// App is the in-process entry point for the dialog, admin and reporting layers.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	rdb    *redis.Client

	Store       repository.Store
	Accounts    *service.AccountService
	Withdrawals *service.WithdrawalService
	Tasks       *service.TaskService
	Reports     *service.ReportService
}

// New connects to Postgres (and Redis when enabled), applies pending migrations and
// wires the services.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	sugar := log.Sugar()

	db, err := database.ConnectPostgres(ctx, cfg.Postgres, sugar)
	if err != nil {
		return nil, err
	}
	if _, err := database.Migrate(ctx, db, logger.Component(log, "migrate")); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var (
		rdb       *redis.Client
		publisher events.Publisher = events.Nop{}
	)
	if cfg.Redis.Enabled {
		rdb, err = database.ConnectRedis(ctx, cfg.Redis, sugar)
		if err != nil {
			db.Close()
			return nil, err
		}
		publisher = events.NewRedisPublisher(rdb, cfg.Redis.Stream, cfg.Redis.MaxLen)
	}

	a := NewWithStore(cfg, log, repository.NewStore(db), publisher)
	a.db = db
	a.rdb = rdb

	sugar.Infof("App initialized successfully")
	return a, nil
}

// NewWithStore wires the services over an existing store; used by New and by tests.
func NewWithStore(cfg *config.Config, log *zap.Logger, store repository.Store, publisher events.Publisher) *App {
	return &App{
		cfg:    cfg,
		logger: log,
		Store:  store,
		Accounts: service.NewAccountService(store, publisher, logger.Component(log, "accounts"), service.AccountOptions{
			ReferralBonus: cfg.ReferralBonus(),
			DailyBonus:    cfg.DailyBonus(),
			DailyCooldown: cfg.Referral.DailyCooldown,
		}),
		Withdrawals: service.NewWithdrawalService(store, publisher, logger.Component(log, "withdrawals"), cfg.MinWithdrawal(), cfg.Limits.PendingWithdrawals),
		Tasks:       service.NewTaskService(store, publisher, logger.Component(log, "tasks"), cfg.Limits.PendingSubmissions),
		Reports: service.NewReportService(store, service.ReportLimits{
			TopReferrers: cfg.Limits.TopReferrers,
			ListUsers:    cfg.Limits.ListUsers,
		}),
	}
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	sugar := a.logger.Sugar()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			sugar.Warnw("failed to close postgres", "error", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			sugar.Warnw("failed to close redis", "error", err)
		}
	}
	sugar.Info("Resources closed")
}
