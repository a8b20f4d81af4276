package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/SinaHo/referral-bot-core/internal/config"
)

// ConnectPostgres opens the pool every repository shares and verifies it with a ping.
func ConnectPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.SugaredLogger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Infow("connected to postgres", "host", cfg.Host, "dbname", cfg.DBName)
	return db, nil
}
