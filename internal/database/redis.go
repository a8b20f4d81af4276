package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/SinaHo/referral-bot-core/internal/config"
)

func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.SugaredLogger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Errorf("failed to ping redis: %v", err)
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Infow("connected to redis", "addr", cfg.Addr)
	return rdb, nil
}
