package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/SinaHo/referral-bot-core/internal/model"
)

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN renders a postgres:// URL for lib/pq; credentials are percent-encoded.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:     "/" + p.DBName,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReferralConfig holds amounts as decimal strings so they never pass through float64.
type ReferralConfig struct {
	Bonus         string        `mapstructure:"bonus"`
	DailyBonus    string        `mapstructure:"daily_bonus"`
	DailyCooldown time.Duration `mapstructure:"daily_cooldown"`
	MinWithdrawal string        `mapstructure:"min_withdrawal"`
}

type LimitsConfig struct {
	PendingWithdrawals int `mapstructure:"pending_withdrawals"`
	PendingSubmissions int `mapstructure:"pending_submissions"`
	TopReferrers       int `mapstructure:"top_referrers"`
	ListUsers          int `mapstructure:"list_users"`
}

type Config struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Referral ReferralConfig `mapstructure:"referral"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "referral_bot")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 2)
	v.SetDefault("postgres.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "referral:events")
	v.SetDefault("redis.max_len", 100000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("referral.bonus", "1.00")
	v.SetDefault("referral.daily_bonus", "0.10")
	v.SetDefault("referral.daily_cooldown", 24*time.Hour)
	v.SetDefault("referral.min_withdrawal", "5.00")

	v.SetDefault("limits.pending_withdrawals", 30)
	v.SetDefault("limits.pending_submissions", 30)
	v.SetDefault("limits.top_referrers", 10)
	v.SetDefault("limits.list_users", 200)
}

// LoadConfig reads an optional .env, then config.yaml from path, then environment
// variables into Config. A missing config.yaml falls back to defaults.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the money settings parse and are not negative.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"referral.bonus":          c.Referral.Bonus,
		"referral.daily_bonus":    c.Referral.DailyBonus,
		"referral.min_withdrawal": c.Referral.MinWithdrawal,
	} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("invalid %s %q: must not be negative", name, raw)
		}
		if !model.FitsAmountScale(d) {
			return fmt.Errorf("invalid %s %q: at most %d decimal places", name, raw, model.AmountScale)
		}
	}
	return nil
}

// ReferralBonus is the amount credited to a referrer when a referred user activates.
func (c *Config) ReferralBonus() decimal.Decimal {
	return decimal.RequireFromString(c.Referral.Bonus)
}

func (c *Config) DailyBonus() decimal.Decimal {
	return decimal.RequireFromString(c.Referral.DailyBonus)
}

func (c *Config) MinWithdrawal() decimal.Decimal {
	return decimal.RequireFromString(c.Referral.MinWithdrawal)
}
