package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the referral bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Admins    string          `mapstructure:"admins"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	I18n      I18nConfig      `mapstructure:"i18n"`

	// AdminIDs is parsed from Admins during Load.
	AdminIDs []int64 `mapstructure:"-"`
}

// BotConfig describes the Telegram side of the application. WebhookSecret is sent to
// Telegram on setWebhook and required back in X-Telegram-Bot-Api-Secret-Token.
type BotConfig struct {
	Token         string        `mapstructure:"token" validate:"required"`
	Username      string        `mapstructure:"username"`
	ChannelID     string        `mapstructure:"channel_id"`
	Mode          string        `mapstructure:"mode" validate:"oneof=webhook polling"`
	WebhookURL    string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	WebhookSecret string        `mapstructure:"webhook_secret" validate:"omitempty,max=256"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// RewardsConfig carries the reward policy as decimal strings.
type RewardsConfig struct {
	Registration string `mapstructure:"registration" validate:"required,numeric"`
	Invite       string `mapstructure:"invite" validate:"required,numeric"`
	MinWithdraw  string `mapstructure:"min_withdraw" validate:"required,numeric"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"gte=0"`
	PoolSize     int           `mapstructure:"pool_size" validate:"gte=0"`
	MinIdleConns int           `mapstructure:"min_idle_conns" validate:"gte=0"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// ServerConfig configures the HTTP listener that serves the webhook, health and metrics.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	WebhookPath     string        `mapstructure:"webhook_path" validate:"required,startswith=/"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Environment string  `mapstructure:"environment"`
}

// RateLimitRule is a "limit per window" pair, e.g. 20 per "1m".
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

type RateLimitConfig struct {
	Enabled  bool                  `mapstructure:"enabled"`
	PerUser  RateLimitRule         `mapstructure:"per_user"`
	Commands RateLimitCommandRules `mapstructure:"commands"`
}

type RateLimitCommandRules struct {
	Withdraw RateLimitRule `mapstructure:"withdraw"`
	Gift     RateLimitRule `mapstructure:"gift"`
}

// JobsConfig controls the asynq-backed background queue.
type JobsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Concurrency int    `mapstructure:"concurrency" validate:"gte=0"`
	GaugesCron  string `mapstructure:"gauges_cron"`
	MaxRetry    int    `mapstructure:"max_retry" validate:"gte=0"`
}

type I18nConfig struct {
	DefaultLang string `mapstructure:"default_lang"`
}

// ReferralLink returns the deep link that registers a new user under inviterID.
func (c BotConfig) ReferralLink(inviterID int64) string {
	if c.Username == "" {
		return "https://t.me/your_bot_username"
	}

	return fmt.Sprintf("https://t.me/%s?start=%d", strings.TrimPrefix(c.Username, "@"), inviterID)
}

// WebhookEndpoint returns the public URL Telegram should deliver updates to.
func (c Config) WebhookEndpoint() string {
	return strings.TrimRight(c.Bot.WebhookURL, "/") + c.Server.WebhookPath
}

// ParseAdminIDs parses a comma separated list of Telegram user identifiers.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
