package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverFile     = "file"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App       AppConfig
	Discord   DiscordConfig
	Tickets   TicketConfig
	Store     StoreConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Dashboard DashboardConfig
	Responses ResponsesConfig
}

// AppConfig controls the dashboard HTTP server.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// DiscordConfig identifies the bot and the guild objects it works with.
type DiscordConfig struct {
	Token                 string
	GuildID               string
	TicketCategoryID      string
	SupportRoleID         string
	SupportChannelID      string
	LogChannelID          string
	OperatorChannelID     string
	FAQChannelID          string
	NotificationChannelID string
}

// TicketConfig holds lifecycle timings.
type TicketConfig struct {
	FeedbackTimeout   time.Duration
	TeardownDelay     time.Duration
	ReminderSchedule  string
	AutoReplyInterval time.Duration
}

// StoreConfig selects the ticket store backend.
type StoreConfig struct {
	Driver      string
	TicketsFile string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// DashboardConfig defines dashboard API authentication.
type DashboardConfig struct {
	PasswordHash    string
	JWTSecret       string
	TokenTTLMinutes int
}

// ResponsesConfig points at the optional YAML file with canned replies.
type ResponsesConfig struct {
	File string
}

// Load reads configuration from environment variables, applying defaults where possible.
// envFile is optional; a missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	logChannel := os.Getenv("LOG_CHANNEL_ID")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Discord: DiscordConfig{
			Token:                 os.Getenv("DISCORD_TOKEN"),
			GuildID:               os.Getenv("DISCORD_GUILD_ID"),
			TicketCategoryID:      os.Getenv("TICKET_CATEGORY_ID"),
			SupportRoleID:         os.Getenv("SUPPORT_ROLE_ID"),
			SupportChannelID:      os.Getenv("SUPPORT_CHANNEL_ID"),
			LogChannelID:          logChannel,
			OperatorChannelID:     getEnv("OPERATOR_CHANNEL_ID", logChannel),
			FAQChannelID:          os.Getenv("FAQ_CHANNEL_ID"),
			NotificationChannelID: os.Getenv("NOTIFICATION_CHANNEL_ID"),
		},
		Tickets: TicketConfig{
			FeedbackTimeout:   getEnvAsDuration("FEEDBACK_TIMEOUT", 60*time.Second),
			TeardownDelay:     getEnvAsDuration("TEARDOWN_DELAY", 5*time.Second),
			ReminderSchedule:  getEnv("REMINDER_SCHEDULE", "@every 1h"),
			AutoReplyInterval: getEnvAsDuration("AUTO_REPLY_INTERVAL", 30*time.Second),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverFile)),
			TicketsFile: getEnv("TICKETS_FILE", "tickets.json"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "ticketbot"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Dashboard: DashboardConfig{
			PasswordHash:    os.Getenv("DASHBOARD_PASSWORD_HASH"),
			JWTSecret:       getEnv("DASHBOARD_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("DASHBOARD_TOKEN_TTL_MINUTES", 60),
		},
		Responses: ResponsesConfig{
			File: os.Getenv("RESPONSES_FILE"),
		},
	}

	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Discord.Token == "" {
		errs = append(errs, "DISCORD_TOKEN is required")
	}
	switch c.Store.Driver {
	case StoreDriverFile:
		if c.Store.TicketsFile == "" {
			errs = append(errs, "TICKETS_FILE is required for the file store")
		}
	case StoreDriverRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "REDIS_ADDR is required for the redis store")
		}
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, "POSTGRES_DSN is required for the postgres store")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER %q is not one of file, redis, postgres", c.Store.Driver))
	}
	if c.Tickets.FeedbackTimeout <= 0 {
		errs = append(errs, "FEEDBACK_TIMEOUT must be positive")
	}
	if c.Tickets.TeardownDelay < 0 {
		errs = append(errs, "TEARDOWN_DELAY cannot be negative")
	}
	if c.App.Env == "production" && c.Dashboard.JWTSecret == "dev-secret" {
		errs = append(errs, "DASHBOARD_JWT_SECRET must be set in production")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
