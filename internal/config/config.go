package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Automation AutomationConfig
	Feed       FeedConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MigrateOnStart bool
}

// AutomationConfig bounds a single automation run.
type AutomationConfig struct {
	BatchSize       int
	PerCategory     int
	RetentionWindow time.Duration
	LockTTL         time.Duration
}

// FeedConfig controls the feed source gateway.
type FeedConfig struct {
	Timeout    time.Duration
	MaxItems   int
	UserAgent  string
	MaxRetries int
}

// RedisConfig points at the shared cache used for the run lock. An empty URL
// keeps the lock in process memory.
type RedisConfig struct {
	URL string
}

// SchedulerConfig holds the cron expression for automatic runs. An empty
// schedule disables the scheduler.
type SchedulerConfig struct {
	Schedule string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Minute
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultDBMaxConnections = 10

	defaultBatchSize       = 20
	defaultPerCategory     = 5
	defaultRetentionDays   = 7
	defaultLockTTL         = 15 * time.Minute
	defaultFeedTimeout     = 10 * time.Second
	defaultFeedMaxItems    = 10
	defaultFeedUserAgent   = "AccioAI/1.0"
	defaultFeedMaxRetries  = 1
	defaultSchedule        = "0 */6 * * *"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:            buildDatabaseURL(),
			MaxConnections: defaultDBMaxConnections,
			MigrateOnStart: true,
		},
		Automation: AutomationConfig{
			BatchSize:       defaultBatchSize,
			PerCategory:     defaultPerCategory,
			RetentionWindow: defaultRetentionDays * 24 * time.Hour,
			LockTTL:         defaultLockTTL,
		},
		Feed: FeedConfig{
			Timeout:    defaultFeedTimeout,
			MaxItems:   defaultFeedMaxItems,
			UserAgent:  getEnv("FEED_USER_AGENT", defaultFeedUserAgent),
			MaxRetries: defaultFeedMaxRetries,
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Scheduler: SchedulerConfig{
			Schedule: defaultSchedule,
		},
	}

	if v, ok := os.LookupEnv("AUTOMATION_SCHEDULE"); ok {
		cfg.Scheduler.Schedule = v
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeout},
		{"FEED_TIMEOUT_SECONDS", &cfg.Feed.Timeout},
		{"RUN_LOCK_TTL_SECONDS", &cfg.Automation.LockTTL},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	ints := []struct {
		key    string
		target *int
		min    int
	}{
		{"DB_MAX_CONNECTIONS", &cfg.Database.MaxConnections, 1},
		{"AUTOMATION_BATCH_SIZE", &cfg.Automation.BatchSize, 1},
		{"AUTOMATION_PER_CATEGORY", &cfg.Automation.PerCategory, 1},
		{"FEED_MAX_ITEMS", &cfg.Feed.MaxItems, 1},
		{"FEED_MAX_RETRIES", &cfg.Feed.MaxRetries, 0},
	}
	for _, i := range ints {
		v := os.Getenv(i.key)
		if v == "" {
			continue
		}
		parsed, err := parseInt(v, i.min)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", i.key, err)
		}
		*i.target = parsed
	}

	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		days, err := parseInt(v, 1)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETENTION_DAYS: %w", err)
		}
		cfg.Automation.RetentionWindow = time.Duration(days) * 24 * time.Hour
	}

	if v := os.Getenv("DB_MIGRATE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_MIGRATE_ON_START: must be a boolean")
		}
		cfg.Database.MigrateOnStart = b
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

// buildDatabaseURL prefers DATABASE_URL and otherwise assembles a DSN from
// the discrete DB_* variables. It returns "" when nothing is configured.
func buildDatabaseURL() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + getEnv("DB_PORT", "5432"),
		Path:     "/" + getEnv("DB_NAME", "accio"),
		RawQuery: "sslmode=" + getEnv("DB_SSLMODE", "disable"),
	}
	if user := os.Getenv("DB_USER"); user != "" {
		if password := os.Getenv("DB_PASSWORD"); password != "" {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}
	return u.String()
}

// RedactURL hides the password component of a connection URL for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseInt(raw string, min int) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return 0, fmt.Errorf("must be an integer >= %d", min)
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
