package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr                string
	DatabaseURL         string
	JWTSecret           string
	Environment         string
	MigrationsDir       string
	RolePermissionsFile string
	EmailFrom           string
	EmailEnabled        bool
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPassword        string
	SMTPUseTLS          bool
	RunMigrations       bool
	RunSeed             bool
	MaxBodyBytes        int64
	RateLimitPerMinute  int
	MetricsEnabled      bool
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	SweepLockTTL        time.Duration
	SweepInterval       time.Duration
	Appraisal           AppraisalConfig
}

// AppraisalConfig holds the calendar that drives rollover, archival and
// initial cycle provisioning.
type AppraisalConfig struct {
	CycleCutoff      time.Time
	ArchiveMonth     time.Month
	ArchiveHour      int
	RolloverMonth    time.Month
	RolloverHour     int
	RemindOffsetDays int
	Location         *time.Location
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("dotenv load failed", "err", err)
	}

	loc := getEnvLocation("APPRAISAL_TIMEZONE", time.UTC)
	return Config{
		Addr:                getEnv("APP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		Environment:         getEnv("APP_ENV", "development"),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", "migrations"),
		RolePermissionsFile: getEnv("ROLE_PERMISSIONS_FILE", ""),
		EmailFrom:           getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:        getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:          getEnvBool("SMTP_USE_TLS", true),
		RunMigrations:       getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:             getEnvBool("RUN_SEED", true),
		MaxBodyBytes:        int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		SweepLockTTL:        getEnvDuration("SWEEP_LOCK_TTL", 10*time.Minute),
		SweepInterval:       getEnvDuration("APPRAISAL_SWEEP_INTERVAL", time.Hour),
		Appraisal: AppraisalConfig{
			CycleCutoff:      getEnvDate("APPRAISAL_CYCLE_CUTOFF", time.Date(2023, time.April, 1, 0, 0, 0, 0, loc), loc),
			ArchiveMonth:     time.Month(getEnvInt("APPRAISAL_ARCHIVE_MONTH", int(time.March))),
			ArchiveHour:      getEnvInt("APPRAISAL_ARCHIVE_HOUR", 0),
			RolloverMonth:    time.Month(getEnvInt("APPRAISAL_ROLLOVER_MONTH", int(time.March))),
			RolloverHour:     getEnvInt("APPRAISAL_ROLLOVER_HOUR", 0),
			RemindOffsetDays: getEnvInt("APPRAISAL_REMIND_OFFSET_DAYS", 7),
			Location:         loc,
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDate(key string, fallback time.Time, loc *time.Location) time.Time {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvLocation(key string, fallback *time.Location) *time.Location {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		return fallback
	}
	return loc
}

// MaxSweepInterval bounds the scheduler tick. Archive and rollover fire
// only when a sweep lands inside their configured hour, so a longer tick
// can skip a whole cycle.
const MaxSweepInterval = time.Hour

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.SweepInterval < 0 || c.SweepInterval > MaxSweepInterval {
		return fmt.Errorf("APPRAISAL_SWEEP_INTERVAL must be between 0 and %s", MaxSweepInterval)
	}
	return c.Appraisal.Validate()
}

func (a AppraisalConfig) Validate() error {
	if a.ArchiveMonth < time.January || a.ArchiveMonth > time.December {
		return fmt.Errorf("APPRAISAL_ARCHIVE_MONTH must be between 1 and 12")
	}
	if a.RolloverMonth < time.January || a.RolloverMonth > time.December {
		return fmt.Errorf("APPRAISAL_ROLLOVER_MONTH must be between 1 and 12")
	}
	if a.ArchiveHour < 0 || a.ArchiveHour > 23 {
		return fmt.Errorf("APPRAISAL_ARCHIVE_HOUR must be between 0 and 23")
	}
	if a.RolloverHour < 0 || a.RolloverHour > 23 {
		return fmt.Errorf("APPRAISAL_ROLLOVER_HOUR must be between 0 and 23")
	}
	if a.RemindOffsetDays < 0 {
		return fmt.Errorf("APPRAISAL_REMIND_OFFSET_DAYS must not be negative")
	}
	if a.CycleCutoff.IsZero() {
		return fmt.Errorf("APPRAISAL_CYCLE_CUTOFF must be a valid date")
	}
	return nil
}
