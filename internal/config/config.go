package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// Config holds configuration settings for the engine
	Config struct {
		// Execution
		Mode         api.Mode
		WorkDir      string
		Workers      int
		KeepWorkDirs bool
		HTTPTimeout  time.Duration

		// Projects
		Project      string
		BucketURL    string
		ProjectsFile string

		// Persistence
		Redis      RedisConfig
		ArchiveURL string

		LogLevel string
	}

	// RedisConfig locates the Redis server run snapshots are written to.
	// An empty Addr disables persistence
	RedisConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
		TTL      time.Duration
	}
)

const (
	DefaultMode        = api.ModeSerial
	DefaultWorkers     = 4
	DefaultProject     = "default"
	DefaultBucketURL   = "mem://"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultRedisPrefix = "tailor"
	DefaultRedisTTL    = 7 * 24 * time.Hour
	DefaultLogLevel    = "info"

	MaxWorkers      = 1024
	MaxRedisDB      = 15
	MaxHTTPTimeout  = 24 * 60 * 60 // seconds
	MaxRedisTTLDays = 3650
)

var (
	ErrInvalidMode        = errors.New("invalid execution mode")
	ErrInvalidWorkers     = errors.New("workers must be positive")
	ErrWorkDirRequired    = errors.New("work directory is required")
	ErrInvalidHTTPTimeout = errors.New("HTTP timeout must be positive")
	ErrInvalidRedisDB     = errors.New("invalid redis database")
)

// NewDefaultConfig creates a configuration with sensible defaults for all
// engine settings
func NewDefaultConfig() *Config {
	return &Config{
		Mode:        DefaultMode,
		WorkDir:     filepath.Join(os.TempDir(), "tailor"),
		Workers:     DefaultWorkers,
		HTTPTimeout: DefaultHTTPTimeout,
		Project:     DefaultProject,
		BucketURL:   DefaultBucketURL,
		Redis: RedisConfig{
			Prefix: DefaultRedisPrefix,
			TTL:    DefaultRedisTTL,
		},
		LogLevel: DefaultLogLevel,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	if mode := os.Getenv("TAILOR_MODE"); mode != "" {
		c.Mode = api.Mode(mode)
	}
	if workDir := os.Getenv("TAILOR_WORK_DIR"); workDir != "" {
		c.WorkDir = workDir
	}
	if project := os.Getenv("TAILOR_PROJECT"); project != "" {
		c.Project = project
	}
	if bucketURL := os.Getenv("TAILOR_BUCKET_URL"); bucketURL != "" {
		c.BucketURL = bucketURL
	}
	if projectsFile := os.Getenv("TAILOR_PROJECTS_FILE"); projectsFile != "" {
		c.ProjectsFile = projectsFile
	}
	if archiveURL := os.Getenv("TAILOR_ARCHIVE_URL"); archiveURL != "" {
		c.ArchiveURL = archiveURL
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if keep := os.Getenv("TAILOR_KEEP_WORKDIRS"); keep != "" {
		v, err := strconv.ParseBool(keep)
		if err != nil {
			return fmt.Errorf("invalid TAILOR_KEEP_WORKDIRS: %q", keep)
		}
		c.KeepWorkDirs = v
	}

	if err := loadEnvInt(
		"TAILOR_WORKERS", &c.Workers, 0, MaxWorkers,
	); err != nil {
		return err
	}

	timeout := int(c.HTTPTimeout / time.Second)
	if err := loadEnvInt(
		"TAILOR_HTTP_TIMEOUT", &timeout, 0, MaxHTTPTimeout,
	); err != nil {
		return err
	}
	c.HTTPTimeout = time.Duration(timeout) * time.Second

	return LoadRedisConfigFromEnv(&c.Redis)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Mode != "" && !c.Mode.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidMode, c.Mode)
	}

	if c.Workers <= 0 || c.Workers > MaxWorkers {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}

	if c.WorkDir == "" {
		return ErrWorkDirRequired
	}

	if c.HTTPTimeout <= 0 {
		return ErrInvalidHTTPTimeout
	}

	if c.Redis.DB < 0 || c.Redis.DB > MaxRedisDB {
		return fmt.Errorf("%w: %d", ErrInvalidRedisDB, c.Redis.DB)
	}

	return nil
}

// LoadRedisConfigFromEnv loads the Redis persistence settings from the
// REDIS_* environment variables
func LoadRedisConfigFromEnv(r *RedisConfig) error {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		r.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		r.Password = password
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		r.Prefix = prefix
	}
	if err := loadEnvInt("REDIS_DB", &r.DB, -1, MaxRedisDB); err != nil {
		return err
	}

	days := int(r.TTL / (24 * time.Hour))
	if err := loadEnvInt(
		"REDIS_TTL_DAYS", &days, 0, MaxRedisTTLDays,
	); err != nil {
		return err
	}
	r.TTL = time.Duration(days) * 24 * time.Hour
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
