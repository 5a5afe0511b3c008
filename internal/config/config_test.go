package config_test

import (
	"testing"
	"time"

	testify "github.com/stretchr/testify/assert"

	"github.com/OdaNilseng/FLSworkflow/internal/assert"
	"github.com/OdaNilseng/FLSworkflow/internal/assert/helpers"
	"github.com/OdaNilseng/FLSworkflow/internal/config"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

func TestConfigValidation(t *testing.T) {
	as := assert.New(t)

	t.Run("valid_default_config", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		as.ConfigValid(cfg)
	})

	t.Run("valid_test_config", func(t *testing.T) {
		cfg := helpers.NewTestConfig(t)
		as.ConfigValid(cfg)
	})

	tests := []struct {
		name          string
		configMod     func(*config.Config)
		errorContains string
	}{
		{
			name: "invalid_mode",
			configMod: func(c *config.Config) {
				c.Mode = "parallel"
			},
			errorContains: "invalid execution mode",
		},
		{
			name: "zero_workers",
			configMod: func(c *config.Config) {
				c.Workers = 0
			},
			errorContains: "workers must be positive",
		},
		{
			name: "too_many_workers",
			configMod: func(c *config.Config) {
				c.Workers = config.MaxWorkers + 1
			},
			errorContains: "workers must be positive",
		},
		{
			name: "empty_work_dir",
			configMod: func(c *config.Config) {
				c.WorkDir = ""
			},
			errorContains: "work directory is required",
		},
		{
			name: "zero_http_timeout",
			configMod: func(c *config.Config) {
				c.HTTPTimeout = 0
			},
			errorContains: "HTTP timeout must be positive",
		},
		{
			name: "negative_redis_db",
			configMod: func(c *config.Config) {
				c.Redis.DB = -1
			},
			errorContains: "invalid redis database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := helpers.NewTestConfig(t)
			tt.configMod(cfg)
			as.ConfigInvalid(cfg, tt.errorContains)
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := config.NewDefaultConfig()

	testify.Equal(t, api.ModeSerial, cfg.Mode)
	testify.Equal(t, config.DefaultWorkers, cfg.Workers)
	testify.Equal(t, config.DefaultProject, cfg.Project)
	testify.Equal(t, config.DefaultBucketURL, cfg.BucketURL)
	testify.Equal(t, config.DefaultHTTPTimeout, cfg.HTTPTimeout)
	testify.Equal(t, config.DefaultRedisPrefix, cfg.Redis.Prefix)
	testify.Empty(t, cfg.Redis.Addr)
	testify.False(t, cfg.KeepWorkDirs)
	testify.NotEmpty(t, cfg.WorkDir)
	testify.Equal(t, "info", cfg.LogLevel)
}

func TestConfigLoadFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(*testing.T, *config.Config)
	}{
		{
			name:    "load_mode",
			envVars: map[string]string{"TAILOR_MODE": "concurrent"},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, api.ModeConcurrent, c.Mode)
			},
		},
		{
			name:    "load_workers",
			envVars: map[string]string{"TAILOR_WORKERS": "16"},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, 16, c.Workers)
			},
		},
		{
			name:    "load_work_dir",
			envVars: map[string]string{"TAILOR_WORK_DIR": "/var/tailor"},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, "/var/tailor", c.WorkDir)
			},
		},
		{
			name:    "load_keep_work_dirs",
			envVars: map[string]string{"TAILOR_KEEP_WORKDIRS": "true"},
			check: func(t *testing.T, c *config.Config) {
				testify.True(t, c.KeepWorkDirs)
			},
		},
		{
			name: "load_project",
			envVars: map[string]string{
				"TAILOR_PROJECT":       "demo",
				"TAILOR_BUCKET_URL":    "file:///tmp/demo",
				"TAILOR_PROJECTS_FILE": "/etc/tailor/projects.yaml",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, "demo", c.Project)
				testify.Equal(t, "file:///tmp/demo", c.BucketURL)
				testify.Equal(t, "/etc/tailor/projects.yaml", c.ProjectsFile)
			},
		},
		{
			name:    "load_archive_url",
			envVars: map[string]string{"TAILOR_ARCHIVE_URL": "s3://archive"},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, "s3://archive", c.ArchiveURL)
			},
		},
		{
			name:    "load_http_timeout",
			envVars: map[string]string{"TAILOR_HTTP_TIMEOUT": "5"},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, 5*time.Second, c.HTTPTimeout)
			},
		},
		{
			name: "load_redis",
			envVars: map[string]string{
				"REDIS_ADDR":     "localhost:6380",
				"REDIS_PASSWORD": "secret",
				"REDIS_DB":       "3",
				"REDIS_PREFIX":   "runs",
				"REDIS_TTL_DAYS": "2",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, "localhost:6380", c.Redis.Addr)
				testify.Equal(t, "secret", c.Redis.Password)
				testify.Equal(t, 3, c.Redis.DB)
				testify.Equal(t, "runs", c.Redis.Prefix)
				testify.Equal(t, 48*time.Hour, c.Redis.TTL)
			},
		},
		{
			name:    "load_log_level",
			envVars: map[string]string{"LOG_LEVEL": "debug"},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, "debug", c.LogLevel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg := config.NewDefaultConfig()
			testify.NoError(t, cfg.LoadFromEnv())
			tt.check(t, cfg)
		})
	}
}

func TestConfigLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"workers_not_a_number", "TAILOR_WORKERS", "many"},
		{"workers_zero", "TAILOR_WORKERS", "0"},
		{"workers_too_high", "TAILOR_WORKERS", "5000"},
		{"keep_work_dirs_bad_bool", "TAILOR_KEEP_WORKDIRS", "maybe"},
		{"http_timeout_negative", "TAILOR_HTTP_TIMEOUT", "-1"},
		{"redis_db_too_high", "REDIS_DB", "16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			cfg := config.NewDefaultConfig()
			err := cfg.LoadFromEnv()
			testify.Error(t, err)
			testify.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestRedisDBZeroFromEnv(t *testing.T) {
	t.Setenv("REDIS_DB", "0")

	cfg := config.NewDefaultConfig()
	testify.NoError(t, cfg.LoadFromEnv())
	testify.Equal(t, 0, cfg.Redis.DB)
}
