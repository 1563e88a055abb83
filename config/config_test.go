package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"corncare-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultsRequireSecret(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, 168*time.Hour, cfg.TokenTTL)
	assert.Equal(t, storage.StorageTypeLocal, cfg.Storage.Type)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"PORT":                  "9090",
		"JWT_SECRET":            "s3cret",
		"TOKEN_TTL":             "2h",
		"STORAGE_TYPE":          "S3",
		"AWS_S3_BUCKET":         "scans",
		"AWS_REGION":            "eu-west-1",
		"AUTH_RATE_LIMIT_RPS":   "0.5",
		"AUTH_RATE_LIMIT_BURST": "3",
		"CORS_ALLOW_ORIGINS":    "http://a.test, http://b.test,",
		"GEMINI_API_KEY":        "   ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, storage.StorageTypeS3, cfg.Storage.Type)
	assert.Equal(t, "scans", cfg.Storage.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3Region)
	assert.Equal(t, 0.5, cfg.AuthRateLimit)
	assert.Equal(t, 3, cfg.AuthRateBurst)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowOrigins)
	assert.False(t, cfg.AdvisorEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	for key, val := range map[string]string{
		"TOKEN_TTL":             "a week",
		"AUTH_RATE_LIMIT_RPS":   "fast",
		"AUTH_RATE_LIMIT_BURST": "1.5",
	} {
		t.Run(key, func(t *testing.T) {
			err := Default().ApplyEnv(envMap(map[string]string{key: val}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = storage.StorageTypeS3 }, "AWS_S3_BUCKET"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, "STORAGE_TYPE"},
		{"zero ttl", func(c *Config) { c.TokenTTL = 0 }, "TOKEN_TTL"},
		{"zero burst", func(c *Config) { c.AuthRateBurst = 0 }, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWTSecret = "secret"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "7000"
jwtSecret: from-file
tokenTtl: 24h
storage:
  type: s3
  s3Bucket: bucket
logLevel: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, storage.StorageTypeS3, cfg.Storage.Type)
	assert.Equal(t, "bucket", cfg.Storage.S3Bucket)
	assert.Equal(t, "debug", cfg.LogLevel)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)

	// environment wins over the file
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"PORT": "7001"})))
	assert.Equal(t, "7001", cfg.Port)
}

func TestLoadFileMissing(t *testing.T) {
	err := Default().LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "8181")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.Equal(t, "8181", cfg.Port)
}
