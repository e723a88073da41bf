package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs is a helper that sets multiple env vars for the test's lifetime.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

const (
	strongAccessSecret  = "a-very-secure-access-secret-key-for-production-01"
	strongRefreshSecret = "a-very-secure-refresh-secret-key-for-production-02"
)

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT": "development",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.VerificationTTL)
	assert.Equal(t, "user", cfg.DefaultRole)
	assert.Equal(t, 12, cfg.BcryptCost)
}

func TestLoad_Development_AcceptsDefaultSecrets(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT": "development",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, devAccessSecret, cfg.JWTAccessSecret)
	assert.Equal(t, devRefreshSecret, cfg.JWTRefreshSecret)
}

func TestLoad_Production_RejectsDefaultSecrets(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT": "production",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "development JWT secrets")
}

func TestLoad_Production_RejectsShortSecrets(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":        "production",
		"JWT_ACCESS_SECRET":  "short-access-secret",
		"JWT_REFRESH_SECRET": "short-refresh-secret",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_Production_AcceptsStrongSecrets(t *testing.T) {
	require.GreaterOrEqual(t, len(strongAccessSecret), 32)
	require.GreaterOrEqual(t, len(strongRefreshSecret), 32)

	setEnvs(t, map[string]string{
		"ENVIRONMENT":        "production",
		"JWT_ACCESS_SECRET":  strongAccessSecret,
		"JWT_REFRESH_SECRET": strongRefreshSecret,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, strongAccessSecret, cfg.JWTAccessSecret)
	assert.Equal(t, strongRefreshSecret, cfg.JWTRefreshSecret)
}

func TestLoad_RejectsIdenticalSecrets(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":        "development",
		"JWT_ACCESS_SECRET":  strongAccessSecret,
		"JWT_REFRESH_SECRET": strongAccessSecret,
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_RejectsBcryptCostOutOfRange(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT": "development",
		"BCRYPT_COST": "4",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")
}

func TestLoad_RejectsNonPositiveTokenTTL(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":      "development",
		"ACCESS_TOKEN_TTL": "0s",
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "token lifetimes")
}

func TestLoad_SplitsListValues(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":          "development",
		"KAFKA_BROKERS":        "kafka-1:9092,kafka-2:9092",
		"CORS_ALLOWED_ORIGINS": "https://app.example.com,https://admin.example.com",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}
