package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("HMRC_CLIENT_ID", "client-id")
	t.Setenv("HMRC_CLIENT_SECRET", "client-secret")
	t.Setenv("HMRC_REDIRECT_URI", "https://app.example.com/oauth/callback")
}

func TestLoad(t *testing.T) {
	t.Run("loads all config from env", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("HMRC_BASE_URL", "https://api.service.hmrc.gov.uk/")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		require.Equal(t, "client-id", cfg.HMRCClientID)
		require.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("trims trailing slash from base URL", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("HMRC_BASE_URL", "https://api.service.hmrc.gov.uk/")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "https://api.service.hmrc.gov.uk", cfg.HMRCBaseURL)
	})

	t.Run("defaults to sandbox base URL", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("HMRC_BASE_URL", "")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, DefaultHMRCBaseURL, cfg.HMRCBaseURL)
		require.Equal(t, DefaultHMRCAPIVersion, cfg.HMRCAPIVersion)
		require.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	})

	t.Run("parses timeout seconds", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("HMRC_TIMEOUT_SECONDS", "45")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, 45*time.Second, cfg.HMRCTimeout)
	})

	t.Run("ignores invalid timeout seconds", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("HMRC_TIMEOUT_SECONDS", "-3")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, DefaultHMRCTimeout, cfg.HMRCTimeout)
	})

	t.Run("fails when required vars missing", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("HMRC_CLIENT_ID", "")
		t.Setenv("HMRC_CLIENT_SECRET", "")
		t.Setenv("HMRC_REDIRECT_URI", "")

		_, err := Load()
		require.Error(t, err)
		require.Contains(t, err.Error(), "DATABASE_URL is required")
		require.Contains(t, err.Error(), "HMRC_CLIENT_ID is required")
	})
}
