package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_EnvDefaultsAndFlagOverride(t *testing.T) {
	t.Setenv("CV_JWT_KEY", "jwt")
	t.Setenv("CV_EVENT_SECRET", "events")
	t.Setenv("CV_DB_DRIVER", "sqlite")
	t.Setenv("CV_DSN", "/tmp/cv.db")
	t.Setenv("CV_OUTBOX_INTERVAL", "250ms")

	cfg, err := Load([]string{"-sync-mode", "direct", "-outbox-batch", "7"})
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.DBDriver)
	require.Equal(t, "/tmp/cv.db", cfg.DSN)
	require.Equal(t, 250*time.Millisecond, cfg.OutboxInterval)
	require.Equal(t, SyncDirect, cfg.SyncMode)
	require.Equal(t, 7, cfg.OutboxBatchSize)
	require.Equal(t, 10, cfg.OutboxMaxAttempts)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
	require.Equal(t, "127.0.0.1:8081", cfg.AdminAddr)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("CV_JWT_KEY", "jwt")
	t.Setenv("CV_EVENT_SECRET", "events")
	t.Setenv("CV_ADDR", ":9000")

	cfg, err := Load([]string{"-addr", ":9100"})
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.Addr)
}

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Setenv("CV_JWT_KEY", "")
	t.Setenv("CV_EVENT_SECRET", "")

	_, err := Load(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt signing key")
	require.Contains(t, err.Error(), "event signing secret")
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("CV_CACHE_TTL", "forever")

	_, err := Load(nil)
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "parse env:"))
}

func TestValidate_Enums(t *testing.T) {
	cfg := Config{
		JWTKey: "k", EventSecret: "s", DSN: "x",
		DBDriver: "mysql", SyncMode: "eventually",
		TLSCert: "cert.pem", OutboxBatchSize: 1, OutboxMaxAttempts: 1,
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown db driver "mysql"`)
	require.Contains(t, err.Error(), `unknown sync mode "eventually"`)
	require.Contains(t, err.Error(), "tls-cert and tls-key")
}
