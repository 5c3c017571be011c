package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg := Star(v, "")
	require.Equal(t, "starlight", cfg.UserAgent)
	require.Equal(t, "TMO", cfg.Oper)
	require.Equal(t, "GetDevices_AVT", cfg.DevicesOperation)
	require.Equal(t, "GetReport_AVT", cfg.ReportOperation)
	require.Equal(t, -6*time.Hour, cfg.UTCOffset)
	require.Equal(t, 3, cfg.Retries)
	require.Equal(t, 2*time.Minute, cfg.Timeout)
}

func TestApplyEnvFile(t *testing.T) {
	path := writeEnvFile(t, `{"STAR_URL": "http://star.example/Service.asmx", "STAR_USER_AGENT": "legacy-agent", "SID": "abc123"}`)

	v := viper.New()
	SetDefaults(v)
	v.Set(KeyEnvFile, path)
	v.Set(KeySID, "from-config")
	require.NoError(t, ApplyEnvFile(v))

	cfg := Star(v, "http://127.0.0.1:8080")
	require.Equal(t, "http://star.example/Service.asmx", cfg.URL)
	require.Equal(t, "legacy-agent", cfg.UserAgent)
	require.Equal(t, "from-config", cfg.SID, "explicit settings win over the env file")
	require.Equal(t, "http://127.0.0.1:8080", cfg.Proxy)
}

func TestApplyEnvFileErrors(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	require.NoError(t, ApplyEnvFile(v), "no env file configured")

	v.Set(KeyEnvFile, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, ApplyEnvFile(v))

	v.Set(KeyEnvFile, writeEnvFile(t, `STAR_URL=http://x`))
	require.Error(t, ApplyEnvFile(v))
}

func TestReadEnvFilePartial(t *testing.T) {
	env, err := ReadEnvFile(writeEnvFile(t, `{"SID": "only-sid"}`))
	require.NoError(t, err)
	require.Equal(t, EnvFile{SID: "only-sid"}, env)
}
