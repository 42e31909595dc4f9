package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, "http://localhost:8000", cfg.UpstreamURL)
	require.Equal(t, "./static", cfg.StaticDir)
	require.Equal(t, 10, cfg.RateLimitPerMinute)
	require.Equal(t, 10, cfg.RateLimitBurst)
	require.Equal(t, 2*time.Minute, cfg.UpstreamTimeout)
	require.Equal(t, slog.LevelInfo, cfg.Level())
	require.Empty(t, cfg.ParamPrefix)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "https://gen.example.com/")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")
	t.Setenv("UPSTREAM_TIMEOUT", "30s")
	t.Setenv("PARAM_PREFIX", "/prompt-form/")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://gen.example.com", cfg.UpstreamURL)
	require.Equal(t, 5, cfg.RateLimitPerMinute)
	require.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, "/prompt-form", cfg.ParamPrefix)
	require.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, "listen_address: 127.0.0.1:9090\nupstream_url: http://ollama-gateway:8000\nrate_limit_burst: 3\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", cfg.ListenAddress)
	require.Equal(t, "http://ollama-gateway:8000", cfg.UpstreamURL)
	require.Equal(t, 3, cfg.RateLimitBurst)
}

func TestLoad_TrustedProxies(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Empty(t, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")
	cfg, err = Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}

func TestLoad_TrustedProxiesFromFile(t *testing.T) {
	path := writeConfig(t, "trusted_proxies:\n  - 172.16.0.0/12\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"172.16.0.0/12"}, cfg.TrustedProxies)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeConfig(t, "listen_address: 127.0.0.1:9090\n")
	t.Setenv("LISTEN_ADDRESS", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.ListenAddress)
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "static_dir: /srv/static\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/srv/static", cfg.StaticDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "config: read")
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "relative upstream", key: "UPSTREAM_URL", val: "localhost:8000", want: "upstream_url"},
		{name: "ftp upstream", key: "UPSTREAM_URL", val: "ftp://example.com", want: "upstream_url"},
		{name: "zero rate", key: "RATE_LIMIT_PER_MINUTE", val: "0", want: "rate_limit_per_minute"},
		{name: "zero burst", key: "RATE_LIMIT_BURST", val: "-1", want: "rate_limit_burst"},
		{name: "zero timeout", key: "UPSTREAM_TIMEOUT", val: "0s", want: "upstream_timeout"},
		{name: "bad level", key: "LOG_LEVEL", val: "loud", want: "log_level"},
		{name: "bad trusted proxy", key: "TRUSTED_PROXIES", val: "10.0.0.0/8,not-a-cidr", want: "trusted_proxies"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load("")
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
