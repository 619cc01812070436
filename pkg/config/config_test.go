package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		k, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) || k == "DATABRICKS_HOST" || k == "DATABRICKS_TOKEN" {
			t.Setenv(k, "")
			require.NoError(t, os.Unsetenv(k))
		}
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), DefaultConfigFilename)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o600))
	return p
}

const sample = `
default_profile: dev
profiles:
  dev:
    host: https://dev.example.com
    token: dapi-dev
    workspace_path: /Users/dev@example.com/dltctl_artifacts
    poll_interval: 2s
  prod:
    host: https://prod.example.com
    token: dapi-prod
    max_polls_without_events: 10
`

func TestLoad_ResolvesDefaultProfile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.Equal(t, []string{"dev", "prod"}, cfg.ProfileNames())

	p, err := cfg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "https://dev.example.com", p.Host)
	require.Equal(t, 2*time.Second, p.PollInterval)
	require.Equal(t, DefaultMaxPollsWithoutEvents, p.MaxPollsWithoutEvents)
	require.Equal(t, DefaultRunMaxAttempts, p.RunMaxAttempts)
	require.NoError(t, p.Validate())

	p, err = cfg.Resolve("prod")
	require.NoError(t, err)
	require.Equal(t, "dapi-prod", p.Token)
	require.Equal(t, 10, p.MaxPollsWithoutEvents)
	require.Equal(t, DefaultPollInterval, p.PollInterval)

	_, err = cfg.Resolve("staging")
	require.Error(t, err)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, sample)

	t.Setenv("DATABRICKS_TOKEN", "dapi-from-databricks-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	p, err := cfg.Resolve("dev")
	require.NoError(t, err)
	require.Equal(t, "dapi-from-databricks-env", p.Token)
	require.Equal(t, "https://dev.example.com", p.Host)

	t.Setenv("DLTCTL_TOKEN", "dapi-from-dltctl-env")
	t.Setenv("DLTCTL_POLL_INTERVAL", "250ms")
	t.Setenv("DLTCTL_PROFILES__PROD__HOST", "https://prod-2.example.com")
	t.Setenv("DLTCTL_DEFAULT_PROFILE", "prod")
	cfg, err = Load(path)
	require.NoError(t, err)
	p, err = cfg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "https://prod-2.example.com", p.Host)
	require.Equal(t, "dapi-from-dltctl-env", p.Token)
	require.Equal(t, 250*time.Millisecond, p.PollInterval)
}

func TestLoadOptional_MissingFileUsesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABRICKS_HOST", "https://env.example.com")

	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	p, err := cfg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com", p.Host)
	require.Error(t, p.Validate())
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := LoadOptional(writeConfig(t, "profiles: [unclosed"))
	require.Error(t, err)
}
