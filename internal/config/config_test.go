package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolve_AppliesDefaults(t *testing.T) {
	raw := RawConfig{APIToken: "tok"}
	cfg, err := raw.Resolve()
	require.NoError(t, err)
	require.Equal(t, "tok", cfg.APIToken)
	require.Equal(t, 60*time.Second, cfg.ExecutionTimeout)
	require.Equal(t, 2048, cfg.MaxOutputBytes)
	require.NotEmpty(t, cfg.WorkspaceDir)
	require.Equal(t, defaultCMAClientVersion, cfg.CMAClientVersion)
}

func TestResolve_HonorsExplicitOverrides(t *testing.T) {
	raw := RawConfig{
		ExecutionTimeoutSeconds: "120",
		MaxOutputBytes:          "4096",
		WorkspaceDir:            "/tmp/custom-workspace",
		CMAClientVersion:        "^4.0.0",
	}
	cfg, err := raw.Resolve()
	require.NoError(t, err)
	require.Equal(t, 120*time.Second, cfg.ExecutionTimeout)
	require.Equal(t, 4096, cfg.MaxOutputBytes)
	require.Equal(t, "/tmp/custom-workspace", cfg.WorkspaceDir)
	require.Equal(t, "^4.0.0", cfg.CMAClientVersion)
}

func TestResolve_RejectsNonNumericTimeout(t *testing.T) {
	raw := RawConfig{ExecutionTimeoutSeconds: "soon"}
	_, err := raw.Resolve()
	require.Error(t, err)
}

func TestResolve_RejectsInvalidBaseURL(t *testing.T) {
	raw := RawConfig{BaseURL: "not a url"}
	_, err := raw.Resolve()
	require.Error(t, err)
}

func TestHasAPIToken(t *testing.T) {
	require.True(t, Config{APIToken: "x"}.HasAPIToken())
	require.False(t, Config{}.HasAPIToken())
}

func TestFromFile_MissingFileIsNotAnError(t *testing.T) {
	raw, err := FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, RawConfig{}, raw)
}

func TestFromFile_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apiToken: from-file\nmaxOutputBytes: \"4096\"\n"), 0o644))

	raw, err := FromFile(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", raw.APIToken)
	require.Equal(t, "4096", raw.MaxOutputBytes)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apiToken: from-file\nenvironment: staging\n"), 0o644))

	t.Setenv("DATOCMS_API_TOKEN", "from-env")
	t.Setenv("DATOCMS_ENVIRONMENT", "")
	t.Setenv("DATOCMS_BASE_URL", "")
	t.Setenv("EXECUTION_TIMEOUT_SECONDS", "")
	t.Setenv("MAX_OUTPUT_BYTES", "")
	t.Setenv("DATOCMS_MCP_WORKSPACE_DIR", "")
	t.Setenv("DATOCMS_CMA_CLIENT_VERSION", "")

	raw, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", raw.APIToken)
	require.Equal(t, "staging", raw.Environment)
}
