package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Workspace)
	assert.Equal(t, filepath.Join(".", "openduck.json"), cfg.StorePath)
	assert.Empty(t, cfg.EnginePath)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "table", cfg.Output)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
workspace: /data/duck
output: json
connect_timeout: 3s
log_level: info
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/data/duck", cfg.Workspace)
	assert.Equal(t, filepath.Join("/data/duck", "openduck.json"), cfg.StorePath)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("output: json\n"), 0o644))

	t.Setenv("OPENDUCK_OUTPUT", "csv")
	t.Setenv("OPENDUCK_LOG_LEVEL", "debug")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.Output)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	t.Setenv("OPENDUCK_OUTPUT", "csv")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "")
	flags.String("store-path", "", "")
	require.NoError(t, flags.Set("output", "md"))
	require.NoError(t, flags.Set("store-path", "/tmp/custom.json"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "md", cfg.Output)
	assert.Equal(t, "/tmp/custom.json", cfg.StorePath)
}

func TestLoad_VerboseRaisesLogLevel(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Set("verbose", "true"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_StorePathFollowsWorkspace(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("workspace", "", "")
	require.NoError(t, flags.Set("workspace", "/srv/duck"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/duck", "openduck.json"), cfg.StorePath)
}
