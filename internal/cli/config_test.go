package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/ultrabunt/pkg/core"
)

// resetFlags restores the package-level flag state after a test
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile, debug, logFile, minimal, coreOnly, exclude = "", false, "", false, false, nil
		for _, v := range noCategory {
			*v = false
		}
	})
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-file", "", "")
	cmd.Flags().Bool("debug", false, "")
	return cmd
}

func TestLoadConfigLayers(t *testing.T) {
	resetFlags(t)

	dir := t.TempDir()
	cfgFile = filepath.Join(dir, "config.yaml")
	yaml := "log_level: warn\nlog_file: /from/yaml.log\nexcluded_categories: [dev]\ntts:\n  voice: female1\n"
	require.NoError(t, os.WriteFile(cfgFile, []byte(yaml), 0644))

	t.Setenv("ULTRABUNT_LOG_FILE", "/from/env.log")
	t.Setenv("ULTRABUNT_TTS_ENABLED", "true")
	t.Setenv("ULTRABUNT_TTS_RATE", "40")
	t.Setenv("ULTRABUNT_EXCLUDE", "gaming, media")

	cfg, err := loadConfig(testCommand())
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/from/env.log", cfg.LogFile)
	assert.True(t, cfg.TTS.Enabled)
	assert.Equal(t, "female1", cfg.TTS.Voice)
	assert.Equal(t, 40, cfg.TTS.Rate)
	assert.Equal(t, []string{"dev", "gaming", "media"}, cfg.ExcludedCategories)
}

func TestLoadConfigFlagBeatsEnv(t *testing.T) {
	resetFlags(t)
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	t.Setenv("ULTRABUNT_LOG_FILE", "/from/env.log")

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Set("log-file", "/from/flag.log"))
	require.NoError(t, cmd.Flags().Set("debug", "true"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.log", cfg.LogFile)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestExclusionsFromFlags(t *testing.T) {
	resetFlags(t)

	exclude = []string{"network"}
	*noCategory["gaming"] = true
	assert.Equal(t, []string{"dev", "gaming", "network"}, exclusions([]string{"dev"}, ""))
}

func TestExclusionsMinimalKeepsCore(t *testing.T) {
	resetFlags(t)
	minimal = true

	got := exclusions(nil, "")
	assert.NotContains(t, got, "system")
	assert.NotContains(t, got, "editors")
	assert.NotContains(t, got, "browsers")
	assert.Contains(t, got, "gaming")
	assert.Contains(t, got, "dev")
}

func TestCategoryFlagsRegistered(t *testing.T) {
	for _, id := range []string{"system", "dev", "gaming", "media"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup("no-"+id), id)
	}
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	resetFlags(t)
	rootCmd.SetArgs([]string{"version", "--bogus"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	var usage *usageError
	assert.True(t, errors.As(err, &usage))
}

func TestVerbing(t *testing.T) {
	assert.Equal(t, "Installing", verbing("installed"))
	assert.Equal(t, "Removing", verbing("removed"))
}

func TestConfigSaveRoundTrip(t *testing.T) {
	resetFlags(t)
	saved := config
	t.Cleanup(func() { config = saved })

	cfgFile = filepath.Join(t.TempDir(), "nested", "config.yaml")
	config = core.DefaultConfig()
	config.ExcludedCategories = []string{"gaming"}
	config.TTS.Voice = "female2"

	require.NoError(t, configSaveCmd.RunE(configSaveCmd, nil))

	got, err := core.LoadConfig(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"gaming"}, got.ExcludedCategories)
	assert.Equal(t, "female2", got.TTS.Voice)
	assert.Equal(t, config.CommandTimeout, got.CommandTimeout)
}
