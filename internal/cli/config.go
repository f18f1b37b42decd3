// internal/cli/config.go
package cli

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/arc-language/ultrabunt/pkg/core"
)

// EnvPrefix prefixes every environment variable ultrabunt reads
const EnvPrefix = "ULTRABUNT"

// loadConfig layers defaults, the YAML file, .env files, ULTRABUNT_* variables
// and finally command-line flags
func loadConfig(cmd *cobra.Command) (*core.Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindFlags(v, cmd.Flags())

	path := cfgFile
	if path == "" {
		path = v.GetString("config")
	}
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyOverrides(v, cfg)
	cfg.ExcludedCategories = exclusions(cfg.ExcludedCategories, v.GetString("exclude"))
	return cfg, nil
}

// bindFlags lets the flags that mirror config keys take precedence over the
// environment and the config file
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for key, name := range map[string]string{"log_file": "log-file", "debug": "debug"} {
		if f := flags.Lookup(name); f != nil {
			v.BindPFlag(key, f)
		}
	}
}

// loadEnvFiles loads .env then .env.local; variables already set win
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

func applyOverrides(v *viper.Viper, cfg *core.Config) {
	if v.IsSet("log_file") {
		cfg.LogFile = v.GetString("log_file")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("cache_dir") {
		cfg.CacheDir = v.GetString("cache_dir")
	}
	if v.IsSet("backup_dir") {
		cfg.BackupDir = v.GetString("backup_dir")
	}
	if v.IsSet("catalog_repo") {
		cfg.CatalogRepo = v.GetString("catalog_repo")
	}
	if v.IsSet("catalog_branch") {
		cfg.CatalogBranch = v.GetString("catalog_branch")
	}
	if v.IsSet("use_sudo") {
		cfg.UseSudo = v.GetBool("use_sudo")
	}
	if v.IsSet("command_timeout") {
		cfg.CommandTimeout = v.GetDuration("command_timeout")
	}
	if v.IsSet("debug") {
		cfg.Debug = v.GetBool("debug")
	}
	if v.IsSet("tts.enabled") {
		cfg.TTS.Enabled = v.GetBool("tts.enabled")
	}
	if v.IsSet("tts.voice") {
		cfg.TTS.Voice = v.GetString("tts.voice")
	}
	if v.IsSet("tts.rate") {
		cfg.TTS.Rate = v.GetInt("tts.rate")
	}
	if cfg.Debug {
		debug = true
		cfg.LogLevel = "debug"
	}
}

// exclusions merges configured, environment and flag exclusions into one
// sorted list. --minimal and --core-only hide every non-core category.
func exclusions(configured []string, env string) []string {
	set := make(map[string]bool)
	add := func(ids ...string) {
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				set[id] = true
			}
		}
	}

	add(configured...)
	add(strings.Split(env, ",")...)
	add(exclude...)
	for id, on := range noCategory {
		if *on {
			add(id)
		}
	}
	if minimal || coreOnly {
		for _, c := range builtinCategories() {
			if !c.Core {
				add(c.ID)
			}
		}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or save the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration after env and flag overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = core.DefaultConfigPath()
		}
		if err := core.SaveConfig(config, path); err != nil {
			return err
		}
		colSuccess.Printf("✓ configuration written to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSaveCmd)
}
