// Package cmd defines the welkin CLI commands.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsisson/welkin/internal/config"
	"github.com/dsisson/welkin/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// global flags
	cfgFile string
	verbose bool

	// version info, injected from main
	appVersion   string
	appCommit    string
	appBuildDate string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "welkin",
	Short: "Page-object navigation runner for browser end-to-end tests",
	Long: `welkin drives a browser through the page objects of each application under
test. Every page is resolved by identifier from the application's routing
table, loaded, and verified before the next step.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the build version info.
func SetVersionInfo(version, commit, buildDate string) {
	appVersion = version
	appCommit = commit
	appBuildDate = buildDate
}

// GetVersionInfo returns the build version info.
func GetVersionInfo() (version, commit, buildDate string) {
	return appVersion, appCommit, appBuildDate
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default ~/.config/welkin/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"debug logging")
}

// initConfig reads the config file and environment.
// Precedence: environment > config file > defaults.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "welkin"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// WELKIN_RUN_PARALLEL etc.
	viper.SetEnvPrefix("WELKIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// A missing config file is fine.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "failed to read config file: %v\n", err)
		}
	}
}

// setDefaults defines the default configuration.
func setDefaults() {
	// browser
	viper.SetDefault("browser.driver", "chromedp")
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.remote_url", "")
	viper.SetDefault("browser.viewport_width", 1280)
	viper.SetDefault("browser.viewport_height", 800)
	viper.SetDefault("browser.action_timeout_seconds", 5)
	viper.SetDefault("browser.max_sessions", 3)
	viper.SetDefault("browser.idle_timeout_minutes", 30)

	// run
	viper.SetDefault("run.load_timeout_seconds", 10)
	viper.SetDefault("run.poll_interval_ms", 250)
	viper.SetDefault("run.screenshot_dir", "")
	viper.SetDefault("run.screenshot_on_arrival", false)
	viper.SetDefault("run.parallel", 1)

	// genderize
	viper.SetDefault("genderize.base_url", "https://api.genderize.io")
	viper.SetDefault("genderize.api_key_env", "GENDERIZE_API_KEY")
	viper.SetDefault("genderize.timeout_seconds", 10)
	viper.SetDefault("genderize.requests_per_second", 1)

	// logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.file", "")
}

// initLogger configures the global logger from the loaded config.
func initLogger() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger.Setup(cfg.Logging)
	return nil
}

// loadConfig loads and validates the configuration for commands that act on it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
