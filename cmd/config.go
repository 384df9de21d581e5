package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dsisson/welkin/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd groups the configuration subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Read or change values in the config file.

Config file: ~/.config/welkin/config.yaml

Secrets are never stored in the file. Point the *_env keys at environment
variables instead:
  - genderize.api_key_env:          genderize.io API key
  - apps.<name>.password_env:       login password for an application`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Store a value in the config file. Keys are dot-separated paths.

Examples:
  welkin config set browser.driver playwright
  welkin config set run.parallel 3
  welkin config set apps.herokuapp.domain http://localhost:7080`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a config value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the effective configuration as YAML",
	RunE:  runConfigList,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(config.DefaultConfigPath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default config file to ~/.config/welkin/config.yaml.
An existing file is kept unless --force is given.`,
	RunE: runConfigInit,
}

var forceInit bool

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	if !isValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %s", key)
	}

	parsedValue := parseConfigValue(value)
	viper.Set(key, parsedValue)

	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	configPath := config.DefaultConfigPath()
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("%s = %v\n", key, parsedValue)
	fmt.Printf("saved to %s\n", configPath)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	value := viper.Get(key)
	if value == nil {
		return fmt.Errorf("config key not found: %s", key)
	}

	fmt.Printf("%s = %v\n", key, value)
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("# config file: %s\n", configFile)
	} else {
		fmt.Printf("# config file: (defaults)\n")
	}
	fmt.Println()

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Println(string(yamlData))

	fmt.Println("# environment:")
	printEnvStatus("genderize api key", cfg.Genderize.APIKeyEnv)
	for name, app := range cfg.Apps {
		if app.PasswordEnv != "" {
			printEnvStatus(name+" password", app.PasswordEnv)
		}
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := config.DefaultConfigPath()

	if !forceInit {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nuse --force to overwrite it", configPath)
		}
	}

	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigFile), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("config file written: %s\n", configPath)
	return nil
}

const defaultConfigFile = `# welkin config
# written by: welkin config init

browser:
  driver: "chromedp"       # chromedp, playwright
  headless: true
  remote_url: ""           # attach chromedp to a running browser
  viewport_width: 1280
  viewport_height: 800
  action_timeout_seconds: 5
  max_sessions: 3
  idle_timeout_minutes: 30

run:
  load_timeout_seconds: 10
  poll_interval_ms: 250
  screenshot_dir: ""       # empty disables screenshots
  screenshot_on_arrival: false
  parallel: 1

apps:
  herokuapp:
    domain: "https://the-internet.herokuapp.com"
    # username: "tomsmith"
    # password_env: "HEROKUAPP_PASSWORD"

genderize:
  base_url: "https://api.genderize.io"
  api_key_env: "GENDERIZE_API_KEY"
  timeout_seconds: 10
  requests_per_second: 1

logging:
  level: "info"    # debug, info, warn, error
  format: "text"   # json, text
  file: ""         # empty means stdout
`

// isValidConfigKey reports whether key may be set with config set.
func isValidConfigKey(key string) bool {
	validKeys := map[string]bool{
		"browser.driver":                 true,
		"browser.headless":               true,
		"browser.remote_url":             true,
		"browser.viewport_width":         true,
		"browser.viewport_height":        true,
		"browser.action_timeout_seconds": true,
		"browser.max_sessions":           true,
		"browser.idle_timeout_minutes":   true,
		"run.load_timeout_seconds":       true,
		"run.poll_interval_ms":           true,
		"run.screenshot_dir":             true,
		"run.screenshot_on_arrival":      true,
		"run.parallel":                   true,
		"genderize.base_url":             true,
		"genderize.api_key_env":          true,
		"genderize.timeout_seconds":      true,
		"genderize.requests_per_second":  true,
		"logging.level":                  true,
		"logging.format":                 true,
		"logging.file":                   true,
	}
	if validKeys[key] {
		return true
	}
	// apps.<name>.<field>
	parts := strings.Split(key, ".")
	if len(parts) == 3 && parts[0] == "apps" && parts[1] != "" {
		switch parts[2] {
		case "domain", "username", "password_env":
			return true
		}
	}
	return false
}

// parseConfigValue converts a command-line string to a bool, int or float
// where it looks like one.
func parseConfigValue(value string) interface{} {
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	var intVal int
	if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
		if !strings.ContainsAny(value, ".:/") {
			return intVal
		}
	}

	var floatVal float64
	if _, err := fmt.Sscanf(value, "%f", &floatVal); err == nil && !strings.ContainsAny(value, ":/") {
		return floatVal
	}

	return value
}

// maskSensitiveValue masks all but the ends of a secret.
func maskSensitiveValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

// printEnvStatus reports whether the variable envVar is set.
func printEnvStatus(displayName, envVar string) {
	if envVar == "" {
		fmt.Printf("  %s: not configured\n", displayName)
		return
	}
	if value := os.Getenv(envVar); value != "" {
		fmt.Printf("  %s: %s set (%s)\n", displayName, envVar, maskSensitiveValue(value))
	} else {
		fmt.Printf("  %s: %s not set\n", displayName, envVar)
	}
}
