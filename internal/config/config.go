// Package config holds welkin's configuration.
// Precedence: environment variables > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Browser   BrowserConfig        `mapstructure:"browser"`
	Run       RunConfig            `mapstructure:"run"`
	Apps      map[string]AppConfig `mapstructure:"apps"`
	Genderize GenderizeConfig      `mapstructure:"genderize"`
	Logging   LoggingConfig        `mapstructure:"logging"`
}

// BrowserConfig configures the browser backend and its sessions.
type BrowserConfig struct {
	// Driver is the backend name ("chromedp", "playwright").
	Driver string `mapstructure:"driver"`
	// Headless runs the browser without a window.
	Headless bool `mapstructure:"headless"`
	// RemoteURL attaches chromedp to a running browser's DevTools websocket.
	RemoteURL string `mapstructure:"remote_url"`
	// ViewportWidth and ViewportHeight size every new tab.
	ViewportWidth  int `mapstructure:"viewport_width"`
	ViewportHeight int `mapstructure:"viewport_height"`
	// ActionTimeoutSeconds bounds a single click or fill.
	ActionTimeoutSeconds int `mapstructure:"action_timeout_seconds"`
	// MaxSessions caps concurrently open browser sessions.
	MaxSessions int `mapstructure:"max_sessions"`
	// IdleTimeoutMinutes closes sessions nobody touched for that long.
	IdleTimeoutMinutes int `mapstructure:"idle_timeout_minutes"`
}

// RunConfig configures scenario runs.
type RunConfig struct {
	// LoadTimeoutSeconds bounds each load or unload wait.
	LoadTimeoutSeconds int `mapstructure:"load_timeout_seconds"`
	// PollIntervalMs is the delay between presence checks.
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	// ScreenshotDir receives diagnostic screenshots. Empty disables them.
	ScreenshotDir string `mapstructure:"screenshot_dir"`
	// ScreenshotOnArrival also captures every verified page.
	ScreenshotOnArrival bool `mapstructure:"screenshot_on_arrival"`
	// Parallel is how many applications run at once.
	Parallel int `mapstructure:"parallel"`
}

// AppConfig overrides one application's catalog defaults.
type AppConfig struct {
	// Domain replaces the domain in the application's routes.
	Domain string `mapstructure:"domain"`
	// Username is used by applications with a login form.
	Username string `mapstructure:"username"`
	// PasswordEnv names the environment variable holding the password.
	// Passwords are never stored in the config file.
	PasswordEnv string `mapstructure:"password_env"`
}

// GenderizeConfig configures the name/gender inference client.
type GenderizeConfig struct {
	// BaseURL is the API endpoint.
	BaseURL string `mapstructure:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `mapstructure:"api_key_env"`
	// TimeoutSeconds bounds a single request.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// RequestsPerSecond limits the client; 0 disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level"`
	// Format is the log format (json, text).
	Format string `mapstructure:"format"`
	// File is the log file path. Empty means stdout.
	File string `mapstructure:"file"`
}

// Load unmarshals the viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Run.ScreenshotDir = expandPath(cfg.Run.ScreenshotDir)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

// GetDriver returns the backend name, defaulting to "chromedp".
func (b *BrowserConfig) GetDriver() string {
	if b.Driver == "" {
		return "chromedp"
	}
	return b.Driver
}

// ActionTimeout returns the per-action bound, defaulting to 5 seconds.
func (b *BrowserConfig) ActionTimeout() time.Duration {
	if b.ActionTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(b.ActionTimeoutSeconds) * time.Second
}

// IdleTimeout returns the session idle bound, defaulting to 30 minutes.
func (b *BrowserConfig) IdleTimeout() time.Duration {
	if b.IdleTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(b.IdleTimeoutMinutes) * time.Minute
}

// LoadTimeout returns the load/unload bound, defaulting to 10 seconds.
func (r *RunConfig) LoadTimeout() time.Duration {
	if r.LoadTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.LoadTimeoutSeconds) * time.Second
}

// PollInterval returns the presence polling interval, defaulting to 250ms.
func (r *RunConfig) PollInterval() time.Duration {
	if r.PollIntervalMs <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(r.PollIntervalMs) * time.Millisecond
}

// GetParallel returns the number of concurrent application runs, at least 1.
func (r *RunConfig) GetParallel() int {
	if r.Parallel <= 0 {
		return 1
	}
	return r.Parallel
}

// GetPassword reads the password from the configured environment variable.
func (a AppConfig) GetPassword() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// GetAPIKey reads the API key from the configured environment variable.
func (g *GenderizeConfig) GetAPIKey() string {
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

// GetBaseURL returns the API endpoint, defaulting to the public service.
func (g *GenderizeConfig) GetBaseURL() string {
	if g.BaseURL == "" {
		return "https://api.genderize.io"
	}
	return g.BaseURL
}

// Timeout returns the request bound, defaulting to 10 seconds.
func (g *GenderizeConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	validDrivers := map[string]bool{
		"chromedp":   true,
		"playwright": true,
	}
	if !validDrivers[c.Browser.GetDriver()] {
		return fmt.Errorf("invalid browser driver: %s (chromedp, playwright)", c.Browser.Driver)
	}
	if c.Browser.RemoteURL != "" && c.Browser.GetDriver() != "chromedp" {
		return fmt.Errorf("browser.remote_url is only supported by the chromedp driver")
	}
	if c.Browser.ViewportWidth < 0 || c.Browser.ViewportHeight < 0 {
		return fmt.Errorf("viewport size must not be negative")
	}
	if c.Browser.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must be 0 or greater")
	}

	if c.Run.Parallel < 0 {
		return fmt.Errorf("parallel must be 0 or greater")
	}
	if c.Browser.MaxSessions > 0 && c.Run.GetParallel() > c.Browser.MaxSessions {
		return fmt.Errorf("parallel (%d) exceeds browser.max_sessions (%d)", c.Run.GetParallel(), c.Browser.MaxSessions)
	}

	if c.Genderize.RequestsPerSecond < 0 {
		return fmt.Errorf("genderize.requests_per_second must be 0 or greater")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (json, text)", c.Logging.Format)
	}

	return nil
}

// AppOverride returns the overrides for app; the zero value when none.
func (c *Config) AppOverride(app string) AppConfig {
	if c.Apps == nil {
		return AppConfig{}
	}
	return c.Apps[app]
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// EnsureConfigDir creates the config directory if it does not exist.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot find home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "welkin")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "welkin", "config.yaml")
}
