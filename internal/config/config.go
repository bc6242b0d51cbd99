// Package config resolves the scraper's settings from defaults, a config
// file, GREEN_ prefixed environment variables and flags. Components only see
// the resolved Config.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/AlfredBerg/green-scraper/internal/auth"
)

const EnvPrefix = "GREEN"

type Credentials struct {
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"password"`
}

type Marker struct {
	Selector string `mapstructure:"selector" yaml:"selector"`
	// Text is matched inside the marker element. Empty disables the check.
	Text string `mapstructure:"text" yaml:"text"`
}

type Config struct {
	Headless           bool   `mapstructure:"headless" yaml:"headless"`
	UseReusableProfile bool   `mapstructure:"use_reusable_profile" yaml:"use_reusable_profile"`
	ProfilePath        string `mapstructure:"profile_path" yaml:"profile_path"`
	ProfileName        string `mapstructure:"profile_name" yaml:"profile_name"`
	RemoteDebugPort    int    `mapstructure:"remote_debug_port" yaml:"remote_debug_port"`
	ChromeBin          string `mapstructure:"chrome_bin" yaml:"chrome_bin"`

	Strategy             string      `mapstructure:"strategy" yaml:"strategy"`
	Credentials          Credentials `mapstructure:"credentials" yaml:"credentials"`
	DelegatedCredentials Credentials `mapstructure:"delegated_credentials" yaml:"delegated_credentials"`
	UseKeyring           bool        `mapstructure:"use_keyring" yaml:"use_keyring"`
	Interactive          bool        `mapstructure:"interactive" yaml:"interactive"`
	LoggedInMarker       Marker      `mapstructure:"logged_in_marker" yaml:"logged_in_marker"`

	MaxRetries              int `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds       int `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	MaxRecords              int `mapstructure:"max_records" yaml:"max_records"`
	MaxScrolls              int `mapstructure:"max_scrolls" yaml:"max_scrolls"`
	ScrollPauseMillis       int `mapstructure:"scroll_pause_millis" yaml:"scroll_pause_millis"`
	OperationTimeoutSeconds int `mapstructure:"operation_timeout_seconds" yaml:"operation_timeout_seconds"`

	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	LoginPath     string `mapstructure:"login_path" yaml:"login_path"`
	FavoritesPath string `mapstructure:"favorites_path" yaml:"favorites_path"`

	Outputs       []string `mapstructure:"outputs" yaml:"outputs"`
	OutputDir     string   `mapstructure:"output_dir" yaml:"output_dir"`
	SqlitePath    string   `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	ScreenshotDir string   `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// SetDefaults registers every key, which also lets AutomaticEnv see nested
// keys such as GREEN_CREDENTIALS_EMAIL.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("headless", false)
	v.SetDefault("use_reusable_profile", false)
	v.SetDefault("profile_path", "")
	v.SetDefault("profile_name", "Default")
	v.SetDefault("remote_debug_port", 0)
	v.SetDefault("chrome_bin", "")

	v.SetDefault("strategy", "direct")
	v.SetDefault("credentials.email", "")
	v.SetDefault("credentials.password", "")
	v.SetDefault("delegated_credentials.email", "")
	v.SetDefault("delegated_credentials.password", "")
	v.SetDefault("use_keyring", true)
	v.SetDefault("interactive", true)
	v.SetDefault("logged_in_marker.selector", auth.DefaultMarker)
	v.SetDefault("logged_in_marker.text", "")

	v.SetDefault("max_retries", 2)
	v.SetDefault("retry_delay_seconds", 5)
	v.SetDefault("max_records", 0)
	v.SetDefault("max_scrolls", 100)
	v.SetDefault("scroll_pause_millis", 1000)
	v.SetDefault("operation_timeout_seconds", 30)

	v.SetDefault("base_url", "https://www.green-japan.com")
	v.SetDefault("login_path", "/login")
	v.SetDefault("favorites_path", "/favorites/sent")

	v.SetDefault("outputs", []string{"xlsx", "table"})
	v.SetDefault("output_dir", "")
	v.SetDefault("sqlite_path", "green.db")
	v.SetDefault("screenshot_dir", ".")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "scraping.log")
}

// BindEnv makes GREEN_MAX_RETRIES and friends override file values.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed decoding config: %w", err)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c, c.Validate()
}

var knownOutputs = map[string]bool{"xlsx": true, "sqlite": true, "table": true}

func (c Config) Validate() error {
	var err error
	if c.MaxRetries < 0 {
		err = multierr.Append(err, errors.New("max_retries must not be negative"))
	}
	if c.RetryDelaySeconds < 0 {
		err = multierr.Append(err, errors.New("retry_delay_seconds must not be negative"))
	}
	if c.MaxRecords < 0 {
		err = multierr.Append(err, errors.New("max_records must not be negative"))
	}
	if c.MaxScrolls <= 0 {
		err = multierr.Append(err, errors.New("max_scrolls must be positive"))
	}
	if _, serr := auth.ParseStrategy(c.Strategy); serr != nil {
		err = multierr.Append(err, serr)
	}
	if u, uerr := url.Parse(c.BaseURL); uerr != nil || u.Scheme == "" || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("base_url %q is not an absolute url", c.BaseURL))
	}
	if c.UseReusableProfile && c.ProfilePath == "" {
		err = multierr.Append(err, errors.New("use_reusable_profile needs profile_path"))
	}
	for _, o := range c.Outputs {
		if !knownOutputs[o] {
			err = multierr.Append(err, fmt.Errorf("unknown output %q", o))
		}
	}
	return err
}

func (c Config) AuthStrategy() auth.Strategy {
	s, _ := auth.ParseStrategy(c.Strategy)
	return s
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c Config) ScrollPause() time.Duration {
	return time.Duration(c.ScrollPauseMillis) * time.Millisecond
}

func (c Config) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}

func (c Config) ListingURL() string {
	return c.BaseURL + c.FavoritesPath
}

// CredentialMap keys the configured logins by strategy.
func (c Config) CredentialMap() map[auth.Strategy]auth.Credentials {
	return map[auth.Strategy]auth.Credentials{
		auth.Direct:    {Email: c.Credentials.Email, Password: c.Credentials.Password},
		auth.Delegated: {Email: c.DelegatedCredentials.Email, Password: c.DelegatedCredentials.Password},
	}
}

// Masked returns a copy safe to print.
func (c Config) Masked() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Credentials.Password = mask(c.Credentials.Password)
	c.DelegatedCredentials.Password = mask(c.DelegatedCredentials.Password)
	c.Outputs = append([]string(nil), c.Outputs...)
	return c
}
