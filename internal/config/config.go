// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Defaults shared with packages that accept zero-valued configuration.
const (
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultLocatorTimeout    = 10 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
	DefaultPortalURL         = "https://dom.gosuslugi.ru/"
	DefaultDateFormat        = "02.01.2006"
	DefaultRecorderFPS       = 25
	EnvPrefix                = "METERPOST"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Locator() LocatorConfig
	Recorder() RecorderConfig
	Portal() PortalConfig

	SetBrowserHeadless(bool)
	SetRecorderEnabled(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	LocatorCfg  LocatorConfig  `mapstructure:"locator" yaml:"locator"`
	RecorderCfg RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	PortalCfg   PortalConfig   `mapstructure:"portal" yaml:"portal"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) Locator() LocatorConfig   { return c.LocatorCfg }
func (c *Config) Recorder() RecorderConfig { return c.RecorderCfg }
func (c *Config) Portal() PortalConfig     { return c.PortalCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetRecorderEnabled(b bool) { c.RecorderCfg.Enabled = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ViewportConfig is the emulated window size.
type ViewportConfig struct {
	Width  int64   `mapstructure:"width" yaml:"width"`
	Height int64   `mapstructure:"height" yaml:"height"`
	Scale  float64 `mapstructure:"scale" yaml:"scale"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	// Locale and Timezone are reported to pages, e.g. "ru-RU" and "Europe/Moscow".
	Locale   string `mapstructure:"locale" yaml:"locale"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
	// TypingDelay is the pause between key presses when typing into fields.
	TypingDelay   time.Duration `mapstructure:"typing_delay" yaml:"typing_delay"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// LocatorConfig tunes element waits.
type LocatorConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// RecorderConfig controls screencast capture of a run.
type RecorderConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	FPS        int    `mapstructure:"fps" yaml:"fps"`
	Width      int64  `mapstructure:"width" yaml:"width"`
	Height     int64  `mapstructure:"height" yaml:"height"`
	Quality    int64  `mapstructure:"quality" yaml:"quality"`
	Output     string `mapstructure:"output" yaml:"output"`
	FramesDir  string `mapstructure:"frames_dir" yaml:"frames_dir"`
	FFmpegPath string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	KeepFrames bool   `mapstructure:"keep_frames" yaml:"keep_frames"`
}

// PortalConfig carries the account and the readings to submit.
type PortalConfig struct {
	URL        string `mapstructure:"url" yaml:"url"`
	Login      string `mapstructure:"login" yaml:"-"`
	Password   string `mapstructure:"password" yaml:"-"`
	DateFormat string `mapstructure:"date_format" yaml:"date_format"`
	// StepTimeout is the base per-step budget of the portal flow.
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	ColdWater   MeterConfig   `mapstructure:"cold_water" yaml:"cold_water"`
	HotWater    MeterConfig   `mapstructure:"hot_water" yaml:"hot_water"`
}

// MeterConfig identifies one meter row and the value to enter.
type MeterConfig struct {
	ID    string `mapstructure:"id" yaml:"id"`
	Value string `mapstructure:"value" yaml:"value"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "meterpost")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport.width", 1366)
	v.SetDefault("browser.viewport.height", 786)
	v.SetDefault("browser.viewport.scale", 1.0)
	v.SetDefault("browser.locale", "ru-RU")
	v.SetDefault("browser.timezone", "Europe/Moscow")
	v.SetDefault("browser.typing_delay", "0s")
	v.SetDefault("browser.launch_timeout", "30s")

	// -- Locator --
	v.SetDefault("locator.poll_interval", DefaultPollInterval)
	v.SetDefault("locator.default_timeout", DefaultLocatorTimeout)
	v.SetDefault("locator.navigation_timeout", DefaultNavigationTimeout)

	// -- Recorder --
	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.fps", DefaultRecorderFPS)
	v.SetDefault("recorder.width", 1366)
	v.SetDefault("recorder.height", 786)
	v.SetDefault("recorder.quality", 80)
	v.SetDefault("recorder.output", "./temp/report.mp4")
	v.SetDefault("recorder.frames_dir", "")
	v.SetDefault("recorder.ffmpeg_path", "")
	v.SetDefault("recorder.keep_frames", false)

	// -- Portal --
	v.SetDefault("portal.url", DefaultPortalURL)
	v.SetDefault("portal.login", "")
	v.SetDefault("portal.password", "")
	v.SetDefault("portal.date_format", DefaultDateFormat)
	v.SetDefault("portal.step_timeout", DefaultLocatorTimeout)
	v.SetDefault("portal.cold_water.id", "")
	v.SetDefault("portal.cold_water.value", "")
	v.SetDefault("portal.hot_water.id", "")
	v.SetDefault("portal.hot_water.value", "")
}

// legacyEnv maps config keys onto the environment variable names the portal
// automation has always used.
var legacyEnv = map[string]string{
	"portal.login":            "GOSUSLUGI_LOGIN",
	"portal.password":         "GOSUSLUGI_PASSWORD",
	"portal.cold_water.id":    "COLD_WATER_ID",
	"portal.cold_water.value": "COLD_WATER_NEW_VALUE",
	"portal.hot_water.id":     "HOT_WATER_ID",
	"portal.hot_water.value":  "HOT_WATER_NEW_VALUE",
	"browser.exec_path":       "CHROME_PATH",
	"recorder.ffmpeg_path":    "FFMPEG_PATH",
}

// BindEnv wires METERPOST_* overrides for every key plus the legacy names above.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// The prefixed name keeps priority over the legacy one.
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	BindEnv(v)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("error expanding paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in file system settings.
func (c *Config) expandPaths() error {
	for _, p := range []*string{
		&c.LoggerCfg.LogFile,
		&c.BrowserCfg.ExecPath,
		&c.RecorderCfg.Output,
		&c.RecorderCfg.FramesDir,
		&c.RecorderCfg.FFmpegPath,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.LocatorCfg.PollInterval <= 0 {
		return fmt.Errorf("locator.poll_interval must be a positive duration")
	}
	if c.LocatorCfg.DefaultTimeout <= 0 {
		return fmt.Errorf("locator.default_timeout must be a positive duration")
	}
	if c.LocatorCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("locator.navigation_timeout must be a positive duration")
	}
	if c.BrowserCfg.Viewport.Width <= 0 || c.BrowserCfg.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport width and height must be positive")
	}
	if c.BrowserCfg.TypingDelay < 0 {
		return fmt.Errorf("browser.typing_delay must not be negative")
	}
	if err := c.RecorderCfg.Validate(); err != nil {
		return fmt.Errorf("recorder configuration invalid: %w", err)
	}
	if c.PortalCfg.URL == "" {
		return fmt.Errorf("portal.url is a required configuration field")
	}
	return nil
}

// Validate checks the recorder settings. A disabled recorder is always valid.
func (r *RecorderConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.FPS <= 0 {
		return fmt.Errorf("fps must be greater than 0")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if r.Output == "" {
		return fmt.Errorf("output path is required")
	}
	return nil
}

// ErrMissingCredentials is returned when the portal account is not configured.
var ErrMissingCredentials = errors.New("portal login and password are required; set GOSUSLUGI_LOGIN and GOSUSLUGI_PASSWORD")

// ValidateSubmission checks the settings only the submit command needs.
func (p *PortalConfig) ValidateSubmission() error {
	if p.Login == "" || p.Password == "" {
		return ErrMissingCredentials
	}
	var missing []string
	for name, val := range map[string]string{
		"COLD_WATER_ID":        p.ColdWater.ID,
		"COLD_WATER_NEW_VALUE": p.ColdWater.Value,
		"HOT_WATER_ID":         p.HotWater.ID,
		"HOT_WATER_NEW_VALUE":  p.HotWater.Value,
	} {
		if val == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("portal readings incomplete, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}
