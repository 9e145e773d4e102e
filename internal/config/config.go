// File: internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/raidpilot/internal/automation"
	"github.com/xkilldash9x/raidpilot/internal/breaks"
	"github.com/xkilldash9x/raidpilot/internal/browser"
	"github.com/xkilldash9x/raidpilot/internal/control"
	"github.com/xkilldash9x/raidpilot/internal/humanoid"
	"github.com/xkilldash9x/raidpilot/internal/screen"
	"github.com/xkilldash9x/raidpilot/internal/settings"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

// EnvPrefix is prepended to every environment override, e.g. RAIDPILOT_STORE_DSN.
const EnvPrefix = "RAIDPILOT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() browser.Config
	Automation() automation.Config
	Breaks() breaks.Config
	Humanoid() humanoid.Config
	Screen() screen.Config
	Store() store.Config
	Control() control.Config
	Settings() settings.Settings

	// Setters for the values the CLI flags can override.
	SetBrowserHeadless(bool)
	SetBrowserStartURL(string)
	SetStoreDriver(string)
	SetControlEnabled(bool)
}

// Config holds the entire application configuration. Each section is owned by the package
// that consumes it; this type only stitches them together for viper.
type Config struct {
	LoggerCfg     LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	BrowserCfg    browser.Config    `mapstructure:"browser" yaml:"browser"`
	AutomationCfg automation.Config `mapstructure:"automation" yaml:"automation"`
	BreaksCfg     breaks.Config     `mapstructure:"breaks" yaml:"breaks"`
	HumanoidCfg   humanoid.Config   `mapstructure:"humanoid" yaml:"humanoid"`
	ScreenCfg     screen.Config     `mapstructure:"screen" yaml:"screen"`
	StoreCfg      store.Config      `mapstructure:"store" yaml:"store"`
	ControlCfg    control.Config    `mapstructure:"control" yaml:"control"`
	// SettingsCfg only seeds the store on first run. Once settings have been saved the
	// stored copy wins.
	SettingsCfg settings.Settings `mapstructure:"settings" yaml:"settings"`
}

func (c *Config) Logger() LoggerConfig          { return c.LoggerCfg }
func (c *Config) Browser() browser.Config       { return c.BrowserCfg }
func (c *Config) Automation() automation.Config { return c.AutomationCfg }
func (c *Config) Breaks() breaks.Config         { return c.BreaksCfg }
func (c *Config) Humanoid() humanoid.Config     { return c.HumanoidCfg }
func (c *Config) Screen() screen.Config         { return c.ScreenCfg }
func (c *Config) Store() store.Config           { return c.StoreCfg }
func (c *Config) Control() control.Config       { return c.ControlCfg }
func (c *Config) Settings() settings.Settings   { return c.SettingsCfg }

func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserStartURL(u string) { c.BrowserCfg.StartURL = u }
func (c *Config) SetStoreDriver(d string)     { c.StoreCfg.Driver = d }
func (c *Config) SetControlEnabled(b bool)    { c.ControlCfg.Enabled = b }

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

// Validate checks the logger settings.
func (l LoggerConfig) Validate() error {
	switch l.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be \"console\" or \"json\", got %q", l.Format)
	}
	if l.LogFile != "" && l.MaxSize <= 0 {
		return fmt.Errorf("logger.max_size must be a positive integer when log_file is set")
	}
	return nil
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

// SetDefaults initializes default values for every configuration section. The component
// defaults come from each package's DefaultConfig so there is a single source for them.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "raidpilot")
	v.SetDefault("logger.log_file", "~/.raidpilot/raidpilot.log")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	b := browser.DefaultConfig()
	v.SetDefault("browser.headless", b.Headless)
	v.SetDefault("browser.start_url", b.StartURL)
	v.SetDefault("browser.user_data_dir", b.UserDataDir)
	v.SetDefault("browser.user_agent", b.UserAgent)
	v.SetDefault("browser.args", b.Args)
	v.SetDefault("browser.window_width", b.WindowWidth)
	v.SetDefault("browser.window_height", b.WindowHeight)
	v.SetDefault("browser.query_timeout", b.QueryTimeout)
	v.SetDefault("browser.persist_cookies", b.PersistCookies)

	// -- Automation --
	a := automation.DefaultConfig()
	v.SetDefault("automation.tick_interval", a.TickInterval)
	v.SetDefault("automation.min_spacing", a.MinSpacing)
	v.SetDefault("automation.cooldown_min", a.CooldownMin)
	v.SetDefault("automation.cooldown_max", a.CooldownMax)
	v.SetDefault("automation.thinking_pauses", a.ThinkingPauses)

	setBreakDefaults(v)
	setHumanoidDefaults(v)

	// -- Screen --
	s := screen.DefaultConfig()
	v.SetDefault("screen.start_selector", s.StartSelector)
	v.SetDefault("screen.toggle_selector", s.ToggleSelector)
	v.SetDefault("screen.battle_url_pattern", s.BattleURLPattern)
	v.SetDefault("screen.dialog_selectors", s.DialogSelectors)
	v.SetDefault("screen.dialog_markers", s.DialogMarkers)

	// -- Store --
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", "~/.raidpilot/state")
	v.SetDefault("store.dsn", "")

	// -- Control --
	v.SetDefault("control.enabled", false)
	v.SetDefault("control.listen_addr", "127.0.0.1:8765")

	// -- First-run settings --
	v.SetDefault("settings.auto_raid", false)
	v.SetDefault("settings.auto_combat", false)
	v.SetDefault("settings.breaks", false)
	v.SetDefault("settings.randomize_breaks", false)
}

func setBreakDefaults(v *viper.Viper) {
	d := breaks.DefaultConfig()
	v.SetDefault("breaks.enabled", d.Enabled)
	v.SetDefault("breaks.randomize", d.Randomize)
	v.SetDefault("breaks.cooldown_floor", d.CooldownFloor)
	v.SetDefault("breaks.min_between", d.MinBetween)
	v.SetDefault("breaks.max_between", d.MaxBetween)
	v.SetDefault("breaks.base_chance", d.BaseChance)
	v.SetDefault("breaks.short_chance", d.ShortChance)
	v.SetDefault("breaks.medium_chance", d.MediumChance)
	v.SetDefault("breaks.short_min", d.ShortMin)
	v.SetDefault("breaks.short_max", d.ShortMax)
	v.SetDefault("breaks.medium_min", d.MediumMin)
	v.SetDefault("breaks.medium_max", d.MediumMax)
	v.SetDefault("breaks.long_min", d.LongMin)
	v.SetDefault("breaks.long_max", d.LongMax)
	v.SetDefault("breaks.jitter_fraction", d.JitterFraction)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The DSN usually carries a password, so it gets a stable env name of its own.
	_ = v.BindEnv("store.dsn", EnvPrefix+"_STORE_DSN", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.StoreCfg.Driver == "postgres" && cfg.StoreCfg.DSN == "" {
		cfg.StoreCfg.DSN = os.Getenv(EnvPrefix + "_STORE_DSN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section, prefixing errors with the section name.
func (c *Config) Validate() error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"logger", c.LoggerCfg.Validate},
		{"browser", c.BrowserCfg.Validate},
		{"automation", c.AutomationCfg.Validate},
		{"breaks", c.BreaksCfg.Validate},
		{"humanoid", c.HumanoidCfg.Validate},
		{"screen", c.ScreenCfg.Validate},
		{"store", c.StoreCfg.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("%s configuration invalid: %w", ch.section, err)
		}
	}
	if c.ControlCfg.Enabled && c.ControlCfg.ListenAddr == "" {
		return fmt.Errorf("control.listen_addr is required when the control server is enabled")
	}
	return nil
}
