// internal/browser/config.go
package browser

import (
	"fmt"
	"time"
)

// Config controls the browser the agent drives.
type Config struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	StartURL     string   `mapstructure:"start_url" yaml:"start_url"`
	UserDataDir  string   `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	UserAgent    string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args         []string `mapstructure:"args" yaml:"args"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`

	// QueryTimeout bounds each DOM read and input dispatch.
	QueryTimeout time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	// PersistCookies saves the session's cookies on shutdown and restores them on launch.
	PersistCookies bool `mapstructure:"persist_cookies" yaml:"persist_cookies"`
}

// DefaultConfig returns a visible browser with a persistent profile. With no StartURL the
// operator navigates to the game themselves.
func DefaultConfig() Config {
	return Config{
		Headless:       false,
		UserDataDir:    "~/.raidpilot/profile",
		WindowWidth:    1280,
		WindowHeight:   900,
		QueryTimeout:   5 * time.Second,
		PersistCookies: true,
	}
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return fmt.Errorf("window size %dx%d is invalid", c.WindowWidth, c.WindowHeight)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}
	return nil
}
