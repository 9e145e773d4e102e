// internal/automation/config.go
package automation

import (
	"fmt"
	"time"
)

// Config holds the loop timing.
type Config struct {
	// TickInterval is how often the loop looks at the page while running.
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`

	// MinSpacing is the minimum time between two passes, whatever triggered them.
	MinSpacing time.Duration `mapstructure:"min_spacing" yaml:"min_spacing"`

	CooldownMin time.Duration `mapstructure:"cooldown_min" yaml:"cooldown_min"`
	CooldownMax time.Duration `mapstructure:"cooldown_max" yaml:"cooldown_max"`

	// ThinkingPauses enables the occasional hesitation before an action.
	ThinkingPauses bool `mapstructure:"thinking_pauses" yaml:"thinking_pauses"`
}

// DefaultConfig returns the stock loop timing.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		MinSpacing:     500 * time.Millisecond,
		CooldownMin:    2 * time.Second,
		CooldownMax:    5 * time.Second,
		ThinkingPauses: true,
	}
}

// Validate checks the timings are usable.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if c.MinSpacing < 0 {
		return fmt.Errorf("min_spacing must not be negative")
	}
	if c.CooldownMin < 0 || c.CooldownMax < c.CooldownMin {
		return fmt.Errorf("cooldown range [%v, %v] is invalid", c.CooldownMin, c.CooldownMax)
	}
	return nil
}
