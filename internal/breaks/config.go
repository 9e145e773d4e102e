// internal/breaks/config.go
package breaks

import (
	"fmt"
	"time"
)

// Config holds the policy constants for the break schedule. The defaults reproduce the
// schedule the automation has always used; they are exposed so the config file can tune them.
type Config struct {
	Enabled   bool `mapstructure:"enabled" yaml:"enabled"`
	Randomize bool `mapstructure:"randomize" yaml:"randomize"`

	// CooldownFloor is the minimum time after a break ends before another may start.
	CooldownFloor time.Duration `mapstructure:"cooldown_floor" yaml:"cooldown_floor"`
	MinBetween    uint32        `mapstructure:"min_between" yaml:"min_between"`
	MaxBetween    uint32        `mapstructure:"max_between" yaml:"max_between"`
	BaseChance    float64       `mapstructure:"base_chance" yaml:"base_chance"`

	ShortChance  float64 `mapstructure:"short_chance" yaml:"short_chance"`
	MediumChance float64 `mapstructure:"medium_chance" yaml:"medium_chance"`

	ShortMin  time.Duration `mapstructure:"short_min" yaml:"short_min"`
	ShortMax  time.Duration `mapstructure:"short_max" yaml:"short_max"`
	MediumMin time.Duration `mapstructure:"medium_min" yaml:"medium_min"`
	MediumMax time.Duration `mapstructure:"medium_max" yaml:"medium_max"`
	LongMin   time.Duration `mapstructure:"long_min" yaml:"long_min"`
	LongMax   time.Duration `mapstructure:"long_max" yaml:"long_max"`

	// JitterFraction bounds the multiplier applied when Randomize is set (0.2 means ±20%).
	JitterFraction float64 `mapstructure:"jitter_fraction" yaml:"jitter_fraction"`
}

// DefaultConfig returns the canonical schedule.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		Randomize:      false,
		CooldownFloor:  60 * time.Second,
		MinBetween:     3,
		MaxBetween:     12,
		BaseChance:     0.18,
		ShortChance:    0.70,
		MediumChance:   0.25,
		ShortMin:       30 * time.Second,
		ShortMax:       120 * time.Second,
		MediumMin:      120 * time.Second,
		MediumMax:      300 * time.Second,
		LongMin:        600 * time.Second,
		LongMax:        1200 * time.Second,
		JitterFraction: 0.20,
	}
}

// Validate rejects schedules that could never break or would sample inverted ranges.
func (c Config) Validate() error {
	if c.MinBetween == 0 {
		return fmt.Errorf("min_between must be at least 1")
	}
	if c.MaxBetween < c.MinBetween {
		return fmt.Errorf("max_between (%d) must not be below min_between (%d)", c.MaxBetween, c.MinBetween)
	}
	if c.BaseChance < 0 || c.BaseChance > 1 {
		return fmt.Errorf("base_chance must be between 0.0 and 1.0")
	}
	if c.ShortChance < 0 || c.MediumChance < 0 || c.ShortChance+c.MediumChance > 1 {
		return fmt.Errorf("short_chance + medium_chance must be within [0, 1]")
	}
	for _, r := range []struct {
		name     string
		min, max time.Duration
	}{
		{"short", c.ShortMin, c.ShortMax},
		{"medium", c.MediumMin, c.MediumMax},
		{"long", c.LongMin, c.LongMax},
	} {
		if r.min <= 0 || r.max < r.min {
			return fmt.Errorf("%s break range [%v, %v] is invalid", r.name, r.min, r.max)
		}
	}
	if c.JitterFraction < 0 || c.JitterFraction >= 1 {
		return fmt.Errorf("jitter_fraction must be within [0, 1)")
	}
	return nil
}
