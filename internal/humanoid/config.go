// internal/humanoid/config.go
package humanoid

import (
	"fmt"
	"time"
)

// Config tunes the shape of synthesized input. Probabilities are in [0, 1].
type Config struct {
	// SafeAreaFraction is the share of the element's width/height that targets may land in.
	SafeAreaFraction float64 `mapstructure:"safe_area_fraction" yaml:"safe_area_fraction"`
	TargetJitter     float64 `mapstructure:"target_jitter" yaml:"target_jitter"`

	MinSteps         int           `mapstructure:"min_steps" yaml:"min_steps"`
	MaxSteps         int           `mapstructure:"max_steps" yaml:"max_steps"`
	StepDelayMin     time.Duration `mapstructure:"step_delay_min" yaml:"step_delay_min"`
	StepDelayMax     time.Duration `mapstructure:"step_delay_max" yaml:"step_delay_max"`
	CorrectionChance float64       `mapstructure:"correction_chance" yaml:"correction_chance"`

	// PathBow scales the sideways deviation of the path relative to its length.
	PathBow float64 `mapstructure:"path_bow" yaml:"path_bow"`

	MicroAdjustChance float64       `mapstructure:"micro_adjust_chance" yaml:"micro_adjust_chance"`
	MicroAdjustRadius float64       `mapstructure:"micro_adjust_radius" yaml:"micro_adjust_radius"`
	MicroPauseMin     time.Duration `mapstructure:"micro_pause_min" yaml:"micro_pause_min"`
	MicroPauseMax     time.Duration `mapstructure:"micro_pause_max" yaml:"micro_pause_max"`
	HoldMin           time.Duration `mapstructure:"hold_min" yaml:"hold_min"`
	HoldMax           time.Duration `mapstructure:"hold_max" yaml:"hold_max"`
	ClickGapMin       time.Duration `mapstructure:"click_gap_min" yaml:"click_gap_min"`
	ClickGapMax       time.Duration `mapstructure:"click_gap_max" yaml:"click_gap_max"`

	ThinkChance float64       `mapstructure:"think_chance" yaml:"think_chance"`
	ThinkMin    time.Duration `mapstructure:"think_min" yaml:"think_min"`
	ThinkMax    time.Duration `mapstructure:"think_max" yaml:"think_max"`
}

// DefaultConfig returns the stock input profile.
func DefaultConfig() Config {
	return Config{
		SafeAreaFraction:  0.9,
		TargetJitter:      2,
		MinSteps:          8,
		MaxSteps:          20,
		StepDelayMin:      10 * time.Millisecond,
		StepDelayMax:      30 * time.Millisecond,
		CorrectionChance:  0.3,
		PathBow:           0.1,
		MicroAdjustChance: 0.4,
		MicroAdjustRadius: 6,
		MicroPauseMin:     20 * time.Millisecond,
		MicroPauseMax:     70 * time.Millisecond,
		HoldMin:           30 * time.Millisecond,
		HoldMax:           80 * time.Millisecond,
		ClickGapMin:       5 * time.Millisecond,
		ClickGapMax:       20 * time.Millisecond,
		ThinkChance:       0.3,
		ThinkMin:          500 * time.Millisecond,
		ThinkMax:          3000 * time.Millisecond,
	}
}

// Validate rejects profiles that would produce empty paths or inverted ranges.
func (c Config) Validate() error {
	if c.SafeAreaFraction <= 0 || c.SafeAreaFraction > 1 {
		return fmt.Errorf("safe_area_fraction must be within (0, 1]")
	}
	if c.MinSteps < 1 || c.MaxSteps < c.MinSteps {
		return fmt.Errorf("step range [%d, %d] is invalid", c.MinSteps, c.MaxSteps)
	}
	for _, p := range []float64{c.CorrectionChance, c.MicroAdjustChance, c.ThinkChance} {
		if p < 0 || p > 1 {
			return fmt.Errorf("probabilities must be within [0, 1], got %v", p)
		}
	}
	for _, r := range [][2]time.Duration{
		{c.StepDelayMin, c.StepDelayMax},
		{c.MicroPauseMin, c.MicroPauseMax},
		{c.HoldMin, c.HoldMax},
		{c.ClickGapMin, c.ClickGapMax},
		{c.ThinkMin, c.ThinkMax},
	} {
		if r[0] < 0 || r[1] < r[0] {
			return fmt.Errorf("duration range [%v, %v] is invalid", r[0], r[1])
		}
	}
	return nil
}
