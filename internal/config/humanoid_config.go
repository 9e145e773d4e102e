// File: internal/config/humanoid_config.go
// Defaults for the input synthesizer. The profile controls how cursor paths bend, how
// long a button is held and how often the operator hesitates before acting. Every key can
// be overridden from raidpilot.yaml under the "humanoid" section.
package config

import (
	"github.com/spf13/viper"

	"github.com/xkilldash9x/raidpilot/internal/humanoid"
)

func setHumanoidDefaults(v *viper.Viper) {
	h := humanoid.DefaultConfig()

	// -- Targeting --
	v.SetDefault("humanoid.safe_area_fraction", h.SafeAreaFraction)
	v.SetDefault("humanoid.target_jitter", h.TargetJitter)

	// -- Trajectory --
	v.SetDefault("humanoid.min_steps", h.MinSteps)
	v.SetDefault("humanoid.max_steps", h.MaxSteps)
	v.SetDefault("humanoid.step_delay_min", h.StepDelayMin)
	v.SetDefault("humanoid.step_delay_max", h.StepDelayMax)
	v.SetDefault("humanoid.correction_chance", h.CorrectionChance)
	v.SetDefault("humanoid.path_bow", h.PathBow)

	// -- Click --
	v.SetDefault("humanoid.micro_adjust_chance", h.MicroAdjustChance)
	v.SetDefault("humanoid.micro_adjust_radius", h.MicroAdjustRadius)
	v.SetDefault("humanoid.micro_pause_min", h.MicroPauseMin)
	v.SetDefault("humanoid.micro_pause_max", h.MicroPauseMax)
	v.SetDefault("humanoid.hold_min", h.HoldMin)
	v.SetDefault("humanoid.hold_max", h.HoldMax)
	v.SetDefault("humanoid.click_gap_min", h.ClickGapMin)
	v.SetDefault("humanoid.click_gap_max", h.ClickGapMax)

	// -- Hesitation --
	v.SetDefault("humanoid.think_chance", h.ThinkChance)
	v.SetDefault("humanoid.think_min", h.ThinkMin)
	v.SetDefault("humanoid.think_max", h.ThinkMax)
}
