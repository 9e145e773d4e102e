// internal/screen/config.go
package screen

import (
	"fmt"
	"regexp"
)

// Config names the page anchors. Only the detection contract is fixed; the selectors
// themselves depend on the game client and are expected to be overridden.
type Config struct {
	StartSelector    string `mapstructure:"start_selector" yaml:"start_selector"`
	ToggleSelector   string `mapstructure:"toggle_selector" yaml:"toggle_selector"`
	BattleURLPattern string `mapstructure:"battle_url_pattern" yaml:"battle_url_pattern"`

	// DialogSelectors are the containers scanned for blocking-dialog markers.
	DialogSelectors []string `mapstructure:"dialog_selectors" yaml:"dialog_selectors"`
	// DialogMarkers maps a category to the phrases that identify it. Matching is
	// case-insensitive substring matching.
	DialogMarkers map[string][]string `mapstructure:"dialog_markers" yaml:"dialog_markers"`
}

// DefaultConfig returns the selectors for the stock game client.
func DefaultConfig() Config {
	return Config{
		StartSelector:    ".btn-usual-ok.se-quest-start",
		ToggleSelector:   ".btn-auto",
		BattleURLPattern: `#raid(_multi)?/\d+`,
		DialogSelectors:  []string{".pop-usual", ".prt-popup-body", "[role=dialog]"},
		DialogMarkers: map[string][]string{
			string(CapacityFull):         {"this raid battle is full", "battle is full"},
			string(ResourceExhausted):    {"not enough ap", "not enough ep", "you don't have enough"},
			string(VerificationRequired): {"verification", "verify you are human", "captcha"},
		},
	}
}

// Validate checks the selectors are present and the URL pattern compiles.
func (c Config) Validate() error {
	if c.StartSelector == "" || c.ToggleSelector == "" {
		return fmt.Errorf("start_selector and toggle_selector are required")
	}
	if c.BattleURLPattern != "" {
		if _, err := regexp.Compile(c.BattleURLPattern); err != nil {
			return fmt.Errorf("battle_url_pattern: %w", err)
		}
	}
	for cat := range c.DialogMarkers {
		switch DialogCategory(cat) {
		case CapacityFull, ResourceExhausted, VerificationRequired:
		default:
			return fmt.Errorf("unknown dialog marker category %q", cat)
		}
	}
	return nil
}
