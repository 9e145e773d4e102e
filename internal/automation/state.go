// internal/automation/state.go
package automation

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/raidpilot/internal/humanoid"
	"github.com/xkilldash9x/raidpilot/internal/screen"
)

// Mode is the controller's lifecycle state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRunning
	ModePausedBreak
	ModePausedPopup
)

var modeNames = map[Mode]string{
	ModeIdle:        "idle",
	ModeRunning:     "running",
	ModePausedBreak: "paused_break",
	ModePausedPopup: "paused_popup",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	for k, v := range modeNames {
		if v == string(b) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", string(b))
}

// RunState is the controller's durable state.
type RunState struct {
	Active              bool          `json:"active"`
	Mode                Mode          `json:"mode"`
	CurrentScreen       screen.Screen `json:"currentScreen"`
	TotalRaidsCompleted uint64        `json:"totalRaidsCompleted"`
	RaidInProgress      bool          `json:"raidInProgress"`
	RaidStartedAt       time.Time     `json:"raidStartedAt"`
	LastRaidDuration    time.Duration `json:"lastRaidDuration"`

	// AutoCombatAppliedThisRaid latches after the first attempt in a raid.
	AutoCombatAppliedThisRaid bool `json:"autoCombatAppliedThisRaid"`
	// AutoCombatSeenThisRaid is set once the toggle has been visible during the raid.
	AutoCombatSeenThisRaid bool `json:"autoCombatSeenThisRaid"`
	// BattleURLSeen is set once the raid's page matched the battle URL pattern.
	BattleURLSeen bool `json:"battleURLSeen"`

	LastPointerPosition   humanoid.Vector2D `json:"lastPointerPosition"`
	LastActionDescription string            `json:"lastActionDescription"`
	TotalClicks           uint64            `json:"totalClicks"`
	PausedReason          string            `json:"pausedReason,omitempty"`
}
