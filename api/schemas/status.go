package schemas

import "time"

// StatusReport is the message observers receive after every state change. Field names
// match what the status command and any attached UI read.
type StatusReport struct {
	Active              bool      `json:"active"`
	Mode                string    `json:"mode"`
	CurrentScreen       string    `json:"currentScreen"`
	LastAction          string    `json:"lastAction"`
	TotalClicks         uint64    `json:"totalClicks"`
	TotalRaids          uint64    `json:"totalRaids"`
	IsOnBreak           bool      `json:"isOnBreak"`
	TimeLeftMs          int64     `json:"timeLeftMs"`
	RaidsSinceLastBreak uint32    `json:"raidsSinceLastBreak"`
	TotalBreaks         uint32    `json:"totalBreaks"`
	PausedReason        string    `json:"pausedReason,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}
