// internal/screen/toggle.go
package screen

import (
	"strings"

	"github.com/xkilldash9x/raidpilot/api/schemas"
)

// engagedColors are the background colours the client paints an engaged toggle with.
var engagedColors = []string{
	"rgb(0, 100, 0)",
	"rgb(46, 125, 50)",
	"rgb(76, 175, 80)",
	"rgb(56, 142, 60)",
	"rgb(27, 94, 32)",
}

// ToggleEngaged reports whether the auto-combat toggle already looks switched on.
func ToggleEngaged(el *schemas.Element) bool {
	if el == nil {
		return false
	}
	if el.HasClass("active") {
		return true
	}
	for _, c := range engagedColors {
		if strings.Contains(el.Style.BackgroundColor, c) {
			return true
		}
	}
	if strings.Contains(el.Text, "ON") || strings.Contains(el.Text, "On") || strings.Contains(el.Text, "Active") {
		return true
	}
	return el.Attrs["data-active"] == "true" || el.Attrs["data-state"] == "active"
}
