// internal/screen/screen.go
package screen

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/raidpilot/api/schemas"
)

// Screen is the classified state of the game page.
type Screen int

const (
	// Unknown is only ever the initial value, before the first classification.
	Unknown Screen = iota
	RaidStart
	Battle
	// Break is never returned by the classifier; the controller sets it while resting.
	Break
	Other
)

var screenNames = map[Screen]string{
	Unknown:   "unknown",
	RaidStart: "raid_start",
	Battle:    "battle",
	Break:     "break",
	Other:     "other",
}

func (s Screen) String() string {
	if n, ok := screenNames[s]; ok {
		return n
	}
	return fmt.Sprintf("screen(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler so persisted state stays readable.
func (s Screen) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Screen) UnmarshalText(b []byte) error {
	for k, v := range screenNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown screen %q", string(b))
}

// Page is the read side of the browser surface.
type Page interface {
	// Query returns the first element matching selector, or nil when there is none.
	Query(ctx context.Context, selector string) (*schemas.Element, error)
	Viewport(ctx context.Context) (schemas.Viewport, error)
	URL(ctx context.Context) (string, error)
}
