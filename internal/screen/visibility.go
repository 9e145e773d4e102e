// internal/screen/visibility.go
package screen

import "github.com/xkilldash9x/raidpilot/api/schemas"

// Visible reports whether el is present and actually rendered inside the viewport: not
// display:none, not visibility:hidden, non-zero area, and its top-left corner on screen.
func Visible(el *schemas.Element, vp schemas.Viewport) bool {
	if el == nil {
		return false
	}
	if el.Style.Display == "none" || el.Style.Visibility == "hidden" {
		return false
	}
	if el.Rect.Area() <= 0 {
		return false
	}
	return el.Rect.X >= 0 && el.Rect.Y >= 0 &&
		el.Rect.X < vp.Width && el.Rect.Y < vp.Height
}
