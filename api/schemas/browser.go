package schemas

// -- Page Inspection Schemas --

// Rect is an element's bounding box in CSS pixels, relative to the viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns Width*Height, or zero for degenerate boxes.
func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Viewport is the visible page area in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementStyle carries the computed style properties the classifier cares about.
type ElementStyle struct {
	Display         string `json:"display"`
	Visibility      string `json:"visibility"`
	BackgroundColor string `json:"backgroundColor"`
}

// Element is a snapshot of one DOM element, taken at query time.
type Element struct {
	Selector string            `json:"selector"`
	Rect     Rect              `json:"rect"`
	Style    ElementStyle      `json:"style"`
	Text     string            `json:"text"`
	Classes  []string          `json:"classes"`
	Attrs    map[string]string `json:"attrs"`
}

// HasClass reports whether the element carries the given class token.
func (e *Element) HasClass(name string) bool {
	if e == nil {
		return false
	}
	for _, c := range e.Classes {
		if c == name {
			return true
		}
	}
	return false
}

// -- Humanoid Low-Level Interaction Schemas --

// MouseEventType defines the type of a mouse event.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
	// MouseClick marks the logical click that follows a press/release pair. Backends that
	// synthesize click events from press/release themselves may ignore it.
	MouseClick MouseEventType = "click"
)

// MouseButton defines the mouse button being pressed.
type MouseButton string

const (
	ButtonNone MouseButton = "none"
	ButtonLeft MouseButton = "left"
)

// MouseEventData encapsulates all data for a mouse event.
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button"`
	Buttons    int64          `json:"buttons"`
	ClickCount int            `json:"clickCount"`
}
