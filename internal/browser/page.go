// internal/browser/page.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/screen"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ screen.Page = (*Session)(nil)

// querySnapshotJS reads everything the classifier needs about one element in a single round
// trip. The selector is passed in as a JSON string literal.
const querySnapshotJS = `(function(sel) {
	const node = document.querySelector(sel);
	if (!node) return null;
	const r = node.getBoundingClientRect();
	const st = window.getComputedStyle(node);
	const attrs = {};
	for (const a of node.attributes) attrs[a.name] = a.value;
	return {
		selector: sel,
		rect: {x: r.left, y: r.top, width: r.width, height: r.height},
		style: {display: st.display, visibility: st.visibility, backgroundColor: st.backgroundColor},
		text: (node.innerText || node.textContent || '').slice(0, 2000),
		classes: Array.from(node.classList),
		attrs: attrs
	};
})(%s)`

const viewportJS = `({width: window.innerWidth, height: window.innerHeight})`

// Query snapshots the first element matching selector. A missing element is (nil, nil).
func (s *Session) Query(ctx context.Context, selector string) (*schemas.Element, error) {
	lit, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := s.run(ctx, s.cfg.QueryTimeout, chromedp.Evaluate(fmt.Sprintf(querySnapshotJS, lit), &raw)); err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	return decodeElement(raw)
}

func decodeElement(raw []byte) (*schemas.Element, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var el schemas.Element
	if err := json.Unmarshal(raw, &el); err != nil {
		return nil, fmt.Errorf("failed to decode element snapshot: %w", err)
	}
	return &el, nil
}

// Viewport returns the inner window size.
func (s *Session) Viewport(ctx context.Context) (schemas.Viewport, error) {
	var vp schemas.Viewport
	if err := s.run(ctx, s.cfg.QueryTimeout, chromedp.Evaluate(viewportJS, &vp)); err != nil {
		return schemas.Viewport{}, fmt.Errorf("failed to read viewport: %w", err)
	}
	return vp, nil
}

// URL returns the tab's current location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, s.cfg.QueryTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}
