// internal/screen/dialog.go
package screen

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DialogCategory is the kind of blocking condition a dialog reports.
type DialogCategory string

const (
	CapacityFull         DialogCategory = "capacity_full"
	ResourceExhausted    DialogCategory = "resource_exhausted"
	VerificationRequired DialogCategory = "verification_required"
)

// Dialog describes a detected blocking dialog.
type Dialog struct {
	Category DialogCategory
	Marker   string
	Selector string
}

type marker struct {
	category DialogCategory
	phrase   string
}

// DialogDetector looks for blocking dialogs by marker text.
type DialogDetector struct {
	page      Page
	selectors []string
	markers   []marker
	logger    *zap.Logger
}

// NewDialogDetector builds a detector from cfg.
func NewDialogDetector(cfg Config, page Page, logger *zap.Logger) *DialogDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &DialogDetector{
		page:      page,
		selectors: append([]string(nil), cfg.DialogSelectors...),
		logger:    logger.Named("dialogs"),
	}

	// Map iteration order is random; sort so the same text always yields the same category.
	cats := make([]string, 0, len(cfg.DialogMarkers))
	for c := range cfg.DialogMarkers {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		for _, p := range cfg.DialogMarkers[c] {
			if p = strings.TrimSpace(p); p != "" {
				d.markers = append(d.markers, marker{category: DialogCategory(c), phrase: strings.ToLower(p)})
			}
		}
	}
	return d
}

// Detect returns the first visible dialog container whose text carries a known marker.
func (d *DialogDetector) Detect(ctx context.Context) (Dialog, bool) {
	if len(d.markers) == 0 {
		return Dialog{}, false
	}
	vp, err := d.page.Viewport(ctx)
	if err != nil {
		return Dialog{}, false
	}
	for _, sel := range d.selectors {
		el, err := d.page.Query(ctx, sel)
		if err != nil {
			d.logger.Debug("Query failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if !Visible(el, vp) {
			continue
		}
		text := strings.ToLower(el.Text)
		for _, m := range d.markers {
			if strings.Contains(text, m.phrase) {
				return Dialog{Category: m.category, Marker: m.phrase, Selector: sel}, true
			}
		}
	}
	return Dialog{}, false
}
