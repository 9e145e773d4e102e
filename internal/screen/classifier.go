// internal/screen/classifier.go
package screen

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/api/schemas"
)

// Observation is everything one classification pass saw. The controller uses the
// anchors directly so it does not have to query the page twice for the same state.
type Observation struct {
	Screen   Screen
	Start    *schemas.Element
	Toggle   *schemas.Element
	Viewport schemas.Viewport
	URL      string

	// BattleURL is true when URL matches the in-progress battle pattern.
	BattleURL bool

	// Incomplete is set when the viewport or URL could not be read. Screen, the anchors
	// and BattleURL are then unreliable and the pass should not drive any transition.
	Incomplete bool
}

// Classifier maps the current page to a Screen. It holds no mutable state, so it can be
// called at any rate from any goroutine.
type Classifier struct {
	cfg      Config
	page     Page
	battleRE *regexp.Regexp
	logger   *zap.Logger
}

// NewClassifier compiles the battle URL pattern and returns a Classifier over page.
func NewClassifier(cfg Config, page Page, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{cfg: cfg, page: page, logger: logger.Named("classifier")}
	if cfg.BattleURLPattern != "" {
		re, err := regexp.Compile(cfg.BattleURLPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid battle url pattern: %w", err)
		}
		c.battleRE = re
	}
	return c, nil
}

// Classify returns the current screen.
func (c *Classifier) Classify(ctx context.Context) Screen {
	return c.Observe(ctx).Screen
}

// Observe inspects the anchors in priority order. A failed anchor query is treated as the
// anchor being absent; a failed viewport or URL read marks the observation Incomplete.
func (c *Classifier) Observe(ctx context.Context) Observation {
	var obs Observation

	vp, err := c.page.Viewport(ctx)
	if err != nil {
		c.logger.Debug("Viewport unavailable", zap.Error(err))
		obs.Incomplete = true
	}
	obs.Viewport = vp

	if url, err := c.page.URL(ctx); err == nil {
		obs.URL = url
		obs.BattleURL = c.IsBattleURL(url)
	} else {
		c.logger.Debug("URL unavailable", zap.Error(err))
		obs.Incomplete = true
	}

	obs.Start = c.visible(ctx, c.cfg.StartSelector, vp)
	if obs.Start != nil {
		obs.Screen = RaidStart
		return obs
	}

	obs.Toggle = c.visible(ctx, c.cfg.ToggleSelector, vp)
	switch {
	case obs.Toggle != nil, obs.BattleURL:
		obs.Screen = Battle
	default:
		obs.Screen = Other
	}
	return obs
}

// IsBattleURL reports whether url matches the in-progress battle pattern.
func (c *Classifier) IsBattleURL(url string) bool {
	return c.battleRE != nil && c.battleRE.MatchString(url)
}

func (c *Classifier) visible(ctx context.Context, selector string, vp schemas.Viewport) *schemas.Element {
	el, err := c.page.Query(ctx, selector)
	if err != nil {
		c.logger.Debug("Query failed", zap.String("selector", selector), zap.Error(err))
		return nil
	}
	if !Visible(el, vp) {
		return nil
	}
	return el
}
