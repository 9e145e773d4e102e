// internal/browser/cookies.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/internal/store"
)

// SaveCookies stores the tab's cookies so the next launch starts logged in.
func (s *Session) SaveCookies(ctx context.Context, kv store.KV) error {
	var cookies []*network.Cookie
	err := s.run(ctx, s.cfg.QueryTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}
	if err := store.PutJSON(ctx, kv, store.KeyCookies, cookies); err != nil {
		return err
	}
	s.logger.Info("Saved session cookies", zap.Int("count", len(cookies)))
	return nil
}

// RestoreCookies loads cookies saved by SaveCookies. Having none saved is not an error.
func (s *Session) RestoreCookies(ctx context.Context, kv store.KV) error {
	var cookies []*network.Cookie
	if err := store.GetJSON(ctx, kv, store.KeyCookies, &cookies); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	params := cookieParams(cookies, time.Now())
	if len(params) == 0 {
		return nil
	}
	if err := s.run(ctx, s.cfg.QueryTimeout, network.SetCookies(params)); err != nil {
		return fmt.Errorf("failed to restore cookies: %w", err)
	}
	s.logger.Info("Restored session cookies", zap.Int("count", len(params)))
	return nil
}

// cookieParams converts stored cookies back into settable ones, dropping any that expired
// before now.
func cookieParams(cookies []*network.Cookie, now time.Time) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		p := &network.CookieParam{
			Name:         c.Name,
			Value:        c.Value,
			Domain:       c.Domain,
			Path:         c.Path,
			Secure:       c.Secure,
			HTTPOnly:     c.HTTPOnly,
			SameSite:     c.SameSite,
			Priority:     c.Priority,
			SourceScheme: c.SourceScheme,
			SourcePort:   c.SourcePort,
			PartitionKey: c.PartitionKey,
		}
		if !c.Session && c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			exp := time.Unix(int64(sec), int64(frac*1e9))
			if !exp.After(now) {
				continue
			}
			ts := cdp.TimeSinceEpoch(exp)
			p.Expires = &ts
		}
		out = append(out, p)
	}
	return out
}
