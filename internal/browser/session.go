// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Session is one Chrome tab driven over CDP. It is the production page surface for the
// classifier and the input executor for the synthesizer.
type Session struct {
	cfg    Config
	logger *zap.Logger

	// ctx is the chromedp tab context; every action runs under it.
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// Launch starts Chrome with cfg and opens a tab. The browser lives until Close is called
// or parent is cancelled.
func Launch(parent context.Context, cfg Config, logger *zap.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid browser config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("browser")

	opts, err := AllocatorOptions(cfg)
	if err != nil {
		return nil, err
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	s := &Session{
		cfg:         cfg,
		logger:      log,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	// The first Run starts the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	log.Info("Browser started", zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Close shuts the tab and the browser process down.
func (s *Session) Close() {
	if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Error closing browser tab", zap.Error(err))
	}
	s.cancelTab()
	s.cancelAlloc()
	s.logger.Info("Browser closed")
}

// Done is closed when the browser goes away, whether through Close or because the
// operator closed the window.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Navigate opens url in the tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, 60*time.Second, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// run executes actions on the tab, bounded by both ctx and the tab's own lifetime and
// by timeout when it is positive.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
