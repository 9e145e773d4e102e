// internal/browser/watch.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// mutationBinding is the page-side function the observer calls.
const mutationBinding = "__raidpilotMutation"

// mutationObserverJS reports DOM changes through the binding, at most once per 250 ms.
const mutationObserverJS = `(function() {
	if (window.__raidpilotObserver) return;
	let pending = false;
	const notify = () => {
		if (pending) return;
		pending = true;
		setTimeout(() => {
			pending = false;
			try { window.` + mutationBinding + `(''); } catch (e) {}
		}, 250);
	};
	const start = () => {
		window.__raidpilotObserver = new MutationObserver(notify);
		window.__raidpilotObserver.observe(document.documentElement, {
			childList: true, subtree: true, attributes: true,
			attributeFilter: ['class', 'style']
		});
	};
	if (document.documentElement) start();
	else document.addEventListener('DOMContentLoaded', start);
})()`

// WatchMutations calls onChange whenever the page's DOM changes, on the current document
// and on every document loaded after it. onChange runs on the CDP event goroutine and must
// not block.
func (s *Session) WatchMutations(ctx context.Context, onChange func()) error {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		if b, ok := ev.(*runtime.EventBindingCalled); ok && b.Name == mutationBinding {
			onChange()
		}
	})

	err := s.run(ctx, s.cfg.QueryTimeout,
		runtime.AddBinding(mutationBinding),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(mutationObserverJS).Do(ctx)
			return err
		}),
		chromedp.Evaluate(mutationObserverJS, nil),
	)
	if err != nil {
		return fmt.Errorf("failed to install mutation observer: %w", err)
	}
	s.logger.Debug("Mutation observer installed")
	return nil
}
