// internal/browser/session_test.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/raidpilot/api/schemas"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

const fixturePage = `<!doctype html>
<html><body style="margin:0">
<div class="btn-usual-ok se-quest-start" style="position:absolute;left:40px;top:60px;width:120px;height:40px">OK</div>
<div id="clicks">0</div>
<script>
document.querySelector('.se-quest-start').addEventListener('click', () => {
	const c = document.getElementById('clicks');
	c.textContent = String(Number(c.textContent) + 1);
});
setTimeout(() => document.body.appendChild(document.createElement('span')), 300);
</script>
</body></html>`

// requireChrome skips the test when no Chrome binary is available.
func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser integration test in short mode.")
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("Chrome not found in PATH, skipping integration test.")
}

func TestSessionIntegration(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "visited", Value: "yes", Path: "/", Expires: time.Now().Add(time.Hour)})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fixturePage)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Headless = true
	cfg.UserDataDir = t.TempDir()
	cfg.Args = []string{"no-sandbox"}
	s, err := Launch(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	var mutations atomic.Int32
	require.NoError(t, s.WatchMutations(ctx, func() { mutations.Add(1) }))
	require.NoError(t, s.Navigate(ctx, srv.URL))

	url, err := s.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/", url)

	vp, err := s.Viewport(ctx)
	require.NoError(t, err)
	assert.Positive(t, vp.Width)

	el, err := s.Query(ctx, ".btn-usual-ok.se-quest-start")
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, schemas.Rect{X: 40, Y: 60, Width: 120, Height: 40}, el.Rect)
	assert.True(t, el.HasClass("se-quest-start"))

	missing, err := s.Query(ctx, ".does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)

	for _, ev := range []schemas.MouseEventData{
		{Type: schemas.MouseMove, X: 100, Y: 80},
		{Type: schemas.MousePress, X: 100, Y: 80, Button: schemas.ButtonLeft, Buttons: 1, ClickCount: 1},
		{Type: schemas.MouseRelease, X: 100, Y: 80, Button: schemas.ButtonLeft, ClickCount: 1},
		{Type: schemas.MouseClick, X: 100, Y: 80},
	} {
		require.NoError(t, s.DispatchMouseEvent(ctx, ev))
	}
	counter, err := s.Query(ctx, "#clicks")
	require.NoError(t, err)
	assert.Equal(t, "1", counter.Text, "press and release produce exactly one click")

	assert.Eventually(t, func() bool { return mutations.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	kv := store.NewMemory()
	require.NoError(t, s.SaveCookies(ctx, kv))
	require.NoError(t, s.RestoreCookies(ctx, kv))
	_, err = kv.Get(ctx, store.KeyCookies)
	assert.NoError(t, err)
}
