package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"sjsage522/parkscraper/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("Chrome is not available, skipping test")
	return ""
}

func TestBrowser(t *testing.T) {
	chromePath := findChrome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/page/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Path, "/page/%d", &n)
		next := ""
		if n < 2 {
			next = fmt.Sprintf(`<a class="next" href="/page/%d">next</a>`, n+1)
		} else {
			// Present but hidden, like the paging buttons below the xs breakpoint
			next = `<a class="next" href="/page/1" style="display:none">next</a>`
		}
		fmt.Fprintf(w, `<html><body><div id="content">page %d</div>%s</body></html>`, n, next)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	browser := NewBrowser(BrowserOptions{
		ChromePath:       chromePath,
		Headless:         true,
		PageTimeout:      30 * time.Second,
		SettleDelay:      50 * time.Millisecond,
		ClickSettleDelay: 100 * time.Millisecond,
		VisibleTimeout:   500 * time.Millisecond,
	})
	defer browser.Close()

	ctx := context.Background()
	tab, err := browser.Open(ctx)
	require.NoError(t, err)
	defer tab.Close()

	html, err := tab.Fetch(ctx, Navigate(server.URL+"/page/1"))
	require.NoError(t, err)
	assert.Contains(t, html, "page 1")

	html, err = tab.Fetch(ctx, Click("a.next"))
	require.NoError(t, err)
	assert.Contains(t, html, "page 2")

	loc, err := tab.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/page/2", loc)

	// The hidden control is reported as absent instead of timing out
	start := time.Now()
	_, err = tab.Fetch(ctx, Click("a.next"))
	assert.True(t, errors.IsNotFound(err))
	assert.Less(t, time.Since(start), 10*time.Second)

	_, err = tab.Fetch(ctx, Click("a.missing"))
	assert.True(t, errors.IsNotFound(err))

	html, err = tab.Fetch(ctx, Current())
	require.NoError(t, err)
	assert.Contains(t, html, "page 2")
}
