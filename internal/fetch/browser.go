package fetch

import (
	"context"
	"fmt"
	"time"

	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

// BrowserOptions configures the headless browser
type BrowserOptions struct {
	ChromePath       string
	Headless         bool
	UserAgent        string
	PageTimeout      time.Duration
	SettleDelay      time.Duration
	ClickSettleDelay time.Duration
	MinInterval      time.Duration
	// VisibleTimeout bounds the wait for a present control to become clickable
	VisibleTimeout time.Duration
}

// Browser is an Opener backed by one Chrome process; every Open creates a new tab
type Browser struct {
	opts      BrowserOptions
	allocCtx  context.Context
	cancelCtx context.CancelFunc
	limiter   *rate.Limiter
	log       *logger.Logger
}

// NewBrowser creates the browser allocator; Chrome starts with the first tab.
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 60 * time.Second
	}
	if opts.VisibleTimeout <= 0 {
		opts.VisibleTimeout = 2 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		// The park list hides its paging buttons below the xs breakpoint
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &Browser{
		opts:      opts,
		allocCtx:  allocCtx,
		cancelCtx: cancel,
		limiter:   newLimiter(opts.MinInterval),
		log:       logger.ForFetcher("chromedp"),
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Open starts a new tab
func (b *Browser) Open(ctx context.Context) (Fetcher, error) {
	tabCtx, cancel := chromedp.NewContext(b.allocCtx)

	// An empty run allocates the tab (and the browser on first use)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, errors.NewNetwork("chrome", "failed to start browser tab", err)
	}

	b.log.Debug().Msg("Opened browser tab")
	return &tab{browser: b, ctx: tabCtx, cancel: cancel}, nil
}

// Close shuts the browser down
func (b *Browser) Close() error {
	if b.cancelCtx != nil {
		b.cancelCtx()
	}
	return nil
}

type tab struct {
	browser *Browser
	ctx     context.Context
	cancel  context.CancelFunc
}

// Fetch performs the action, waits for the settle delay and returns the rendered HTML.
// The interaction and the page read run separately; a read failing after a click
// wraps ErrActivated.
func (t *tab) Fetch(ctx context.Context, a Action) (string, error) {
	opts := t.browser.opts

	if a.Kind != KindCurrent {
		if err := t.browser.limiter.Wait(ctx); err != nil {
			return "", errors.NewNetwork(a.Target(), "pacing wait cancelled", err)
		}
	}

	runCtx, cancel := context.WithTimeout(t.ctx, opts.PageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	settle := opts.SettleDelay

	switch a.Kind {
	case KindNavigate:
		if err := chromedp.Run(runCtx, chromedp.Navigate(a.URL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
			return "", errors.NewNetwork(a.Target(), "navigation failed", err)
		}
	case KindClick:
		if err := t.clickable(runCtx, a.Selector); err != nil {
			return "", err
		}
		if err := chromedp.Run(runCtx, chromedp.Click(a.Selector, chromedp.ByQuery)); err != nil {
			return "", errors.NewNetwork(a.Target(), "click failed", err)
		}
		settle = opts.ClickSettleDelay
	case KindCurrent:
	default:
		return "", errors.NewValidation(a.String(), "unsupported action")
	}

	html, err := t.read(runCtx, settle)
	if err != nil {
		if a.Kind == KindClick {
			err = fmt.Errorf("%w: %w", ErrActivated, err)
		}
		return "", errors.NewNetwork(a.Target(), "failed to read page", err)
	}

	t.browser.log.Debug().Str("action", a.String()).Dur("elapsed", time.Since(start)).Int("html_size", len(html)).Msg("Fetched page")
	return html, nil
}

// clickable returns not_found unless selector matches a visible element
func (t *tab) clickable(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return errors.NewNetwork(selector, "failed to query control", err)
	}
	if len(nodes) == 0 {
		return errors.NewNotFound(selector, "control not present")
	}

	visCtx, cancel := context.WithTimeout(ctx, t.browser.opts.VisibleTimeout)
	defer cancel()
	if err := chromedp.Run(visCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return errors.NewNetwork(selector, "waiting for control", err)
		}
		return errors.NewNotFound(selector, "control not visible")
	}
	return nil
}

// read waits for the page to settle and returns its HTML
func (t *tab) read(ctx context.Context, settle time.Duration) (string, error) {
	var html string
	var actions []chromedp.Action
	if settle > 0 {
		actions = append(actions, chromedp.Sleep(settle))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	err := chromedp.Run(ctx, actions...)
	return html, err
}

// Location returns the URL of the tab's current page
func (t *tab) Location(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(t.ctx, t.browser.opts.PageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var url string
	if err := chromedp.Run(runCtx, chromedp.Location(&url)); err != nil {
		return "", errors.NewNetwork("location", "failed to read page location", err)
	}
	return url, nil
}

// Close closes the tab
func (t *tab) Close() error {
	t.cancel()
	return nil
}
