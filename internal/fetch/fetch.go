// Package fetch retrieves rendered HTML for navigations and page interactions.
package fetch

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"
)

// Kind is the type of an Action
type Kind int

const (
	// KindNavigate loads a URL
	KindNavigate Kind = iota
	// KindClick activates the first element matching a CSS selector
	KindClick
	// KindCurrent reads the current page again without changing it
	KindCurrent
)

// ErrActivated marks a failure that happened after an interaction took effect.
// Repeating the interaction would move past the page it loaded.
var ErrActivated = stderrors.New("control was activated")

// Action is either a URL to load or an interaction with the current page
type Action struct {
	Kind     Kind
	URL      string
	Selector string
}

// Navigate returns an action loading url
func Navigate(url string) Action {
	return Action{Kind: KindNavigate, URL: url}
}

// Click returns an action clicking the first element matching selector
func Click(selector string) Action {
	return Action{Kind: KindClick, Selector: selector}
}

// ClickID returns a click on the element with the given id.
// Attribute syntax keeps ids that are not valid CSS identifiers usable.
func ClickID(id string) Action {
	return Click(`[id="` + strings.ReplaceAll(id, `"`, `\"`) + `"]`)
}

// Current returns an action reading the page the fetcher is on
func Current() Action {
	return Action{Kind: KindCurrent}
}

// Target names what the action works on, for errors and logs
func (a Action) Target() string {
	switch a.Kind {
	case KindNavigate:
		return a.URL
	case KindClick:
		return a.Selector
	default:
		return "current page"
	}
}

// String implements fmt.Stringer
func (a Action) String() string {
	switch a.Kind {
	case KindNavigate:
		return "navigate " + a.URL
	case KindClick:
		return "click " + a.Selector
	default:
		return "read current page"
	}
}

// Fetcher performs an action and returns the HTML rendered once the page has settled.
// Clicking an absent control yields a not_found error; any other failure is a network error.
type Fetcher interface {
	Fetch(ctx context.Context, a Action) (string, error)

	// Location returns the URL of the current page
	Location(ctx context.Context) (string, error)

	Close() error
}

// Opener hands out independent fetchers, one per concurrent worker
type Opener interface {
	Open(ctx context.Context) (Fetcher, error)
	Close() error
}

// FetchWithRetry performs a, retrying once after delay.
// Errors that are not retryable are returned as is; a second failure is returned as a network error.
// A click that failed after activating its control is retried by reading the page, not by clicking again.
func FetchWithRetry(ctx context.Context, f Fetcher, a Action, delay time.Duration) (string, error) {
	html, err := f.Fetch(ctx, a)
	if err == nil || !errors.IsRetryable(err) {
		return html, err
	}

	retry := a
	if a.Kind == KindClick && stderrors.Is(err, ErrActivated) {
		retry = Current()
	}

	logger.ForFetcher("retry").Warn().Err(err).Str("action", a.String()).Str("retry", retry.String()).Dur("delay", delay).Msg("Fetch failed, retrying once")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", errors.NewNetwork(a.Target(), "retry cancelled", ctx.Err())
	case <-timer.C:
	}

	html, err = f.Fetch(ctx, retry)
	if err == nil || !errors.IsRetryable(err) {
		return html, err
	}
	if errors.IsNetwork(err) {
		return "", err
	}
	return "", errors.NewNetwork(a.Target(), "fetch failed after retry", err)
}
