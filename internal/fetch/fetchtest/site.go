// Package fetchtest provides an in-memory site for testing code that drives a fetch.Fetcher.
package fetchtest

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"sjsage522/parkscraper/internal/fetch"
	"sjsage522/parkscraper/pkg/errors"
)

// ErrInjected is returned by fetches failed with FailNext
var ErrInjected = stderrors.New("injected fetch failure")

// Site is a finite set of pages connected by clickable controls
type Site struct {
	mu     sync.Mutex
	pages  map[string]string
	links  map[string]map[string]string
	fail   int
	// failRead counts clicks that take effect and then fail to read the page
	failRead int
	visits map[string]int
	total  int
	opened int
}

// NewSite creates an empty site
func NewSite() *Site {
	return &Site{
		pages:  make(map[string]string),
		links:  make(map[string]map[string]string),
		visits: make(map[string]int),
	}
}

// Page registers the HTML served at url
func (s *Site) Page(url, html string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = html
	return s
}

// Link makes a click on selector while on from load to
func (s *Site) Link(from, selector, to string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links[from] == nil {
		s.links[from] = make(map[string]string)
	}
	s.links[from][selector] = to
	return s
}

// FailNext makes the next n fetches fail with ErrInjected
func (s *Site) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = n
}

// FailAfterClick makes the next n clicks load their page and then fail,
// as a browser does when the read after a click times out.
func (s *Site) FailAfterClick(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRead = n
}

// Fetches returns the number of successful page loads
func (s *Site) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Visits returns how many times url was loaded
func (s *Site) Visits(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[url]
}

// Opened returns how many fetchers were opened
func (s *Site) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Open returns a new fetcher starting on a blank page
func (s *Site) Open(ctx context.Context) (fetch.Fetcher, error) {
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	return &Fetcher{site: s}, nil
}

// Fetcher returns a fetcher without counting it as opened
func (s *Site) Fetcher() *Fetcher {
	return &Fetcher{site: s}
}

// Close implements fetch.Opener
func (s *Site) Close() error {
	return nil
}

// Fetcher browses a Site
type Fetcher struct {
	site    *Site
	history []string
}

// Fetch performs the action against the site
func (f *Fetcher) Fetch(ctx context.Context, a fetch.Action) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewNetwork(a.Target(), "context done", err)
	}

	s := f.site
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail > 0 {
		s.fail--
		return "", ErrInjected
	}

	var url string
	switch a.Kind {
	case fetch.KindNavigate:
		url = a.URL
	case fetch.KindClick:
		if len(f.history) == 0 {
			return "", errors.NewNotFound(a.Selector, "no page loaded")
		}
		to, ok := s.links[f.history[len(f.history)-1]][a.Selector]
		if !ok {
			return "", errors.NewNotFound(a.Selector, "control not present")
		}
		url = to
	case fetch.KindCurrent:
		if len(f.history) == 0 {
			return "", errors.NewNotFound(a.Target(), "no page loaded")
		}
		return s.pages[f.history[len(f.history)-1]], nil
	default:
		return "", errors.NewValidation(a.String(), "unsupported action")
	}

	html, ok := s.pages[url]
	if !ok {
		return "", errors.NewNetwork(url, "page does not exist", nil)
	}

	f.history = append(f.history, url)
	s.visits[url]++
	s.total++

	if a.Kind == fetch.KindClick && s.failRead > 0 {
		s.failRead--
		return "", errors.NewNetwork(a.Target(), "failed to read page", fmt.Errorf("%w: %w", fetch.ErrActivated, ErrInjected))
	}
	return html, nil
}

// Location returns the URL of the current page
func (f *Fetcher) Location(ctx context.Context) (string, error) {
	if len(f.history) == 0 {
		return "", errors.NewNotFound("location", "no page loaded")
	}
	return f.history[len(f.history)-1], nil
}

// Close implements fetch.Fetcher
func (f *Fetcher) Close() error {
	return nil
}
