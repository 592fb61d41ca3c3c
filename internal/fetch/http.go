package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	neturl "net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// HTTP header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}
)

// HTTPOptions configures the static page fetcher
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MinInterval time.Duration
}

// HTTPFetcher fetches static pages without a browser.
// Clicks are supported on links only: the link's href is loaded.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	log       *logger.Logger

	mu      sync.Mutex
	current string
	body    string
}

// NewHTTPFetcher creates a static page fetcher
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   newLimiter(opts.MinInterval),
		userAgent: opts.UserAgent,
		log:       logger.ForFetcher("http"),
	}
}

// Open returns a fetcher with its own current page sharing the client and pacing
func (h *HTTPFetcher) Open(ctx context.Context) (Fetcher, error) {
	return &HTTPFetcher{
		client:    h.client,
		limiter:   h.limiter,
		userAgent: h.userAgent,
		log:       h.log,
	}, nil
}

// Fetch loads a URL or the target of a clicked link.
// Reading the current page returns the body already loaded.
func (h *HTTPFetcher) Fetch(ctx context.Context, a Action) (string, error) {
	var url string
	switch a.Kind {
	case KindNavigate:
		url = a.URL
	case KindCurrent:
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.current == "" {
			return "", errors.NewNotFound(a.Target(), "no page loaded")
		}
		return h.body, nil
	case KindClick:
		href, err := h.link(a.Selector)
		if err != nil {
			return "", err
		}
		url = href
	default:
		return "", errors.NewValidation(a.Target(), "unsupported action")
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return "", errors.NewNetwork(url, "pacing wait cancelled", err)
	}

	body, err := h.get(ctx, url)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	h.current = url
	h.body = body
	h.mu.Unlock()
	return body, nil
}

// link resolves the href of the first element of the current page matching selector
func (h *HTTPFetcher) link(selector string) (string, error) {
	h.mu.Lock()
	body, current := h.body, h.current
	h.mu.Unlock()

	if current == "" {
		return "", errors.NewNotFound(selector, "no page loaded")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", errors.NewParsing(current, "HTML parsing failed", err)
	}

	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", errors.NewNotFound(selector, "control not present")
	}

	href, ok := sel.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", errors.NewValidation(selector, "static fetcher can only follow links")
	}

	base, err := neturl.Parse(current)
	if err != nil {
		return "", errors.NewValidation(current, "invalid page URL")
	}
	ref, err := neturl.Parse(href)
	if err != nil {
		return "", errors.NewValidation(selector, "invalid link "+href)
	}
	return base.ResolveReference(ref).String(), nil
}

// get sends a GET request with browser-like headers and
// converts the response body to UTF-8 if needed.
func (h *HTTPFetcher) get(ctx context.Context, url string) (string, error) {
	// Create a new random number generator for header selection
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewValidation(url, fmt.Sprintf("failed to create request: %v", err))
	}

	userAgent := h.userAgent
	if userAgent == "" {
		userAgent = userAgents[rnd.Intn(len(userAgents))]
	}

	// Set browser-like headers
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", errors.NewNetwork(url, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return "", errors.NewRateLimit(url, resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewNetwork(url, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewNetwork(url, "failed to read response body", err)
	}

	// Determine the encoding from Content-Type header and body content
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if strings.EqualFold(name, "utf-8") {
		return string(bodyBytes), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))); err != nil {
		return "", errors.NewParsing(url, "failed to convert body to UTF-8", err)
	}

	h.log.Debug().Str("url", url).Str("charset", name).Msg("Converted response body to UTF-8")
	return buf.String(), nil
}

// Location returns the last URL loaded
func (h *HTTPFetcher) Location(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == "" {
		return "", errors.NewNotFound("location", "no page loaded")
	}
	return h.current, nil
}

// Close releases idle connections
func (h *HTTPFetcher) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
