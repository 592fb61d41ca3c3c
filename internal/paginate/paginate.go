// Package paginate drives repeated fetch and extract cycles over a result set.
package paginate

import (
	"context"
	"crypto/sha1"
	"fmt"
	"strings"
	"time"

	"sjsage522/parkscraper/internal/fetch"
	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxPages bounds control-driven pagination when no limit is configured
const DefaultMaxPages = 500

// PageDescriptor correlates a fetched page with the logical unit it represents
type PageDescriptor struct {
	URL   string
	Index int
	Label string
}

// PageFunc receives every page of a control-driven pagination
type PageFunc func(ctx context.Context, page PageDescriptor, doc *goquery.Document) error

// UnitFunc receives every unit of a URL sequence together with the document of its batch
// and the unit's offset inside that batch.
type UnitFunc func(ctx context.Context, unit PageDescriptor, doc *goquery.Document, offset int) error

// Options configures a Paginator
type Options struct {
	RetryDelay time.Duration
	MaxPages   int
}

// Paginator walks result sets with one fetcher
type Paginator struct {
	fetcher    fetch.Fetcher
	retryDelay time.Duration
	maxPages   int
	log        *logger.Logger
}

// New creates a paginator over f
func New(f fetch.Fetcher, opts Options) *Paginator {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	return &Paginator{
		fetcher:    f,
		retryDelay: opts.RetryDelay,
		maxPages:   opts.MaxPages,
		log:        logger.ForPaginator(),
	}
}

// Follow loads start, hands the page to fn and clicks next until the control is gone.
// It also stops on a page it has already seen or after MaxPages pages.
// An empty next selector reads the start page only.
// It returns the number of pages handed to fn.
func (p *Paginator) Follow(ctx context.Context, start fetch.Action, next string, fn PageFunc) (int, error) {
	seen := make(map[[sha1.Size]byte]bool)
	action := start

	for i := 0; ; i++ {
		if i >= p.maxPages {
			p.log.Warn().Int("max_pages", p.maxPages).Str("start", start.Target()).Msg("Page limit reached, stopping pagination")
			return i, nil
		}

		html, err := fetch.FetchWithRetry(ctx, p.fetcher, action, p.retryDelay)
		if err != nil {
			if i > 0 && errors.IsNotFound(err) {
				p.log.Debug().Int("pages", i).Str("next", next).Msg("Next control absent, pagination complete")
				return i, nil
			}
			return i, err
		}

		sum := sha1.Sum([]byte(html))
		if seen[sum] {
			p.log.Warn().Int("pages", i).Str("next", next).Msg("Page repeated, stopping pagination")
			return i, nil
		}
		seen[sum] = true

		doc, err := parse(action.Target(), html)
		if err != nil {
			return i, err
		}

		url, err := p.fetcher.Location(ctx)
		if err != nil {
			url = action.Target()
		}

		page := PageDescriptor{URL: url, Index: i, Label: fmt.Sprintf("page %d", i+1)}
		if err := fn(ctx, page, doc); err != nil {
			return i + 1, err
		}
		if next == "" {
			return i + 1, nil
		}

		action = fetch.Click(next)
	}
}

// Sequence visits units in order, fetching only the first unit of every batch of batchSize.
// The remaining units of a batch reuse that document. It returns the number of fetches.
func (p *Paginator) Sequence(ctx context.Context, units []PageDescriptor, batchSize int, fn UnitFunc) (int, error) {
	if batchSize <= 0 {
		return 0, errors.NewValidation("batch_size", "batch size must be positive")
	}

	var (
		doc     *goquery.Document
		fetches int
	)

	for i, unit := range units {
		offset := i % batchSize
		if offset == 0 {
			html, err := fetch.FetchWithRetry(ctx, p.fetcher, fetch.Navigate(unit.URL), p.retryDelay)
			if err != nil {
				return fetches, err
			}
			fetches++

			doc, err = parse(unit.URL, html)
			if err != nil {
				return fetches, err
			}
		}

		if err := fn(ctx, unit, doc, offset); err != nil {
			return fetches, err
		}
	}

	return fetches, nil
}

func parse(target, html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing(target, "HTML parsing failed", err)
	}
	return doc, nil
}
