// Package catalog scrapes product listings into CSV.
package catalog

import (
	"context"
	"time"

	"sjsage522/parkscraper/internal/extract"
	"sjsage522/parkscraper/internal/fetch"
	"sjsage522/parkscraper/internal/paginate"
	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/internal/sink"
	"sjsage522/parkscraper/logger"

	"github.com/PuerkitoBio/goquery"
)

// Columns of the product CSV
const (
	ColumnName   = "Product Name"
	ColumnPrice  = "Price"
	ColumnRating = "Rating"
)

// ProductSchema reads the laptop listing; products without a rating get an empty one
var ProductSchema = extract.Schema{
	Name:      "products",
	Container: "a._31qSD5[href]",
	Fields: []extract.Field{
		{Name: ColumnName, Selector: "div._3wU53n", Required: true},
		{Name: ColumnPrice, Selector: "div._1vC4OE._2rQ-NK", Required: true},
		{Name: ColumnRating, Selector: "div.hGSR34", Default: ""},
	},
}

// Options configures a listing scrape
type Options struct {
	URL          string
	NextSelector string
	RetryDelay   time.Duration
	MaxPages     int
}

// Scraper collects the products of a listing
type Scraper struct {
	opts      Options
	extractor *extract.Extractor
	out       *sink.Tabular
	log       *logger.Logger
}

// NewScraper creates a scraper writing schema's columns to out
func NewScraper(opts Options, schema extract.Schema, out *sink.Tabular) (*Scraper, error) {
	e, err := extract.New(schema)
	if err != nil {
		return nil, err
	}
	if len(out.Columns) == 0 {
		out.Columns = schema.Columns()
	}
	return &Scraper{
		opts:      opts,
		extractor: e,
		out:       out,
		log:       logger.ForComponent("catalog").WithField("schema", schema.Name),
	}, nil
}

// Scrape walks the listing and persists the records after every page.
// Without a next selector only the first page is read.
func (s *Scraper) Scrape(ctx context.Context, f fetch.Fetcher) (session.Records, error) {
	records := session.Records{}

	p := paginate.New(f, paginate.Options{RetryDelay: s.opts.RetryDelay, MaxPages: s.opts.MaxPages})

	pages, err := p.Follow(ctx, fetch.Navigate(s.opts.URL), s.opts.NextSelector,
		func(ctx context.Context, page paginate.PageDescriptor, doc *goquery.Document) error {
			found := s.extractor.ExtractDocument(doc)
			records = append(records, found...)
			s.log.Info().Str("page", page.Label).Int("products", len(found)).Msg("Products extracted")
			return s.out.Persist(records)
		})
	if err != nil {
		return records, err
	}

	s.log.Info().Int("pages", pages).Int("products", len(records)).Int64("skipped", s.extractor.Malformed()).Msg("Listing scraped")
	return records, nil
}
