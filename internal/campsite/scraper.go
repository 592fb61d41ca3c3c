package campsite

import (
	"context"
	"strconv"
	"strings"
	"time"

	"sjsage522/parkscraper/internal/extract"
	"sjsage522/parkscraper/internal/fetch"
	"sjsage522/parkscraper/internal/paginate"
	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Options configures the scraper
type Options struct {
	ParksURL     string
	NextSelector string
	RetryDelay   time.Duration
	MaxPages     int
	BatchSize    int
	LengthOfStay int
}

// Scraper extracts parks, sites and availability with one fetcher per call
type Scraper struct {
	opts     Options
	parks    *extract.Extractor
	sites    *extract.Extractor
	calendar *extract.Extractor
	log      *logger.Logger
}

// NewScraper compiles the schemas
func NewScraper(opts Options, schemas Schemas) (*Scraper, error) {
	if opts.NextSelector == "" {
		opts.NextSelector = NextSelector
	}
	if opts.BatchSize <= 0 {
		return nil, errors.NewValidation("batch_size", "batch size must be positive")
	}
	if opts.LengthOfStay <= 0 {
		opts.LengthOfStay = 1
	}

	parks, err := extract.New(schemas.ParkList)
	if err != nil {
		return nil, err
	}
	sites, err := extract.New(schemas.SiteList)
	if err != nil {
		return nil, err
	}
	calendar, err := extract.New(schemas.Calendar)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		opts:     opts,
		parks:    parks,
		sites:    sites,
		calendar: calendar,
		log:      logger.ForComponent("campsite"),
	}, nil
}

func (s *Scraper) paginator(f fetch.Fetcher) *paginate.Paginator {
	return paginate.New(f, paginate.Options{RetryDelay: s.opts.RetryDelay, MaxPages: s.opts.MaxPages})
}

// listedPark is a park row found on page Page of the park list
type listedPark struct {
	Name     string
	AnchorID string
	Page     int
}

// Parks lists every park and resolves the URL of those missing from known.
// Park URLs are only reachable by clicking the park link, so each one is resolved by
// walking back to its list page and clicking it. checkpoint, if set, receives the
// parks after each new one.
func (s *Scraper) Parks(ctx context.Context, f fetch.Fetcher, known session.Parks, checkpoint func(session.Parks) error) (session.Parks, error) {
	parks := known.Clone()
	if parks == nil {
		parks = make(session.Parks)
	}
	parks.Normalize()

	listed, err := s.listParks(ctx, f)
	if err != nil {
		return parks, err
	}
	s.log.Info().Int("parks", len(listed)).Msg("Park list collected")

	for _, lp := range listed {
		if p, ok := parks[lp.Name]; ok && p.URL != "" {
			continue
		}

		url, err := s.resolvePark(ctx, f, lp)
		if err != nil {
			return parks, err
		}

		parks[lp.Name] = &session.Park{URL: url, Sites: map[string]*session.Site{}}
		logger.ForPark(lp.Name).Info().Str("url", url).Msg("Park is new, adding it")

		if checkpoint != nil {
			if err := checkpoint(parks); err != nil {
				return parks, err
			}
		}
	}

	return parks, nil
}

func (s *Scraper) listParks(ctx context.Context, f fetch.Fetcher) ([]listedPark, error) {
	var listed []listedPark
	seen := make(map[string]bool)

	_, err := s.paginator(f).Follow(ctx, fetch.Navigate(s.opts.ParksURL), s.opts.NextSelector,
		func(ctx context.Context, page paginate.PageDescriptor, doc *goquery.Document) error {
			for _, r := range s.parks.ExtractDocument(doc) {
				name := r[FieldPark]
				if seen[name] {
					continue
				}
				seen[name] = true
				listed = append(listed, listedPark{Name: name, AnchorID: r[FieldAnchorID], Page: page.Index})
			}
			return nil
		})
	return listed, err
}

// resolvePark walks to the list page of lp, clicks its link and reads the page location
func (s *Scraper) resolvePark(ctx context.Context, f fetch.Fetcher, lp listedPark) (string, error) {
	if _, err := fetch.FetchWithRetry(ctx, f, fetch.Navigate(s.opts.ParksURL), s.opts.RetryDelay); err != nil {
		return "", err
	}
	for i := 0; i < lp.Page; i++ {
		if _, err := fetch.FetchWithRetry(ctx, f, fetch.Click(s.opts.NextSelector), s.opts.RetryDelay); err != nil {
			return "", err
		}
	}
	if _, err := fetch.FetchWithRetry(ctx, f, fetch.ClickID(lp.AnchorID), s.opts.RetryDelay); err != nil {
		return "", err
	}
	return f.Location(ctx)
}

// SitesURL returns the site list of a park
func SitesURL(parkURL string) string {
	return parkURL + "&tab=sites#"
}

// Sites lists every campsite of the park at parkURL.
// Rows without a recognizable site id are skipped.
func (s *Scraper) Sites(ctx context.Context, f fetch.Fetcher, parkURL string) (map[string]*session.Site, error) {
	sites := make(map[string]*session.Site)

	_, err := s.paginator(f).Follow(ctx, fetch.Navigate(SitesURL(parkURL)), s.opts.NextSelector,
		func(ctx context.Context, page paginate.PageDescriptor, doc *goquery.Document) error {
			for _, r := range s.sites.ExtractDocument(doc) {
				sites[r[FieldSiteID]] = &session.Site{
					PetsAllowed: r[FieldPetsAllowed] == "true",
					SiteType:    r[FieldSiteType],
					Dates:       map[string]session.Status{},
				}
			}
			return nil
		})
	if err != nil {
		return sites, err
	}
	return sites, nil
}

// DatesURL returns the calendar of siteID starting at date
func (s *Scraper) DatesURL(parkURL, siteID string, date time.Time) string {
	base := strings.ReplaceAll(parkURL, "campground", "campsite")
	return base + "&siteID=" + siteID + "&arvdate=" + session.FormatDate(date) + "&lengthOfStay=" + strconv.Itoa(s.opts.LengthOfStay)
}

// Dates reads the availability of siteID for every date. One calendar view shows
// BatchSize days, so only every BatchSize-th date is fetched.
// A day missing from the view is recorded as unknown.
func (s *Scraper) Dates(ctx context.Context, f fetch.Fetcher, parkURL, siteID string, dates []time.Time) (map[string]session.Status, error) {
	units := make([]paginate.PageDescriptor, len(dates))
	for i, d := range dates {
		units[i] = paginate.PageDescriptor{URL: s.DatesURL(parkURL, siteID, d), Index: i, Label: session.FormatDate(d)}
	}

	statuses := make(map[string]session.Status, len(dates))
	var cells session.Records

	_, err := s.paginator(f).Sequence(ctx, units, s.opts.BatchSize,
		func(ctx context.Context, unit paginate.PageDescriptor, doc *goquery.Document, offset int) error {
			if offset == 0 {
				cells = s.calendar.ExtractDocument(doc)
			}
			if offset >= len(cells) {
				s.log.Debug().Str("site", siteID).Str("date", unit.Label).Msg("Calendar cell missing, recording unknown")
				statuses[unit.Label] = session.StatusUnknown
				return nil
			}
			statuses[unit.Label] = session.ParseStatus(cells[offset][FieldStatus])
			return nil
		})
	return statuses, err
}
