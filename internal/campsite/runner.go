package campsite

import (
	"context"
	"sort"
	"sync"
	"time"

	"sjsage522/parkscraper/internal/fetch"
	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/internal/sink"
	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"
	"sjsage522/parkscraper/services/publisher"
	"sjsage522/parkscraper/services/worker"

	"golang.org/x/sync/errgroup"
)

// RunnerOptions configures a Runner
type RunnerOptions struct {
	// Run names the run in progress events
	Run string
	// Concurrency is the number of browser tabs scraping calendars at once
	Concurrency int
	// Dates to scrape for every site; none scrapes the site lists only
	Dates []time.Time
	// Interval between passes; zero runs a single pass
	Interval time.Duration
	// Refresh re-scrapes dates that are already known
	Refresh bool
}

// Runner fills in the sites and availability of every park, one park at a time.
// The whole session is persisted after each park.
type Runner struct {
	scraper   *Scraper
	opener    fetch.Opener
	sink      *sink.Structured
	publisher publisher.Publisher
	opts      RunnerOptions
	log       *logger.Logger

	mu    sync.Mutex
	parks session.Parks
}

// NewRunner creates a runner persisting to out
func NewRunner(scraper *Scraper, opener fetch.Opener, out *sink.Structured, pub publisher.Publisher, opts RunnerOptions) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Runner{
		scraper:   scraper,
		opener:    opener,
		sink:      out,
		publisher: pub,
		opts:      opts,
		log:       logger.ForComponent("runner").WithField("run", opts.Run),
	}
}

// Run scrapes what parks is missing. Parks whose sites already cover every date are
// skipped unless Refresh is set. It returns the session as far as it got.
func (r *Runner) Run(ctx context.Context, parks session.Parks) (session.Parks, error) {
	r.mu.Lock()
	r.parks = parks.Clone()
	if r.parks == nil {
		r.parks = make(session.Parks)
	}
	r.parks.Normalize()
	r.mu.Unlock()

	pool, closePool, err := r.openPool(ctx)
	if err != nil {
		return r.Snapshot(), err
	}
	defer closePool()

	pass := 0
	w := worker.NewWorker(r.opts.Run, r.publisher, r.checkpoint, r.opts.Interval)
	err = w.Start(ctx, func(ctx context.Context) ([]worker.Unit, error) {
		units := r.plan(pool, r.opts.Refresh || pass > 0)
		pass++
		return units, nil
	})
	return r.Snapshot(), err
}

// Snapshot returns a copy of the session
func (r *Runner) Snapshot() session.Parks {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parks.Clone()
}

func (r *Runner) checkpoint() error {
	return r.sink.Persist(r.Snapshot())
}

// openPool opens one fetcher per concurrent worker
func (r *Runner) openPool(ctx context.Context) (chan fetch.Fetcher, func(), error) {
	pool := make(chan fetch.Fetcher, r.opts.Concurrency)
	closeAll := func() {
		for {
			select {
			case f := <-pool:
				f.Close()
			default:
				return
			}
		}
	}

	for i := 0; i < r.opts.Concurrency; i++ {
		f, err := r.opener.Open(ctx)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		pool <- f
	}
	return pool, closeAll, nil
}

func (r *Runner) plan(pool chan fetch.Fetcher, refresh bool) []worker.Unit {
	keys := session.DateKeys(r.opts.Dates)

	r.mu.Lock()
	defer r.mu.Unlock()

	var units []worker.Unit
	for _, name := range r.parks.Names() {
		park := r.parks[name]
		if !refresh && park.Complete(keys) {
			r.log.Debug().Str("park", name).Msg("Park already complete, skipping")
			continue
		}
		units = append(units, &parkUnit{runner: r, name: name, pool: pool, refresh: refresh})
	}

	r.log.Info().Int("parks", len(r.parks)).Int("pending", len(units)).Msg("Planned pass")
	return units
}

// parkUnit scrapes one park
type parkUnit struct {
	runner  *Runner
	name    string
	pool    chan fetch.Fetcher
	refresh bool
}

func (u *parkUnit) Name() string {
	return u.name
}

func (u *parkUnit) Run(ctx context.Context) (int, error) {
	r := u.runner
	log := logger.ForPark(u.name)

	r.mu.Lock()
	url := r.parks[u.name].URL
	needSites := len(r.parks[u.name].Sites) == 0
	r.mu.Unlock()

	if url == "" {
		return 0, errors.NewValidation(u.name, "park has no URL")
	}

	records := 0
	if needSites {
		f, err := u.take(ctx)
		if err != nil {
			return 0, err
		}
		sites, err := r.scraper.Sites(ctx, f, url)
		u.pool <- f

		r.mu.Lock()
		park := r.parks[u.name]
		if park.Sites == nil {
			park.Sites = make(map[string]*session.Site, len(sites))
		}
		for id, site := range sites {
			park.Sites[id] = site
		}
		r.mu.Unlock()

		records += len(sites)
		log.Info().Int("sites", len(sites)).Msg("Sites scraped")
		if err != nil {
			return records, err
		}
	}

	if len(r.opts.Dates) == 0 {
		return records, nil
	}

	ids := u.pendingSites()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			f, err := u.take(gctx)
			if err != nil {
				return err
			}
			defer func() { u.pool <- f }()

			dates, err := r.scraper.Dates(gctx, f, url, id, r.opts.Dates)
			if err != nil {
				return err
			}

			r.mu.Lock()
			site := r.parks[u.name].Sites[id]
			if site.Dates == nil {
				site.Dates = make(map[string]session.Status, len(dates))
			}
			for d, status := range dates {
				site.Dates[d] = status
			}
			r.mu.Unlock()

			mu.Lock()
			records += len(dates)
			mu.Unlock()

			log.Debug().Str("site", id).Int("dates", len(dates)).Msg("Dates scraped")
			return nil
		})
	}

	err := g.Wait()
	return records, err
}

// pendingSites returns the ids of the sites whose dates need scraping, sorted
func (u *parkUnit) pendingSites() []string {
	r := u.runner
	keys := session.DateKeys(r.opts.Dates)

	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, site := range r.parks[u.name].Sites {
		if u.refresh || !site.Covers(keys) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (u *parkUnit) take(ctx context.Context) (fetch.Fetcher, error) {
	select {
	case f := <-u.pool:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
