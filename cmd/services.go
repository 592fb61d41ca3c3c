package cmd

import (
	"context"

	"sjsage522/parkscraper/config"
	"sjsage522/parkscraper/internal/campsite"
	"sjsage522/parkscraper/internal/extract"
	"sjsage522/parkscraper/internal/fetch"
	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/services/cache"
	"sjsage522/parkscraper/services/publisher"
)

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Opener    fetch.Opener
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Opener != nil {
		s.Opener.Close()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes the page cache, the progress publisher and the browser
func initializeServices(ctx context.Context, cfg *config.Config, usePageCache bool) *Services {
	services := &Services{}

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr, "parkscraper")
		if err := mc.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Msg("Memcache unavailable, using in-process page cache")
			services.Cache = cache.NewMemoryCache()
		} else {
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
			services.Cache = mc
		}
	} else {
		services.Cache = cache.NewMemoryCache()
	}

	// Initialize publisher
	services.Publisher = publisher.NopPublisher{}
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("Redis unavailable, progress events disabled")
			redisPublisher.Close()
		} else {
			services.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	var opener fetch.Opener = fetch.NewBrowser(browserOptions(cfg))
	if usePageCache && cfg.PageCacheTTL > 0 {
		opener = fetch.NewCachedOpener(opener, services.Cache, cfg.PageCacheTTL)
	}
	services.Opener = opener

	return services
}

func browserOptions(cfg *config.Config) fetch.BrowserOptions {
	return fetch.BrowserOptions{
		ChromePath:       cfg.ChromePath,
		Headless:         cfg.Headless,
		UserAgent:        cfg.UserAgent,
		PageTimeout:      cfg.PageTimeout,
		SettleDelay:      cfg.SettleDelay,
		ClickSettleDelay: cfg.ClickSettleDelay,
		MinInterval:      cfg.MinRequestInterval,
	}
}

// loadSchemas returns the schema overrides of the configured schema file
func loadSchemas(cfg *config.Config) (map[string]extract.Schema, error) {
	if cfg.SchemaFile == "" {
		return nil, nil
	}
	return extract.LoadSchemas(cfg.SchemaFile)
}

func newCampsiteScraper(cfg *config.Config) (*campsite.Scraper, error) {
	overrides, err := loadSchemas(cfg)
	if err != nil {
		return nil, err
	}
	return campsite.NewScraper(campsite.Options{
		ParksURL:     cfg.ParksURL,
		RetryDelay:   cfg.RetryDelay,
		MaxPages:     cfg.MaxPages,
		BatchSize:    cfg.BatchSize,
		LengthOfStay: cfg.LengthOfStay,
	}, campsite.DefaultSchemas().Override(overrides))
}
