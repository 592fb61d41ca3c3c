package config

import (
	"path/filepath"
	"strings"
	"time"

	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Browser configuration
	ChromePath         string        `mapstructure:"chrome_path"`
	Headless           bool          `mapstructure:"headless"`
	UserAgent          string        `mapstructure:"user_agent" validate:"required"`
	PageTimeout        time.Duration `mapstructure:"page_timeout" validate:"gt=0"`
	SettleDelay        time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
	ClickSettleDelay   time.Duration `mapstructure:"click_settle_delay" validate:"gte=0"`
	RetryDelay         time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	MinRequestInterval time.Duration `mapstructure:"min_request_interval" validate:"gte=0"`

	// Pagination configuration
	MaxPages    int `mapstructure:"max_pages" validate:"gt=0"`
	BatchSize   int `mapstructure:"batch_size" validate:"gt=0"`
	Concurrency int `mapstructure:"concurrency" validate:"gt=0,lte=16"`

	// Campsite reservation scraper
	ParksURL     string `mapstructure:"parks_url" validate:"required,url"`
	StartDate    string `mapstructure:"start_date" validate:"required,datekey"`
	EndDate      string `mapstructure:"end_date" validate:"required,datekey"`
	LengthOfStay int    `mapstructure:"length_of_stay" validate:"gt=0"`
	ParksFile    string `mapstructure:"parks_file" validate:"required"`
	OutputDir    string `mapstructure:"output_dir"`

	// Product listing scraper
	ProductsURL  string `mapstructure:"products_url" validate:"required,url"`
	ProductsFile string `mapstructure:"products_file" validate:"required"`
	// Next-page control of the listing; empty scrapes the first page only
	ProductsNext string `mapstructure:"products_next"`

	// Optional YAML file overriding the built-in selector schemas
	SchemaFile string `mapstructure:"schema_file"`

	// Redis configuration; an empty address disables progress events
	RedisAddr            string `mapstructure:"redis_addr"`
	RedisDB              int    `mapstructure:"redis_db" validate:"gte=0"`
	RedisStream          string `mapstructure:"redis_stream"`
	RedisStreamMaxLength int64  `mapstructure:"redis_stream_max_length" validate:"gte=0"`

	// Memcache configuration; an empty address selects the in-process page cache
	MemcacheAddr string        `mapstructure:"memcache_addr"`
	PageCacheTTL time.Duration `mapstructure:"page_cache_ttl" validate:"gte=0"`

	// Re-run interval for the availability command; zero runs once
	ScrapeInterval time.Duration `mapstructure:"scrape_interval" validate:"gte=0"`
}

// defaults mirror the constants hardcoded in the original scripts.
var defaults = map[string]interface{}{
	"chrome_path":             "",
	"headless":                true,
	"user_agent":              "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"page_timeout":            45 * time.Second,
	"settle_delay":            1 * time.Second,
	"click_settle_delay":      1500 * time.Millisecond,
	"retry_delay":             5 * time.Second,
	"min_request_interval":    0,
	"max_pages":               500,
	"batch_size":              14,
	"concurrency":             1,
	"parks_url":               "https://www.cpwshop.com/camping.page",
	"start_date":              "06/15/2020",
	"end_date":                "06/30/2020",
	"length_of_stay":          1,
	"parks_file":              "parks.json",
	"output_dir":              ".",
	"products_url":            "https://www.flipkart.com/laptops/pr?sid=6bo,b5g",
	"products_file":           "flipkart_laptops.csv",
	"products_next":           "",
	"schema_file":             "",
	"redis_addr":              "",
	"redis_db":                0,
	"redis_stream":            "parkscraper:progress",
	"redis_stream_max_length": 1000,
	"memcache_addr":           "",
	"page_cache_ttl":          10 * time.Minute,
	"scrape_interval":         0,
}

// SetDefaults registers defaults and environment lookup on v.
// Keys map to upper-case environment variables, e.g. batch_size -> BATCH_SIZE.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// LoadConfig loads the configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load loads the configuration from v with defaults applied
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfiguration("failed to decode configuration", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return errors.NewConfiguration("invalid configuration", err)
	}

	start, end, err := c.DateRange()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return errors.NewConfiguration("end_date is before start_date", nil)
	}
	return nil
}

// newValidator registers datekey, an MM/DD/YYYY date that may omit leading zeros
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("datekey", func(fl validator.FieldLevel) bool {
		_, err := session.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// DateRange returns the parsed start and end dates
func (c *Config) DateRange() (time.Time, time.Time, error) {
	start, err := session.ParseDate(c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewConfiguration("invalid start_date", err)
	}
	end, err := session.ParseDate(c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewConfiguration("invalid end_date", err)
	}
	return start, end, nil
}

// AvailabilityFile returns the session file of the configured date range,
// e.g. allparks_06-15-2020_to_06-30-2020.json
func (c *Config) AvailabilityFile() string {
	start, end := c.StartDate, c.EndDate
	if s, e, err := c.DateRange(); err == nil {
		start, end = session.FormatDate(s), session.FormatDate(e)
	}
	name := "allparks_" + strings.ReplaceAll(start, "/", "-") + "_to_" + strings.ReplaceAll(end, "/", "-") + ".json"
	return filepath.Join(c.OutputDir, name)
}

// OutputPath places a relative file name in OutputDir
func (c *Config) OutputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}
