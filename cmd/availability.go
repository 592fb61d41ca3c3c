package cmd

import (
	"sjsage522/parkscraper/internal/campsite"
	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/internal/sink"
	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	flags := availabilityCmd.Flags()
	flags.String("start-date", "", "first date to scrape (MM/DD/YYYY)")
	flags.String("end-date", "", "last date to scrape (MM/DD/YYYY)")
	flags.Int("concurrency", 0, "browser tabs scraping calendars at once")
	flags.Int("batch-size", 0, "days shown by one calendar view")
	flags.Duration("interval", 0, "re-scrape every interval until interrupted")
	flags.Bool("refresh", false, "re-scrape dates already in the output file")

	_ = viper.BindPFlag("start_date", flags.Lookup("start-date"))
	_ = viper.BindPFlag("end_date", flags.Lookup("end-date"))
	_ = viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
	_ = viper.BindPFlag("batch_size", flags.Lookup("batch-size"))
	_ = viper.BindPFlag("scrape_interval", flags.Lookup("interval"))

	rootCmd.AddCommand(availabilityCmd)
}

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Scrape the availability of every campsite for the configured dates",
	Long: `Scrapes the calendar of every site of every park between start-date and
end-date into allparks_<start>_to_<end>.json. The file is rewritten after each
park; re-running resumes with the parks that are not complete yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.ForComponent("availability")

		start, end, err := cfg.DateRange()
		if err != nil {
			return err
		}
		refresh, _ := cmd.Flags().GetBool("refresh")

		scraper, err := newCampsiteScraper(cfg)
		if err != nil {
			return err
		}

		// Resume from a previous run of the same range, else start from the parks file
		out := sink.NewStructured(cfg.AvailabilityFile())
		source := out
		if !out.Exists() {
			source = sink.NewStructured(cfg.OutputPath(cfg.ParksFile))
		}
		parks, err := loadParks(source)
		if err != nil {
			return err
		}
		if len(parks) == 0 {
			return errors.NewValidation(source.Path, `no parks found, run "parkscraper parks" first`)
		}

		// Cached calendars would hide changes between watch passes
		services := initializeServices(ctx, cfg, cfg.ScrapeInterval == 0 && !refresh)
		defer services.Cleanup()

		runner := campsite.NewRunner(scraper, services.Opener, out, services.Publisher, campsite.RunnerOptions{
			Run:         out.Path,
			Concurrency: cfg.Concurrency,
			Dates:       session.DateRange(start, end),
			Interval:    cfg.ScrapeInterval,
			Refresh:     refresh,
		})

		log.Info().
			Str("start", cfg.StartDate).
			Str("end", cfg.EndDate).
			Int("parks", len(parks)).
			Int("concurrency", cfg.Concurrency).
			Msg("Starting availability scrape")

		parks, err = runner.Run(ctx, parks)
		if err != nil {
			return err
		}

		log.Info().Int("parks", len(parks)).Str("file", out.Path).Msg("Availability saved")
		return nil
	},
}
