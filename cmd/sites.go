package cmd

import (
	"sjsage522/parkscraper/internal/campsite"
	"sjsage522/parkscraper/internal/sink"
	"sjsage522/parkscraper/logger"
	"sjsage522/parkscraper/pkg/errors"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sitesCmd)
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Collect the campsites of every park in the parks file",
	Long: `Reads the parks file written by "parks" and adds the site list of every
park that has none yet. The parks file is rewritten after each park.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		scraper, err := newCampsiteScraper(cfg)
		if err != nil {
			return err
		}

		out := sink.NewStructured(cfg.OutputPath(cfg.ParksFile))
		parks, err := loadParks(out)
		if err != nil {
			return err
		}
		if len(parks) == 0 {
			return errors.NewValidation(out.Path, `no parks found, run "parkscraper parks" first`)
		}

		services := initializeServices(ctx, cfg, true)
		defer services.Cleanup()

		runner := campsite.NewRunner(scraper, services.Opener, out, services.Publisher, campsite.RunnerOptions{
			Run:         "sites",
			Concurrency: 1,
		})

		parks, err = runner.Run(ctx, parks)
		if err != nil {
			return err
		}

		sites := 0
		for _, p := range parks {
			sites += len(p.Sites)
		}
		logger.ForComponent("sites").Info().Int("parks", len(parks)).Int("sites", sites).Str("file", out.Path).Msg("Sites saved")
		return nil
	},
}
