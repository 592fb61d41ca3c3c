package cmd

import (
	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/internal/sink"
	"sjsage522/parkscraper/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	parksCmd.Flags().String("parks-url", "", "park list URL")
	_ = viper.BindPFlag("parks_url", parksCmd.Flags().Lookup("parks-url"))

	rootCmd.AddCommand(parksCmd)
}

var parksCmd = &cobra.Command{
	Use:   "parks",
	Short: "Collect every park and its URL into the parks file",
	Long: `Walks the park list page by page and resolves the URL of every park.
Parks already in the parks file are kept and not resolved again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger.ForComponent("parks")

		scraper, err := newCampsiteScraper(cfg)
		if err != nil {
			return err
		}

		out := sink.NewStructured(cfg.OutputPath(cfg.ParksFile))
		known, err := loadParks(out)
		if err != nil {
			return err
		}

		services := initializeServices(ctx, cfg, false)
		defer services.Cleanup()

		tab, err := services.Opener.Open(ctx)
		if err != nil {
			return err
		}
		defer tab.Close()

		parks, err := scraper.Parks(ctx, tab, known, func(p session.Parks) error {
			return out.Persist(p)
		})
		if err != nil {
			return err
		}
		if err := out.Persist(parks); err != nil {
			return err
		}

		log.Info().Int("parks", len(parks)).Str("file", out.Path).Msg("Parks saved")
		return nil
	},
}

// loadParks loads a previous session, or returns an empty one when there is none
func loadParks(s *sink.Structured) (session.Parks, error) {
	parks := session.Parks{}
	if !s.Exists() {
		return parks, nil
	}
	if err := s.Load(&parks); err != nil {
		return nil, err
	}
	logger.Info("Loaded %d parks from %s", len(parks), s.Path)
	return parks, nil
}
