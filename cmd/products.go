package cmd

import (
	"sjsage522/parkscraper/internal/catalog"
	"sjsage522/parkscraper/internal/extract"
	"sjsage522/parkscraper/internal/fetch"
	"sjsage522/parkscraper/internal/sink"
	"sjsage522/parkscraper/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	flags := productsCmd.Flags()
	flags.String("url", "", "listing URL")
	flags.String("next", "", "next-page control; empty reads the first page only")
	flags.Bool("static", false, "fetch over plain HTTP instead of a browser")

	_ = viper.BindPFlag("products_url", flags.Lookup("url"))
	_ = viper.BindPFlag("products_next", flags.Lookup("next"))

	rootCmd.AddCommand(productsCmd)
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Scrape a product listing into CSV",
	Long:  `Extracts name, price and rating of every product of the listing into the products file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		overrides, err := loadSchemas(cfg)
		if err != nil {
			return err
		}
		schema := extract.Override(catalog.ProductSchema, overrides)

		out := sink.NewTabular(cfg.OutputPath(cfg.ProductsFile), nil)
		scraper, err := catalog.NewScraper(catalog.Options{
			URL:          cfg.ProductsURL,
			NextSelector: cfg.ProductsNext,
			RetryDelay:   cfg.RetryDelay,
			MaxPages:     cfg.MaxPages,
		}, schema, out)
		if err != nil {
			return err
		}

		var f fetch.Fetcher
		if static, _ := cmd.Flags().GetBool("static"); static {
			f = fetch.NewHTTPFetcher(fetch.HTTPOptions{
				UserAgent:   cfg.UserAgent,
				Timeout:     cfg.PageTimeout,
				MinInterval: cfg.MinRequestInterval,
			})
		} else {
			services := initializeServices(ctx, cfg, true)
			defer services.Cleanup()

			f, err = services.Opener.Open(ctx)
			if err != nil {
				return err
			}
		}
		defer f.Close()

		records, err := scraper.Scrape(ctx, f)
		if err != nil {
			return err
		}

		logger.ForComponent("products").Info().Int("products", len(records)).Str("file", out.Path).Msg("Products saved")
		return nil
	},
}
