// Package cmd implements the parkscraper command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/parkscraper/config"
	"sjsage522/parkscraper/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfg is loaded before every command runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "parkscraper",
	Short: "Scrape campsite availability and product listings",
	Long: `parkscraper drives a headless browser through paginated listings and
extracts records with selector schemas.

Examples:
  # Collect every state park and its URL
  parkscraper parks

  # Collect the campsites of every park
  parkscraper sites

  # Scrape availability between two dates, four tabs at a time
  parkscraper availability --start-date 06/15/2020 --end-date 06/30/2020 --concurrency 4

  # Which parks have a site free for the nights of 06/17 and 06/18?
  parkscraper summarize --check-in 06/17/2020 --check-out 06/19/2020

  # Laptop listing to CSV
  parkscraper products`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		switch {
		case viper.GetBool("debug"):
			logger.SetLevel(zerolog.DebugLevel)
		case viper.GetBool("quiet"):
			logger.SetLevel(zerolog.WarnLevel)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default ./parkscraper.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only log warnings and errors")
	rootCmd.PersistentFlags().String("output-dir", "", "directory for output files")
	rootCmd.PersistentFlags().String("schema-file", "", "YAML file overriding the built-in selector schemas")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	_ = viper.BindPFlag("schema_file", rootCmd.PersistentFlags().Lookup("schema-file"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("parkscraper")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && viper.GetString("config") != "" {
			logger.Warn("Failed to read config file: %v", err)
		}
		return
	}
	logger.Debug("Using config file %s", viper.ConfigFileUsed())
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
