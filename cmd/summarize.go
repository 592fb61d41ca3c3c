package cmd

import (
	"fmt"
	"io"
	"strings"

	"sjsage522/parkscraper/internal/session"
	"sjsage522/parkscraper/internal/sink"
	"sjsage522/parkscraper/internal/summary"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	flags := summarizeCmd.Flags()
	flags.String("check-in", "", "first night (MM/DD/YYYY)")
	flags.String("check-out", "", "departure day, not a night (MM/DD/YYYY)")
	flags.String("file", "", "availability file (default: the configured date range)")
	flags.Bool("all", false, "also list parks that are full")
	_ = summarizeCmd.MarkFlagRequired("check-in")
	_ = summarizeCmd.MarkFlagRequired("check-out")

	rootCmd.AddCommand(summarizeCmd)
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Count the campsites free for a whole stay, per park and site type",
	RunE: func(cmd *cobra.Command, args []string) error {
		checkIn, _ := cmd.Flags().GetString("check-in")
		checkOut, _ := cmd.Flags().GetString("check-out")
		path, _ := cmd.Flags().GetString("file")
		all, _ := cmd.Flags().GetBool("all")

		q, err := summary.ParseQuery(checkIn, checkOut)
		if err != nil {
			return err
		}

		if path == "" {
			path = cfg.AvailabilityFile()
		}
		var parks session.Parks
		if err := sink.NewStructured(path).Load(&parks); err != nil {
			return err
		}

		summaries, err := summary.Summarize(parks, q)
		if err != nil {
			return err
		}

		renderSummary(cmd.OutOrStdout(), summaries, all)
		return nil
	},
}

// renderSummary prints one row per park with its free sites by type
func renderSummary(w io.Writer, summaries []summary.ParkSummary, all bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Park", "Free sites", "By type", "Full"})

	full := 0
	for _, s := range summaries {
		if s.Full {
			full++
			if !all {
				continue
			}
		}

		types := make([]string, 0, len(s.Counts))
		for _, st := range s.SiteTypes() {
			types = append(types, fmt.Sprintf("%s: %d", st, s.Counts[st]))
		}
		t.AppendRow(table.Row{s.Park, s.Available, strings.Join(types, ", "), s.Full})
	}

	t.AppendFooter(table.Row{fmt.Sprintf("%d parks", len(summaries)), "", "", fmt.Sprintf("%d full", full)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
