package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/scholarship-finder/internal/app"
	"github.com/david/scholarship-finder/internal/ingest"
)

var (
	ingestSource string
	ingestDryRun bool

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Run ingestion for every enabled source, or one with --source",
		RunE:  runIngest,
	}
)

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "only ingest the source with this id")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "parse and resolve without writing records")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	a, log, err := openApp(cmd.Context(), app.Options{DryRun: ingestDryRun})
	if err != nil {
		return err
	}
	defer a.Close()
	defer log.Sync() //nolint:errcheck

	var summary ingest.RunSummary
	if ingestSource != "" {
		summary, err = a.Orchestrator.RunOne(cmd.Context(), ingestSource)
		if err != nil {
			return err
		}
	} else {
		summary = a.Orchestrator.Run(cmd.Context())
	}

	renderSummary(cmd, summary)
	if len(summary.Sources) > 0 && summary.Failed == len(summary.Sources) {
		return app.ErrAllSourcesFailed
	}
	return nil
}

func renderSummary(cmd *cobra.Command, summary ingest.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Source", "Status", "Processed", "Added", "Updated", "Flagged", "Duration", "Error"})
	for _, s := range summary.Sources {
		t.AppendRow(table.Row{s.Source, s.Status, s.Processed, s.Added, s.Updated, s.Flagged, s.Duration.Round(time.Millisecond), s.Error})
	}
	t.AppendFooter(table.Row{"Total", fmt.Sprintf("%d failed", summary.Failed), summary.Processed, summary.Added, summary.Updated, summary.Flagged, "", ""})
	if summary.DryRun {
		t.SetCaption("dry run: nothing was written")
	}
	t.Render()
}
