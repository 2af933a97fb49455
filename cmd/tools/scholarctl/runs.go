package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/scholarship-finder/internal/app"
	"github.com/david/scholarship-finder/internal/models"
)

var (
	runsLimit  int
	runsSource string

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion reports",
		RunE:  runRuns,
	}
)

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of reports to show")
	runsCmd.Flags().StringVar(&runsSource, "source", "", "only show reports for this source id")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	a, _, err := openApp(cmd.Context(), app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	reports, err := a.Store.ListReports(cmd.Context(), runsSource, runsLimit)
	if err != nil {
		return err
	}
	renderReports(cmd, reports)
	return nil
}

func renderReports(cmd *cobra.Command, reports []models.IngestionReport) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Source", "Status", "Processed", "Added", "Updated", "Flagged", "Error", "At"})
	for _, r := range reports {
		t.AppendRow(table.Row{r.Source, r.Status, r.ItemsProcessed, r.ItemsAdded, r.ItemsUpdated, r.ItemsFlagged, r.Error, r.OccurredAt.Format("2006-01-02 15:04:05")})
	}
	t.Render()
}
