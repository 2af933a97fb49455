package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/david/scholarship-finder/internal/app"
	"github.com/david/scholarship-finder/internal/models"
)

var (
	matchProfile string

	matchCmd = &cobra.Command{
		Use:   "match",
		Short: "Rank scholarships for an applicant profile read from a JSON file",
		RunE:  runMatch,
	}
)

func init() {
	matchCmd.Flags().StringVar(&matchProfile, "profile", "", "applicant profile JSON file")
	_ = matchCmd.MarkFlagRequired("profile")
}

func readProfile(path string) (models.ApplicantProfile, error) {
	var p models.ApplicantProfile
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode profile %s: %w", path, err)
	}
	if err := validator.New().Struct(p); err != nil {
		return p, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

func runMatch(cmd *cobra.Command, _ []string) error {
	profile, err := readProfile(matchProfile)
	if err != nil {
		return err
	}
	a, _, err := openApp(cmd.Context(), app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	renderCandidates(cmd, a.Aggregator.Recommend(cmd.Context(), profile))
	return nil
}

func renderCandidates(cmd *cobra.Command, candidates []models.MatchCandidate) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"#", "Name", "Score", "Amount", "Deadline", "Source", "Link"})
	for i, c := range candidates {
		t.AppendRow(table.Row{i + 1, c.Name, c.MatchScore, formatAmount(c.Amount), deref(c.Deadline), c.Provenance, deref(c.Link)})
	}
	t.Render()
}

func formatAmount(a models.Amount) string {
	switch {
	case a.Varies:
		return "varies"
	case a.Missing():
		return "-"
	default:
		return fmt.Sprintf("$%.0f", a.Value)
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
