package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/david/scholarship-finder/internal/app"
)

var verifyLinksCmd = &cobra.Command{
	Use:   "verify-links",
	Short: "Re-check stored application links that have not been verified recently",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _, err := openApp(cmd.Context(), app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checked %d links, %d broken, %d not saved\n", res.Checked, res.Broken, res.Failed)
		return nil
	},
}
