package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/app"
)

var (
	showKind  string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent opportunities, signals, or executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Kind:  showKind,
			Limit: showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showKind, "kind", "opportunities", "Record kind: opportunities, signals, or executions")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
}
