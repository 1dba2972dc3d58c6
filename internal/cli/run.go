package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the arbitrage monitoring loop",
	Long: "Run starts the monitoring loop: every tick it fetches the Binance reference\n" +
		"price and each configured Aerodrome pool's reserves, detects and validates\n" +
		"arbitrage opportunities, generates market-making signals, and routes results\n" +
		"to the configured sinks. Stops cleanly on SIGINT/SIGTERM.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}
