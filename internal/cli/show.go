package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"t212cache/internal/app"
)

var (
	showTicker string
	showStatus string
	showFrom   string
	showLimit  int
	showNoSync bool
)

var showCmd = &cobra.Command{
	Use:   "show <table>",
	Short: "Display cached records for one table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Table:  args[0],
			Ticker: showTicker,
			Status: showStatus,
			Limit:  showLimit,
			NoSync: showNoSync,
		}

		if showFrom != "" {
			from, err := time.Parse(time.RFC3339, showFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showTicker, "ticker", "", "Filter by instrument ticker")
	showCmd.Flags().StringVar(&showStatus, "status", "", "Filter orders by status (e.g. FILLED)")
	showCmd.Flags().StringVar(&showFrom, "from", "", "Only transactions at or after this timestamp (RFC3339)")
	showCmd.Flags().IntVar(&showLimit, "limit", 50, "Maximum rows to display (0 for all)")
	showCmd.Flags().BoolVar(&showNoSync, "no-sync", false, "Skip the freshness check and show cached data as-is")
}
