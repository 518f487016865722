package cli

import (
	"github.com/spf13/cobra"

	"t212cache/internal/app"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync [tables...]",
	Short: "Pull account history into the local cache",
	Long:  "Pull account history into the local cache. Tables may be any of orders, dividends, transactions; all three when omitted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sync(cmd.Context(), app.SyncOptions{
			Tables: args,
			Force:  syncForce,
		})
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Clear each table before syncing it")
}
