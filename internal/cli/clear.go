package cli

import (
	"github.com/spf13/cobra"

	"t212cache/internal/app"
)

var clearCmd = &cobra.Command{
	Use:   "clear [table]",
	Short: "Delete cached rows for one table, or everything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ClearOptions{}
		if len(args) == 1 {
			opts.Table = args[0]
		}
		return getApp().Clear(cmd.Context(), opts)
	},
}
