package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the pending queue and identifier mappings",
	Long: `Reset clears all queued mutations and all local/remote identifier
mappings. Local entity data is untouched, but every local entity becomes
unmapped: the next full-sync will re-create them on the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagForce {
			return fmt.Errorf("reset discards %d pending operation(s); re-run with --force to confirm", eng.GetPendingCount())
		}
		if err := eng.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		fmt.Println("sync state cleared")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&flagForce, "force", false, "skip the confirmation check")
}
