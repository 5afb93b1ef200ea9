package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the engine state and pending queue depth",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state := eng.GetState()

		if flagJSON {
			out, err := json.MarshalIndent(state, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("status:   %s\n", state.Status)
		if state.LastSyncAt != nil {
			fmt.Printf("last sync: %s\n", state.LastSyncAt.Local().Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("last sync: never")
		}
		fmt.Printf("pending:  %d\n", state.PendingOperations)
		if state.FailedOperations > 0 {
			fmt.Printf("failed:   %d (quarantined until reset)\n", state.FailedOperations)
		}
		if state.Error != "" {
			fmt.Printf("error:    %s\n", state.Error)
		}
		return nil
	},
}
