package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlift/syncengine/engine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending local changes and pull the remote snapshot",
	Long: `Sync pushes queued local mutations to the server in dependency order,
then pulls the server's snapshot and reconciles it into the local database.
Items that keep failing are left in the queue for a later attempt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportResult(eng.Sync(cmd.Context()))
	},
}

var fullSyncCmd = &cobra.Command{
	Use:   "full-sync",
	Short: "Sync after seeding the queue with never-synced local entities",
	Long: `Full-sync scans the local database for entities that have no remote
mapping, enqueues creates for them, and then runs a normal sync. Useful
after restoring a device or enabling sync on existing data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportResult(eng.FullSync(cmd.Context()))
	},
}

// reportResult prints a sync result and maps failure onto the exit code.
func reportResult(res *engine.Result) error {
	if flagJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		fmt.Printf("pushed %d, pulled %d\n", res.Pushed, res.Pulled)
		for _, msg := range res.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
	}
	if !res.Success {
		return fmt.Errorf("sync finished with %d error(s)", len(res.Errors))
	}
	return nil
}
