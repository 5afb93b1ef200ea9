package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openlift/syncengine/engine"
	"github.com/openlift/syncengine/logging"
	"github.com/openlift/syncengine/storage"
	"github.com/openlift/syncengine/storage/memory"
	"github.com/openlift/syncengine/storage/sqlite"
	"github.com/openlift/syncengine/transport/httpremote"
)

// Global flag values. Each falls back to the config file when left empty.
var (
	flagConfig string
	flagDB     string
	flagServer string
	flagUser   string
	flagToken  string
	flagLevel  string
	flagJSON   bool
	flagMemory bool
)

// Wired by setup() for use by the subcommands.
var (
	store *sqlite.Store
	eng   *engine.Engine
)

var rootCmd = &cobra.Command{
	Use:   "liftsync",
	Short: "liftsync synchronizes local workout data with a remote server",
	Long: `liftsync drives the offline-first sync engine from the command line.

Local mutations accumulate in a durable queue while offline and are pushed
to the server in dependency order; the server's snapshot is then pulled and
reconciled into the local database.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./liftsync.yaml or ~/.liftsync/liftsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "path to the local sqlite database")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "base URL of the sync server")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "user id to sync")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token for the sync server")
	rootCmd.PersistentFlags().StringVar(&flagLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable output")
	rootCmd.PersistentFlags().BoolVar(&flagMemory, "ephemeral", false, "keep all state in memory, nothing touches disk")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(fullSyncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

// setup loads configuration, opens the local database and initializes the
// engine against the configured server.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}

	logging.SetDefault(logging.NewLogger(logging.Config{
		Level:  cfg.logLevel,
		Format: cfg.logFormat,
		File:   logging.FileConfig{Path: cfg.logFile},
	}))

	if cfg.userID == "" {
		return fmt.Errorf("no user id configured (set --user or user_id in the config file)")
	}
	if cfg.serverURL == "" {
		return fmt.Errorf("no server configured (set --server or server_url in the config file)")
	}

	var (
		kv    storage.KVStore
		local storage.LocalStore
	)
	if flagMemory {
		kv, local = memory.NewKVStore(), memory.NewLocalStore()
	} else {
		if dir := filepath.Dir(cfg.dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
		}
		store, err = sqlite.Open(cfg.dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		kv, local = store.KV(), store.Entities()
	}

	var opts []httpremote.Option
	if cfg.authToken != "" {
		opts = append(opts, httpremote.WithAuthToken(cfg.authToken))
	}
	remote := httpremote.NewClient(cfg.serverURL, opts...)

	eng = engine.New(kv, local, engine.Config{
		Logger: logging.Default().Logger,
	})
	if err := eng.Initialize(cmd.Context(), remote, cfg.userID); err != nil {
		_ = teardown(cmd, args)
		return fmt.Errorf("initialize engine: %w", err)
	}
	return nil
}

// teardown releases the database handle.
func teardown(cmd *cobra.Command, args []string) error {
	if store != nil {
		return store.Close()
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("liftsync v0.1.0")
	},
}
