package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"nebnav/internal/config"
	"nebnav/internal/lifecycle"
	"nebnav/internal/storage/sqlite"
)

func evaporateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaporate",
		Short: "Run a single evaporation sweep against the store and exit",
		RunE:  runEvaporate,
	}
}

func runEvaporate(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	policy := lifecycle.NewPolicy(cfg.EvaporationThreshold())
	coord := lifecycle.NewCoordinator(store, policy, logger,
		lifecycle.WithNotifier(lifecycle.NewLogNotifier(logger)),
	)

	moved, err := coord.Evaporate(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "evaporated %d stale backlog tasks\n", moved)
	return nil
}
