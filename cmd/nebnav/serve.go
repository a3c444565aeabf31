package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nebnav/internal/categorize"
	"nebnav/internal/config"
	"nebnav/internal/lifecycle"
	"nebnav/internal/server"
	"nebnav/internal/storage/sqlite"
	"nebnav/internal/util"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the evaporation scheduler",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("Nebby Navigator lifecycle service", slog.String("version", Version))

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; brain dump extraction will fail until configured")
	}
	categorizer := categorize.New(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.GeminiTimeout())

	policy := lifecycle.NewPolicy(cfg.EvaporationThreshold())
	coord := lifecycle.NewCoordinator(store, policy, logger,
		lifecycle.WithCategorizer(categorizer),
		lifecycle.WithNotifier(lifecycle.NewLogNotifier(logger)),
	)
	scheduler := lifecycle.NewScheduler(coord, cfg.EvaporationInterval(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go scheduler.Start(ctx)

	srv := server.New(coord, store, scheduler, logger, cfg.StaticDir)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		util.EnvOrDefaultDuration("NEBNAV_SHUTDOWN_TIMEOUT", 5*time.Second))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
