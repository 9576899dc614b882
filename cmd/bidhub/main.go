package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bidhub/bidhub/internal/auction"
	"github.com/bidhub/bidhub/internal/clock"
	"github.com/bidhub/bidhub/internal/config"
	"github.com/bidhub/bidhub/internal/health"
	"github.com/bidhub/bidhub/internal/httpapi"
	"github.com/bidhub/bidhub/internal/room"
	"github.com/bidhub/bidhub/internal/store"
	"github.com/bidhub/bidhub/internal/telemetry"
	"github.com/bidhub/bidhub/internal/ws"

	// Register store drivers so they are available via store.Open.
	_ "github.com/bidhub/bidhub/internal/store/memstore"
	_ "github.com/bidhub/bidhub/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to store", slog.String("driver", cfg.Database.Driver))

	rooms := room.NewRegistry(logger)
	seq := auction.NewSequencer(repos, rooms, cfg.Bidding.Increment(), logger, tp.TracerProvider)

	expirer := auction.NewExpirer(repos.Auctions, rooms, clk, cfg.Bidding.SweepInterval, logger, tp.TracerProvider)
	go expirer.Run(ctx)

	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "store",
			Check: repos.Ping,
		},
	)

	wsHandler := ws.NewHandler(seq, rooms, cfg.Server, logger)
	handler := httpapi.Routes(seq, repos, wsHandler, healthHandler, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting server",
			slog.Int("port", cfg.Server.Port),
			slog.String("version", version),
		)
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			serverErr <- listenErr
		}
	}()

	healthHandler.SetReady(true)
	logger.InfoContext(ctx, "bidhub is running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	healthHandler.SetReady(false)
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
