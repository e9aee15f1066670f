package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beacon-checkin/beacon-checkin-server/internal/adapter"
	"github.com/beacon-checkin/beacon-checkin-server/internal/api"
	"github.com/beacon-checkin/beacon-checkin-server/internal/campaign"
	"github.com/beacon-checkin/beacon-checkin-server/internal/config"
	"github.com/beacon-checkin/beacon-checkin-server/internal/integration"
	"github.com/beacon-checkin/beacon-checkin-server/internal/scan"
	"github.com/beacon-checkin/beacon-checkin-server/internal/storage"
)

func main() {
	var configPath = flag.String("config", "config/checkin-scanner.yml", "path to configuration file")
	var validateOnly = flag.Bool("validate", false, "validate configuration and exit")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if *validateOnly {
		fmt.Println("configuration OK")
		return
	}

	log.Info().
		Str("config_path", *configPath).
		Str("device", cfg.Scanner.Device).
		Msg("Beacon check-in scanner starting")

	store, err := storage.NewPostgresStore(cfg.Database.DSN, storage.PostgresOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.ReconnectWait(cfg.NATS.ReconnectInterval),
		nats.MaxReconnects(cfg.NATS.MaxReconnects))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	ble := newAdapter(cfg)

	dispatcher := scan.NewDispatcher()
	defer dispatcher.Close()

	evaluator := campaign.NewEvaluator()

	session := scan.NewSession(ble, dispatcher, evaluator, scan.Options{
		DebounceCooldown: cfg.Scanner.DebounceCooldown(),
		RestartInterval:  cfg.Scanner.ScanRestartInterval(),
		RelaxedDecoding:  cfg.Scanner.RelaxedFallbackDecoding,
	})
	defer session.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	forwarder := integration.NewForwarder(nc, store, dispatcher)
	go func() {
		if err := forwarder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Detection forwarder exited")
		}
	}()

	if cfg.Scanner.AutoStart {
		if err := autoStart(ctx, store, session); err != nil {
			log.Error().Err(err).Msg("Auto-start failed, scanner stays idle")
		}
	}

	server := api.NewRESTServer(cfg, store, session, evaluator)
	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	go func() {
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("REST API server failed")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down")
	}

	session.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("REST API shutdown failed")
	}

	log.Info().Msg("Beacon check-in scanner stopped")
}

// newAdapter selects the radio backend. The "fake" device runs the full
// pipeline without Bluetooth hardware, for development and CI.
func newAdapter(cfg *config.Config) adapter.Adapter {
	if cfg.Scanner.Device == "fake" {
		log.Warn().Msg("Using fake adapter, no radio hardware will be touched")
		return adapter.NewFake(true)
	}
	return adapter.NewBLE(cfg.Scanner.Device)
}

// autoStart loads the registry and starts scanning on boot.
func autoStart(ctx context.Context, store storage.Store, session *scan.Session) error {
	registry, err := api.LoadRegistry(ctx, store)
	if err != nil {
		return err
	}

	if err := session.Start(registry); err != nil {
		return err
	}

	log.Info().
		Int("beacons", len(registry.Beacons)).
		Msg("Scan session auto-started")
	return nil
}
