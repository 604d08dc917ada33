// Introspect - Personal Activity Capture & Analytics
// Copyright 2026 Introspect Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/introspect-app/introspect

// Command introspectd runs the activity capture daemon: it opens the
// SQLite store, starts a monitoring session, supervises the capture
// sources and flush coordinator, and serves the local read-only API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/introspect-app/introspect/internal/api"
	"github.com/introspect-app/introspect/internal/buffer"
	"github.com/introspect-app/introspect/internal/codec"
	"github.com/introspect-app/introspect/internal/config"
	"github.com/introspect-app/introspect/internal/engine"
	"github.com/introspect-app/introspect/internal/logging"
	"github.com/introspect-app/introspect/internal/store"
	"github.com/introspect-app/introspect/internal/supervisor"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().Str("version", version).Msg("Starting introspectd")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Daemon failed")
	}
}

func run(cfg *config.Config) error {
	st, err := store.Open(store.Config{Path: cfg.Data.DatabasePath()})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close store")
		}
	}()
	logging.Info().Str("path", cfg.Data.DatabasePath()).Msg("Store opened")

	var cdc *codec.Codec
	if cfg.Privacy.EncryptKeystrokes {
		cdc, err = codec.New(cfg.Privacy.Passphrase)
		if err != nil {
			return fmt.Errorf("failed to initialize keystroke encryption: %w", err)
		}
		logging.Info().Msg("Keystroke encryption enabled")
	} else {
		logging.Warn().Msg("Keystroke encryption disabled, payloads stored in plaintext")
	}

	eng := engine.New(st, engine.Config{
		Buffer: buffer.Config{
			SoftCap: cfg.Buffer.SoftCap,
			HardCap: cfg.Buffer.HardCap,
		},
		FlushInterval:  cfg.Flush.Interval,
		MaxRetries:     cfg.Flush.MaxRetries,
		RetryBackoff:   cfg.Flush.RetryBackoff,
		MaxBackoff:     cfg.Flush.MaxBackoff,
		TxTimeout:      cfg.Flush.TxTimeout,
		MoveSampleRate: cfg.Capture.MoveSampleRate,
		ExcludedApps:   cfg.Privacy.ExcludedApps,
		Codec:          cdc,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddCaptureService(engine.NewFlushService(eng))

	for _, src := range platformSources() {
		tree.AddCaptureService(engine.NewSourceService(src, eng))
		logging.Info().Str("source", src.Name()).Msg("Capture source added")
	}

	if cfg.Server.Enabled {
		handler := api.NewHandler(eng, st)
		server := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      handler.Router(),
			ReadTimeout:  cfg.Server.Timeout,
			WriteTimeout: cfg.Server.Timeout,
			IdleTimeout:  60 * time.Second,
		}
		tree.AddAPIService(api.NewServerService(server, 10*time.Second))
		logging.Info().Str("addr", server.Addr).Msg("HTTP API enabled")
	}

	treeErr := tree.ServeBackground(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-treeErr:
		if err != nil && err != context.Canceled {
			logging.Error().Err(err).Msg("Supervisor tree stopped unexpectedly")
		}
	}

	// Stop sources and services first so no new events arrive, then run the
	// final forced flush and close the session.
	cancel()
	select {
	case <-treeErr:
	case <-time.After(15 * time.Second):
		logging.Warn().Msg("Supervisor tree did not stop in time")
		if report, err := tree.UnstoppedServiceReport(); err == nil {
			for _, svc := range report {
				logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
			}
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := eng.Stop(stopCtx); err != nil {
		logging.Error().Err(err).Msg("Shutdown flush incomplete")
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
