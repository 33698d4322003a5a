// Copyright 2025 Complyd Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the Complyd server application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/complyd/complyd/internal/config"
	"github.com/complyd/complyd/internal/ledger"
	"github.com/complyd/complyd/internal/logging"
	"github.com/complyd/complyd/internal/retention"
	"github.com/complyd/complyd/internal/server"
	"github.com/complyd/complyd/internal/version"
)

const (
	// shutdownTimeout bounds graceful HTTP shutdown
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, logger := initializeConfigAndLogger()
	defer func() {
		_ = logger.Sync() // Ignore sync errors on exit
	}()

	logStartupInfo(logger, cfg)

	components := initializeComponents(cfg, logger)

	httpServer := server.NewServer(&server.Config{
		Address:      cfg.Server.Address,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSEnabled:   cfg.Server.TLSEnabled,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}, logger.Logger)
	httpServer.RegisterRoutes(server.NewHandlers(
		logger.Logger,
		components.auditLedger,
		components.signer,
		components.policyStore,
		components.engine,
	))

	stopRetention := startRetentionLoop(ctx, cfg, logger, components.engine)
	defer stopRetention()

	startAndShutdownServer(httpServer, logger)
}

// appComponents holds all initialized application components
type appComponents struct {
	auditLedger *ledger.Ledger
	signer      *ledger.Signer
	policyStore *retention.Store
	engine      *retention.Engine
}

// initializeConfigAndLogger loads configuration and initializes logger
func initializeConfigAndLogger() (*config.Config, *logging.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer - acceptable for configuration errors
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	return cfg, logger
}

// logStartupInfo logs server startup information
func logStartupInfo(logger *logging.Logger, cfg *config.Config) {
	info := version.Info()
	logger.Info("Starting complyd-server",
		zap.String("version", info["version"]),
		zap.String("commit", info["commit"]),
		zap.String("date", info["date"]),
		zap.String("address", cfg.Server.Address),
		zap.Int("port", cfg.Server.Port),
	)
}

// initializeComponents constructs the ledger and retention engine with
// explicit dependency injection; nothing here is a process-wide singleton.
func initializeComponents(cfg *config.Config, logger *logging.Logger) *appComponents {
	if !cfg.Ledger.Enabled {
		// Without an appendable ledger no durability guarantee can be
		// honored; refusing to start is the only honest behavior
		logger.Fatal("Ledger is disabled; refusing to start")
	}

	auditLedger, err := ledger.New(ledger.Config{
		BaseDir:              cfg.Ledger.BaseDir,
		FilePrefix:           cfg.Ledger.FilePrefix,
		RedactionMaxLen:      cfg.Ledger.RedactionMaxLen,
		DefaultRetentionDays: cfg.Ledger.RetentionYears * 365,
	}, logger.Logger)
	if err != nil {
		logger.Fatal("Failed to initialize ledger", zap.Error(err))
	}

	signer, err := ledger.NewSigner()
	if err != nil {
		logger.Fatal("Failed to initialize checkpoint signer", zap.Error(err))
	}

	policyStore, err := retention.NewStore(cfg.Retention.PolicyPath)
	if err != nil {
		logger.Fatal("Failed to initialize policy store", zap.Error(err))
	}

	runRecords, err := retention.NewRunRecords(cfg.Retention.RunsPath)
	if err != nil {
		logger.Fatal("Failed to initialize run records", zap.Error(err))
	}

	resolver, err := retention.ParseLocations(cfg.Retention.Locations)
	if err != nil {
		logger.Fatal("Failed to parse retention locations", zap.Error(err))
	}

	engine := retention.NewEngine(
		policyStore,
		runRecords,
		resolver,
		cfg.Retention.ArchiveRoot,
		auditLedger,
		logger.Logger,
	)

	return &appComponents{
		auditLedger: auditLedger,
		signer:      signer,
		policyStore: policyStore,
		engine:      engine,
	}
}

// startRetentionLoop runs due policies on the configured cadence. A zero
// interval disables the loop; policies can still be run via the API.
func startRetentionLoop(
	ctx context.Context,
	cfg *config.Config,
	logger *logging.Logger,
	engine *retention.Engine,
) func() {
	if cfg.Retention.Interval <= 0 {
		logger.Info("Retention loop disabled")
		return func() {}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Retention.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				results := engine.RunDuePolicies(loopCtx)
				if len(results) > 0 {
					logger.Info("Retention run completed", zap.Int("results", len(results)))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// startAndShutdownServer starts the server and handles graceful shutdown
func startAndShutdownServer(httpServer *server.Server, logger *logging.Logger) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("HTTP server failed", zap.Error(err))
	case sig := <-sigCh:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down cleanly", zap.Error(err))
	}
}
