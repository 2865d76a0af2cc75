// SPDX-License-Identifier: AGPL-3.0-or-later
// KBComm - an in-process-network key/value store with integrated pub/sub
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/go-co-op/gocron/v2"
	"github.com/kevinbotlib/kbcomm/internal/broker"
	"github.com/kevinbotlib/kbcomm/internal/config"
	"github.com/kevinbotlib/kbcomm/internal/dashboard"
	"github.com/kevinbotlib/kbcomm/internal/logging"
	"github.com/kevinbotlib/kbcomm/internal/metrics"
	"github.com/kevinbotlib/kbcomm/internal/pprof"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var openDashboard bool

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broker, and its dashboard bridge if enabled",
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&openDashboard, "open-dashboard", false, "open the dashboard bridge in a browser once it starts")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("kbcomm - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	scheduler, err := setupScheduler()
	if err != nil {
		return err
	}
	scheduler.Start()

	cleanup, err := setupTracing(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	defer func() {
		if err := cleanup(ctx); err != nil {
			slog.Error("failed to shutdown tracer", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	startBackgroundServices(cfg, registry)

	brokerServer := broker.NewServer(cfg.Broker, logger, registry)
	if err := brokerServer.Start(scheduler); err != nil {
		return fmt.Errorf("failed to start broker: %w", err)
	}

	var dashboardServer *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashboardServer = dashboard.NewServer(cfg.Dashboard, logger, brokerServer, registry)
		if err := dashboardServer.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		if openDashboard {
			url := fmt.Sprintf("http://%s:%d/", dashboardBrowserHost(cfg.Dashboard.Bind), cfg.Dashboard.Port)
			if err := browser.OpenURL(url); err != nil {
				slog.Error("failed to open browser, please open "+url+" manually", "error", err)
			}
		}
	}

	setupShutdownHandlers(ctx, scheduler, brokerServer, dashboardServer, cleanup)

	return nil
}

// dashboardBrowserHost rewrites a wildcard bind address to something a
// browser can actually dial.
func dashboardBrowserHost(bind string) string {
	if bind == "" || bind == "0.0.0.0" || bind == "::" {
		return "localhost"
	}
	return bind
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get config from context: %w", err)
	}

	cfg, err := c.LoadWithoutValidation()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

func setupScheduler() (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return scheduler, nil
}

// setupTracing initializes OpenTelemetry tracing if configured. When
// tracing is not configured it returns a no-op cleanup function.
func setupTracing(cfg *config.Config) (func(context.Context) error, error) {
	if cfg.Metrics.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	return broker.InitTracer(context.Background(), cfg.Metrics.OTLPEndpoint)
}

// startBackgroundServices starts the metrics and pprof HTTP servers.
func startBackgroundServices(cfg *config.Config, registry *prometheus.Registry) {
	go func() {
		if err := metrics.CreateMetricsServer(cfg, registry); err != nil {
			slog.Error("failed to start metrics server", "error", err)
		}
	}()
	go func() {
		if err := pprof.CreatePProfServer(cfg); err != nil {
			slog.Error("failed to start pprof server", "error", err)
		}
	}()
}

// setupShutdownHandlers blocks until SIGINT/SIGTERM/SIGQUIT/SIGHUP is
// received, then performs an orderly shutdown of the broker, the
// dashboard bridge, and the tracer.
func setupShutdownHandlers(ctx context.Context, scheduler gocron.Scheduler, brokerServer *broker.Server, dashboardServer *dashboard.Server, cleanup func(context.Context) error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	sig := <-sigCh
	slog.Error("shutting down due to signal", "signal", sig)

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.StopJobs(); err != nil {
			slog.Error("failed to stop scheduler jobs", "error", err)
		}
		if err := scheduler.Shutdown(); err != nil {
			slog.Error("failed to stop scheduler", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if dashboardServer != nil {
			if err := dashboardServer.Stop(shutdownCtx); err != nil {
				slog.Error("failed to stop dashboard", "error", err)
			}
		}
		if err := brokerServer.Stop(shutdownCtx); err != nil {
			slog.Error("failed to stop broker", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if cleanup != nil {
			if err := cleanup(shutdownCtx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
		slog.Info("all servers stopped, shutting down gracefully")
		os.Exit(0)
	case <-time.After(shutdownTimeout):
		slog.Error("shutdown timed out, forcing exit")
		os.Exit(1)
	}
}
