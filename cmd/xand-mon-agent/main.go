package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/T3chie-404/xand-mon-agent/internal/config"
	"github.com/T3chie-404/xand-mon-agent/internal/metrics"
	"github.com/T3chie-404/xand-mon-agent/internal/probe"
	"github.com/T3chie-404/xand-mon-agent/internal/push"
	"github.com/T3chie-404/xand-mon-agent/internal/scheduler"
	"github.com/T3chie-404/xand-mon-agent/internal/server"
	"github.com/T3chie-404/xand-mon-agent/internal/version"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "xand-mon-agent",
		Short:        "Node slot-lag monitoring agent",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (optional; env vars always apply)")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xand-mon-agent %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring agent",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 1. Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Info("config loaded",
		"node_name", cfg.NodeName,
		"local_rpc_port", cfg.LocalRPCPort,
		"metrics_port", cfg.MetricsPort,
		"check_interval", cfg.CheckInterval,
	)

	// 2. Build registry and prober
	registry := metrics.NewRegistry(cfg.NodeName)
	prober := probe.NewCatchup(cfg.CatchupCommand)

	// 3. Record the node version for node_info
	versionCtx, cancelVersion := context.WithTimeout(cmd.Context(), 10*time.Second)
	if v, err := prober.Version(versionCtx); err != nil {
		logger.Warn("could not determine node version", "error", err)
	} else {
		registry.SetNodeVersion(v)
		logger.Info("node version", "version", v)
	}
	cancelVersion()

	// 4. Build scheduler, with push mode if configured
	sched := scheduler.New(prober, registry, cfg.CheckInterval, cfg.ProbeTimeout, logger)
	if cfg.Push.Enabled {
		pusher := push.New(cfg.Push, cfg.NodeName, logger)
		sched.SetOnResult(func(probe.Result) {
			pusher.Notify(registry.Export())
		})
		logger.Info("push mode enabled", "url", cfg.Push.APIURL)
	}

	// 5. Build HTTP publisher
	srv := server.New(registry, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: srv.Router(),
	}

	// 6. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 7. Start probe loop
	sched.Start(ctx)
	logger.Info("scheduler started", "interval", cfg.CheckInterval)

	// 8. Start HTTP server in background; a bind failure is fatal since the
	// agent has no purpose without its publish side.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 9. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 10. Graceful shutdown
	sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a one-off catchup probe and print the result",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	prober := probe.NewCatchup(cfg.CatchupCommand)
	return executeCheck(cmd, cfg, prober)
}
