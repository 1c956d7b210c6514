package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agenshield/skillcore/pkg/analyze"
	"github.com/agenshield/skillcore/pkg/deploy"
	"github.com/agenshield/skillcore/pkg/log"
	"github.com/agenshield/skillcore/pkg/manager"
	"github.com/agenshield/skillcore/pkg/metrics"
	"github.com/agenshield/skillcore/pkg/remote"
	"github.com/agenshield/skillcore/pkg/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the skill lifecycle daemon",
	Long: `serve starts the Manager, the Integrity Watcher, and the metrics
HTTP server, then blocks until an interrupt or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	logger := log.WithComponent("skillcored")
	logger.Info().Str("deploy_root", cfg.DeployRoot).Msg("starting skillcored")

	deployAdapters := []deploy.Adapter{deploy.NewFilesystemAdapter(cfg.DeployRoot, "")}

	var analyzeAdapters []analyze.Adapter
	analyzeAdapters = append(analyzeAdapters, analyze.NewMetadataAdapter())
	if cfg.Analyze.Endpoint != "" {
		analyzeAdapters = append(analyzeAdapters, analyze.NewRemoteAdapter(cfg.Analyze.Endpoint, cfg.AnalyzeTimeout()))
	}

	var remoteClient remote.Client
	if cfg.Remote.BaseURL != "" {
		remoteClient = remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.RemoteTimeout())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := manager.New(ctx, manager.Options{
		DatabasePath:    cfg.DatabasePath,
		BackupDir:       cfg.BackupDir,
		DeployAdapters:  deployAdapters,
		AnalyzeAdapters: analyzeAdapters,
		RemoteClient:    remoteClient,
		WatcherOptions: watcher.Options{
			DeployRoot:     cfg.DeployRoot,
			QuarantineRoot: cfg.QuarantineDir,
			Debounce:       cfg.Debounce(),
			PollInterval:   cfg.PollInterval(),
			DefaultPolicy:  cfg.Policy(),
		},
		AutoStartWatcher: cfg.AutoStartWatcher,
	})
	if err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	defer mgr.Close()

	logger.Info().Bool("watcher_started", cfg.AutoStartWatcher).Msg("manager ready")

	collector := metrics.NewCollector(mgr.Repo())
	collector.Start()
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	logger.Info().Msg("shutdown complete")
	return nil
}
