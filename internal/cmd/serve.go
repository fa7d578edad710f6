package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "dockmate/internal/api/http"
	"dockmate/internal/api/http/logger"
	apimonitor "dockmate/internal/api/http/monitor"
	"dockmate/internal/core/service"
	"dockmate/internal/env"
	applog "dockmate/internal/logger"
	"dockmate/internal/monitor"
	"dockmate/internal/progress"
	"dockmate/internal/runtime/docker"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command
func NewServeCmd(opts *globalOptions) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Override the listen address")

	return cmd
}

func serve(ctx context.Context, cfg *env.Config) error {
	applog.Init(cfg.LogLevel, cfg.LogFormat)

	// == bootstrap ==
	state, err := openLocalState(cfg, true)
	if err != nil {
		return err
	}
	defer state.Close()

	runtimeHandler, err := docker.NewDockerHandler(cfg.DockerHost)
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer runtimeHandler.Close()

	go func() {
		if err := state.catalog.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			applog.Warnf("template overlay watch stopped: %v", err)
		}
	}()

	// == lifecycle ==
	hub := progress.NewHub()
	manager := service.NewLifecycleManager(
		service.Config{
			VolumeBaseDir:  cfg.VolumeBaseDir,
			ServerIP:       cfg.ServerIP,
			ExternalDomain: cfg.ExternalDomain,
			ExternalScheme: cfg.ExternalScheme,
			DefaultNetwork: cfg.DefaultNetwork,
		},
		state.catalog,
		state.registry,
		state.allocator,
		runtimeHandler,
		hub,
	)

	// == monitoring ==
	var stateReporter apimonitor.StateReporter
	if cfg.Monitor.Interval > 0 {
		serviceMonitor, closeMetrics, err := startMonitor(ctx, cfg, state, runtimeHandler)
		if err != nil {
			return err
		}
		defer closeMetrics()
		stateReporter = serviceMonitor
	}

	// == rest api ==
	auditLogger, auditCloser, err := logger.NewJsonLineLogger(cfg.AuditLogPath)
	if err != nil {
		return err
	}
	defer auditCloser.Close()

	hostname, _ := os.Hostname()
	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: httpapi.NewApiRouter(httpapi.RouterConfig{
			ServiceHandler: manager,
			Subscriber:     hub,
			StateReporter:  stateReporter,
			AuditLogger:    auditLogger,
			Node:           hostname,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		applog.Infof("management server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	applog.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func startMonitor(ctx context.Context, cfg *env.Config, state *localState, containers monitor.ContainerReader) (*monitor.ServiceMonitor, func(), error) {
	var (
		metrics monitor.RecordWriter
		closer  = func() {}
	)
	if cfg.Monitor.MetricsLogPath != "" {
		writer, err := monitor.NewMetricsWriter(cfg.Monitor.MetricsLogPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open metrics log: %w", err)
		}
		metrics = writer
		closer = func() { _ = writer.Close() }
	}

	watchPath := ""
	if cfg.Registry.Backend == env.RegistryBackendJson {
		watchPath = cfg.Registry.Path
	}
	serviceMonitor := monitor.NewServiceMonitor(monitor.Config{
		Interval:     cfg.Monitor.Interval,
		MetricsEvery: cfg.Monitor.MetricsEvery,
		WatchPath:    watchPath,
	}, state.registry, containers, metrics)

	applog.Infof("service monitoring every %s", cfg.Monitor.Interval)
	go serviceMonitor.Start(ctx)
	return serviceMonitor, closer, nil
}
