package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/frostrpc/frost/internal/logger"
	"github.com/frostrpc/frost/pkg/admin"
	"github.com/frostrpc/frost/pkg/communicator"
	"github.com/frostrpc/frost/pkg/config"
	"github.com/frostrpc/frost/pkg/identity"
	"github.com/frostrpc/frost/pkg/metrics"
	"github.com/frostrpc/frost/pkg/servant"

	// Import prometheus metrics to register their constructors' init() funcs.
	_ "github.com/frostrpc/frost/pkg/metrics/prometheus"
)

var (
	adminAddr string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the frost-server process",
	Long: `Start the frost-server process: load configuration, bring up the
Communicator's client and server thread pools, and serve the admin object
adapter frostctl uses for introspection.

Examples:
  # Start with default config location
  frost-server start

  # Start with a custom config file
  frost-server start --config /etc/frost/config.yaml

  # Override the admin listen address
  frost-server start --admin-addr 127.0.0.1:9075`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&adminAddr, "admin-addr", "127.0.0.1:9075", "address the admin object adapter listens on")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsSink *metrics.RPCMetrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := metrics.InitRegistry()
		metricsSink = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: ":" + strconv.Itoa(cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	props := config.NewProperties(cfg)
	comm := communicator.New(communicator.Options{
		ClientThreadPool:  props.ThreadPool("client"),
		ServerThreadPool:  props.ThreadPool("server"),
		MessageSizeMax:    props.MessageSizeMax(),
		IdleTimeout:       props.ConnectionIdleTimeout(),
		InactivityTimeout: props.ConnectionInactivityTimeout(),
		RetryIntervals:    props.RetryIntervals(),
		AcceptClassCycles: props.AcceptClassCycles(),
		Metrics:           metricsSink,
	})
	if err := comm.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize communicator: %w", err)
	}

	adminAdapter, err := comm.CreateObjectAdapter("admin")
	if err != nil {
		return fmt.Errorf("failed to create admin adapter: %w", err)
	}
	adminID, err := identity.New("", admin.ServantName)
	if err != nil {
		return err
	}
	if err := adminAdapter.AddServant(servant.Current{Identity: adminID}, admin.New(comm)); err != nil {
		return fmt.Errorf("failed to register admin servant: %w", err)
	}

	ln, err := net.Listen("tcp", adminAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", adminAddr, err)
	}
	go func() {
		if err := adminAdapter.Serve(ctx, ln); err != nil && ctx.Err() == nil {
			logger.Error("admin adapter serve error", "error", err)
		}
	}()
	logger.Info("frost-server started", "admin_addr", ln.Addr().String())
	fmt.Printf("frost-server listening for admin connections on %s\n", ln.Addr().String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	signal.Stop(sigCh)
	logger.Info("shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	if err := comm.Shutdown(shutdownCtx); err != nil {
		logger.Warn("adapter shutdown error", "error", err)
	}
	cancel()
	if err := comm.Destroy(shutdownCtx); err != nil {
		logger.Warn("communicator destroy error", "error", err)
	}
	if metricsServer != nil {
		_ = metricsServer.Close()
	}
	logger.Info("frost-server stopped")
	return nil
}
