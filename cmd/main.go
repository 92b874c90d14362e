package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/sdn-lb/config"
	"github.com/angeloszaimis/sdn-lb/internal/adminapi"
	"github.com/angeloszaimis/sdn-lb/internal/controller"
	"github.com/angeloszaimis/sdn-lb/internal/datapath"
	"github.com/angeloszaimis/sdn-lb/internal/httpserver"
	"github.com/angeloszaimis/sdn-lb/internal/metrics"
	"github.com/angeloszaimis/sdn-lb/internal/prober"
	"github.com/angeloszaimis/sdn-lb/internal/registry"
	"github.com/angeloszaimis/sdn-lb/internal/selector"
	"github.com/angeloszaimis/sdn-lb/pkg/logger"
)

const metricsEventBuffer = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, err := buildRegistry(cfg, log)
	if err != nil {
		log.Error("Failed to initialize server registry", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(metricsEventBuffer, log)
	collector.Start(ctx)

	sel, err := selector.New(reg, cfg.Strategy.Type)
	if err != nil {
		log.Error("Failed to create selector",
			slog.String("policy", cfg.Strategy.Type),
			slog.Any("err", err))
		os.Exit(1)
	}

	collector.Emit(metrics.Event{
		Type:      metrics.EventPolicyChanged,
		Timestamp: time.Now(),
		Algorithm: cfg.Strategy.Type,
	})

	if err := startProber(ctx, cfg, reg, log, collector); err != nil {
		log.Error("Failed to start health prober", slog.Any("err", err))
		os.Exit(1)
	}

	virtualIP := net.ParseIP(cfg.Virtual.IP)
	ctrl := controller.New(log, sel, collector, virtualIP)
	listener := datapath.NewListener(cfg.OpenFlow.Address, ctrl, log)

	api := adminapi.New(log, reg, sel, collector)
	srv, err := httpserver.New(cfg.API.Address, api.Routes())
	if err != nil {
		log.Error("Failed to create management server", slog.Any("err", err))
		os.Exit(1)
	}

	errCh := make(chan error, 2)

	go func() {
		errCh <- listener.Run(ctx)
	}()

	go func() {
		errCh <- srv.Start()
	}()

	log.Info("SDN load balancer started",
		slog.String("virtual_ip", cfg.Virtual.IP),
		slog.Int("virtual_port", cfg.Virtual.Port),
		slog.String("policy", cfg.Strategy.Type))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-errCh:
		if err != nil {
			log.Error("Error running controller", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildRegistry(cfg *config.Config, log *slog.Logger) (*registry.Registry, error) {
	hostPorts := cfg.BackendAddrs(log)

	addrs := make([]registry.Address, 0, len(hostPorts))
	for _, hp := range hostPorts {
		addrs = append(addrs, registry.Address{Host: hp.Host, Port: hp.Port})
	}

	return registry.New(addrs, log)
}

func startProber(ctx context.Context, cfg *config.Config, reg *registry.Registry, log *slog.Logger, collector *metrics.Collector) error {
	interval, err := cfg.ProbeInterval()
	if err != nil {
		return err
	}

	timeout, err := cfg.ProbeTimeout()
	if err != nil {
		return err
	}

	p := prober.New(reg, interval, timeout, log, collector)
	go p.Run(ctx)

	return nil
}
