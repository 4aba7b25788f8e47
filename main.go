package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/coveridge/tiercache/cachekey"
	"github.com/coveridge/tiercache/config"
	"github.com/coveridge/tiercache/engine"
	"github.com/coveridge/tiercache/monitoring"
	"github.com/coveridge/tiercache/server"
	"github.com/coveridge/tiercache/strategy"
	"github.com/coveridge/tiercache/tier"
	"github.com/coveridge/tiercache/utils"
)

func main() {
	logger := utils.Must(zap.NewProduction())
	defer logger.Sync()
	sugar := logger.Sugar()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.LoadConfig(*configPath, sugar)
	if err != nil {
		sugar.Fatalw("Failed to load config", "error", err)
	}

	warmingInterval, optimizeInterval, operationTimeout, err := cfg.Intervals()
	if err != nil {
		sugar.Fatalw("Invalid config", "error", err)
	}

	var remote tier.Driver
	if cfg.ValkeyEndpoint != "" {
		valkeyClient, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: []string{cfg.ValkeyEndpoint},
		})
		if err != nil {
			sugar.Fatalw("Failed to create Valkey client", "error", err)
		}
		defer valkeyClient.Close()
		remote = tier.NewValkeyDriver(valkeyClient)
	} else {
		sugar.Warnw("No valkey endpoint configured, durable tier disabled")
	}

	monitor, err := monitoring.NewCacheMonitor(cfg.Monitoring, sugar)
	if err != nil {
		sugar.Fatalw("Failed to create cache monitor", "error", err)
	}

	registry := strategy.NewRegistry(sugar)
	strategy.RegisterBuiltins(registry, strategy.BuiltinDeps{
		Remote:          remote,
		FastTierEntries: cfg.FastTierEntries,
	})

	drivers := strategy.Drivers{Remote: remote}
	for category, declared := range cfg.Strategies {
		built, err := strategy.Build(declared, drivers)
		if err != nil {
			sugar.Fatalw("Invalid strategy in config", "category", category, "error", err)
		}
		registry.Register(cachekey.Category(category), built)
	}

	cacheEngine := engine.New(registry, sugar, engine.Options{
		Monitor:          monitor,
		OperationTimeout: operationTimeout,
		WarmingInterval:  warmingInterval,
		OptimizeInterval: optimizeInterval,
		TrackerCapacity:  cfg.TrackerCapacity,
	})
	defer cacheEngine.Stop()

	adminServer := server.NewAdminServer(cacheEngine, registry, drivers, monitor, sugar)

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownSignal
		sugar.Infow("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := adminServer.Shutdown(ctx); err != nil {
			sugar.Fatalw("Server forced to shutdown", "error", err)
		}
	}()

	if err := adminServer.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		sugar.Fatalw("Failed to start server", "error", err)
	}

	sugar.Infow("Server exited gracefully")
}
