package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/internal/app"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting API Gateway",
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host),
		zap.String("storage", cfg.Storage.Driver))

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open stores", zap.Error(err))
	}
	defer stores.Close(ctx)

	system := actor.NewActorSystem()
	services, err := app.NewServices(cfg, stores, system, log)
	if err != nil {
		log.Fatal("Failed to start services", zap.Error(err))
	}
	defer services.Hub.Stop()

	var checkout gateway.Checkout = services.Checkout
	if cfg.Gateway.CheckoutService != "" {
		// Setup service discovery
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			defer sd.Close()
		}

		clients := grpc.NewClientManager(cfg, log, sd)
		if err := clients.Connect(ctx); err != nil {
			log.Fatal("Failed to connect to checkout service", zap.Error(err))
		}
		defer clients.Close()
		checkout = clients.CheckoutClient()
		log.Info("Using remote checkout service", zap.String("service", cfg.Gateway.CheckoutService))
	}

	// Create gateway
	gw := gateway.NewGateway(cfg, log, gateway.Services{
		Catalog:       services.Catalog,
		Carts:         services.Carts,
		Checkout:      checkout,
		Promos:        services.Promos,
		Notifications: services.Hub,
	})
	gw.SetupRoutes()

	// Start gateway in goroutine
	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	log.Info("Gateway started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-gwErr:
		log.Error("Gateway error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Gateway shutdown failed", zap.Error(err))
	}

	log.Info("Gateway stopped")
}
