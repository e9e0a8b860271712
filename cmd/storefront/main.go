package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

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

	log.Info("Starting checkout service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open stores", zap.Error(err))
	}
	defer stores.Close(ctx)

	services, err := app.NewServices(cfg, stores, actor.NewActorSystem(), log)
	if err != nil {
		log.Fatal("Failed to start services", zap.Error(err))
	}
	defer services.Hub.Stop()

	server := grpc.NewCheckoutServer(services.Checkout, stores.Products, log)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr()); err != nil {
			serverErr <- err
		}
	}()

	// Connect to etcd for service discovery
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	var sd *discovery.ServiceDiscovery
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd)
		if err != nil {
			log.Fatal("Failed to connect to etcd", zap.Error(err))
		}
		defer sd.Close()

		if err := sd.Register(ctx, instance); err != nil {
			log.Fatal("Failed to register service", zap.Error(err))
		}
		log.Info("Service registered in etcd",
			zap.String("name", instance.Name),
			zap.String("address", instance.Addr()))
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("Server error", zap.Error(err))
	}

	// Deregister service
	if sd != nil {
		if err := sd.Deregister(ctx, instance); err != nil {
			log.Error("Failed to deregister service", zap.Error(err))
		}
	}
	server.Stop()

	log.Info("Service stopped")
}
