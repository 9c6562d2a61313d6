package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/persistence"
	"github.com/wfunc/roomserver/server"
	"github.com/wfunc/roomserver/services"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the key/value store backend
	store, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer store.Close()
	logger.Log.Infof("Store backend %q ready.", cfg.Store.Backend)

	registry := services.NewRegistry(store)

	// Initialize Game Server
	gameServer, err := server.NewGameServer(cfg, registry)
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Log.Info("Shutdown signal received.")
		gameServer.Shutdown()
	}()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func openStore(cfg *config.Config) (persistence.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		return persistence.NewPostgreSQL(
			cfg.Store.Postgres.Host,
			cfg.Store.Postgres.Port,
			cfg.Store.Postgres.User,
			cfg.Store.Postgres.Password,
			cfg.Store.Postgres.DBName,
		)
	case "gorm":
		return persistence.NewGormStore(
			cfg.Store.Postgres.Host,
			cfg.Store.Postgres.Port,
			cfg.Store.Postgres.User,
			cfg.Store.Postgres.Password,
			cfg.Store.Postgres.DBName,
		)
	default:
		return persistence.NewRedisStore(
			cfg.Store.Redis.Address,
			cfg.Store.Redis.Password,
			cfg.Store.Redis.DB,
		), nil
	}
}
