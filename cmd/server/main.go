package main

import (
	"cli2api/internal/config"
	logpkg "cli2api/internal/log"
	"cli2api/internal/server"
	"cli2api/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	dotenvLoaded := godotenv.Load() == nil

	logger := logpkg.CreateLogger()
	defer func() {
		if appLog, ok := logger.(*logpkg.AppLogger); ok {
			_ = appLog.Close()
		}
	}()

	if !dotenvLoaded {
		logger.Debug("No .env file, reading configuration from the process environment")
	}

	cfg, err := config.LoadServerConfigFromEnv(logger)
	if err != nil {
		logger.Fatal("Failed to load server configuration: %v", err)
	}

	storageInstance, err := storage.InitStorage(logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() { _ = storageInstance.Close() }()
	cfg.Storage = storageInstance
	cfg.Logger = logger

	// Wire the provider registry here so a bad providers.json stops
	// startup with a readable message instead of surfacing on the
	// first request.
	providers, err := config.LoadProviders(cfg.ProvidersConfigPath, logger)
	if err != nil {
		logger.Fatal("Failed to load provider registry from %s: %v", cfg.ProvidersConfigPath, err)
	}
	if len(providers) == 0 {
		logger.Warn("No provider registry at %s, using the built-in claude-code provider", cfg.ProvidersConfigPath)
	}
	for _, pc := range providers {
		logger.Info("Registered provider %s (command %s, timeout %s, %d mapped models)",
			pc.Name, pc.Command, pc.Timeout, len(pc.ModelMapping))
	}
	cfg.Providers = providers

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server: %v", err)
	}
	defer func() { _ = srv.Close() }()

	logger.Info("Starting server on port %s", cfg.Port)
	if err := srv.Run(); err != nil {
		logger.Fatal("Server error: %v", err)
	}
}
