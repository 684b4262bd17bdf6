package main

import (
	"log"

	"pricebridge/internal/api"
	"pricebridge/internal/config"
	"pricebridge/internal/database"
	"pricebridge/internal/events"
	"pricebridge/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}

	// Adapter registry and event publisher
	registry := api.NewRegistry(cfg, logger, db)
	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.WebhookTopic, logger)
	defer publisher.Close()

	// Initialize API server
	server := api.New(cfg, logger, db, registry, publisher)

	// Start server
	logger.Info("Starting API server on port " + cfg.APIPort)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
