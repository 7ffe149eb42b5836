package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"vitals-service/internal/api"
	"vitals-service/internal/config"
	"vitals-service/internal/db"
	"vitals-service/internal/ingest"
	"vitals-service/internal/logging"
	"vitals-service/internal/notifier"
	"vitals-service/internal/stream"
	"vitals-service/internal/ws"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config load failed:", err)
	}

	// Initialize logger
	logger, err := logging.New("server")
	if err != nil {
		log.Fatal("Logger init failed:", err)
	}
	defer logger.Close()

	// Connect to DB
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("DB connect failed: %v", err)
		log.Fatal("DB connect failed:", err)
	}
	defer dbConn.Close()

	// Alert delivery: websocket hub + notifier worker pool
	hub := ws.NewHub(logger)
	notif := notifier.New(cfg, hub, logger)
	var wg sync.WaitGroup
	notif.Start(&wg)

	// Ingestion service
	svc := ingest.New(dbConn, notif, logger)

	// Kafka reading stream (optional; HTTP is the primary path)
	ctx, cancel := context.WithCancel(context.Background())
	var consumer *stream.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = stream.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Topic, cfg.Kafka.GroupID, svc, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	} else {
		logger.Infof("KAFKA_BROKER not set, reading stream consumer disabled")
	}

	// Start API server
	h := api.NewHandler(svc, dbConn, dbConn, dbConn, logger)
	r := api.NewRouter(h, hub, logger, cfg.API.BasePath)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := r.Run(cfg.API.Port); err != nil {
			logger.Errorf("API run failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("Kafka consumer close failed: %v", err)
		}
	}
	notif.Stop()
	wg.Wait()
	logger.Infof("Service stopped")
}
