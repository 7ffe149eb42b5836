package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vitals-service/internal/config"
	"vitals-service/internal/device"
	"vitals-service/internal/logging"
)

func main() {
	cfg, err := config.LoadDevice()
	if err != nil {
		log.Fatal("Config load failed:", err)
	}

	logger, err := logging.New("device")
	if err != nil {
		log.Fatal("Logger init failed:", err)
	}
	defer logger.Close()

	uploader := device.NewUploader(cfg, logger)
	agent := device.NewAgent(cfg, device.NewSimulatedSensor(), uploader, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		cancel()
	}()

	agent.Run(ctx)
}
