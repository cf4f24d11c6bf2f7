// StoryForge Downloader — сервис очереди скачивания.
//
// Загрузчик отвязан от агента: он получает команды постановки из
// RabbitMQ, скачивает артефакты по одному с паузой между ними и
// публикует события прогресса. Одновременно дренируется максимум
// одна очередь.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veresk/storyforge/internal/config"
	"github.com/veresk/storyforge/internal/download"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/mq"
	"github.com/veresk/storyforge/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting storyforge-downloader")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	mqConn, err := mq.NewConnection(mq.URL(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	publisher := mq.NewPublisher(mqConn, logger)
	bus := events.NewBus(publisher, logger)

	queue := download.New(download.Config{
		Dir:     cfg.Downloader.Dir,
		Emitter: bus,
		Logger:  logger,
	})

	handler := download.NewCommandHandler(queue, bus, logger)
	consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
		Queue:   string(mq.QueueDownloaderCommands),
		Handler: handler.Handle,
	})

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("consumer stopped", "error", err)
			cancel()
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("DOWNLOADER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	consumer.Stop()
	queue.Wait()
	logger.Info("storyforge-downloader stopped")
}
