// StoryForge Scheduler — повторные запуски сохранённых сессий
// по cron-расписанию.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veresk/storyforge/internal/config"
	"github.com/veresk/storyforge/internal/mq"
	"github.com/veresk/storyforge/internal/repo"
	"github.com/veresk/storyforge/internal/scheduler"
	"github.com/veresk/storyforge/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting storyforge-scheduler")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	entries := make([]scheduler.Entry, 0, len(cfg.Scheduler.Entries))
	for _, raw := range cfg.Scheduler.Entries {
		entry, err := scheduler.ParseEntry(raw.SessionID, raw.Cron)
		if err != nil {
			logger.Error("invalid schedule entry", "error", err)
			os.Exit(1)
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		logger.Error("no schedule entries configured")
		os.Exit(1)
	}

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	sessionRepo := repo.NewSessionRepo(pool)

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

	sched, err := scheduler.New(scheduler.Config{
		Sessions:  sessionRepo,
		Publisher: publisher,
		Logger:    logger,
		Entries:   entries,
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	sched.Start()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("SCHEDULER_PORT"); v != "" {
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

	sched.Stop()
	logger.Info("storyforge-scheduler stopped")
}
