// StoryForge Agent — исполнитель генерационного прогона.
//
// Агент:
//   - Держит сессию WebDriver с внешним генерационным интерфейсом
//   - Получает команды управления из RabbitMQ
//   - Прогоняет последовательность промптов с прикреплением референса
//     и сцеплением результата предыдущего шага
//   - Публикует события прогресса в fanout-обменник
//
// Агент один: состоянием прогона владеет только он.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veresk/storyforge/internal/config"
	"github.com/veresk/storyforge/internal/controller"
	"github.com/veresk/storyforge/internal/events"
	"github.com/veresk/storyforge/internal/mq"
	"github.com/veresk/storyforge/internal/page"
	"github.com/veresk/storyforge/internal/steps"
	"github.com/veresk/storyforge/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting storyforge-agent")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// RabbitMQ — без брокера агенту нечем управлять
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

	// WebDriver-сессия с целевым интерфейсом
	driver := page.NewWebDriver(cfg.Agent.WebDriverURL)
	if err := driver.Start(ctx, cfg.Agent.TargetURL); err != nil {
		logger.Error("failed to open webdriver session", "error", err)
		os.Exit(1)
	}
	defer driver.Close(context.Background())
	logger.Info("webdriver session opened", "target", cfg.Agent.TargetURL)

	executor := steps.New(steps.Config{
		Driver:         driver,
		Locators:       cfg.Agent.Locators,
		Emitter:        bus,
		Logger:         logger,
		AffordanceWait: cfg.AffordanceWait(),
		PollInterval:   cfg.PollInterval(),
	})

	ctrl := controller.New(controller.Config{
		Runner:  executor,
		Emitter: bus,
		Logger:  logger,
	})

	handler := controller.NewCommandHandler(ctrl, logger)
	consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
		Queue:   string(mq.QueueAgentCommands),
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

	port := ":8081"
	if v := os.Getenv("AGENT_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	consumer.Stop()
	ctrl.Stop()
	ctrl.Wait()
	logger.Info("storyforge-agent stopped")
}
