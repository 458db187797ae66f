// Listopad Worker — выполняет отправку листингов в каталоги.
//
// Worker:
//   - Получает queued runs из RabbitMQ (плюс polling как fallback)
//   - Захватывает lease, переводит run в in_progress
//   - Отправляет листинг через connector каталога
//   - Классифицирует исход и применяет переход статуса
//
// Workers масштабируются горизонтально: lease на уровне run
// гарантирует, что каждую попытку обрабатывает один воркер.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/listopadhq/listopad/internal/catalog"
	"github.com/listopadhq/listopad/internal/lifecycle"
	"github.com/listopadhq/listopad/internal/mq"
	"github.com/listopadhq/listopad/internal/repo"
	"github.com/listopadhq/listopad/internal/telemetry"
	"github.com/listopadhq/listopad/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting listopad-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Справочник каталогов
	registry, err := catalog.Load(catalog.PathFromEnv())
	if err != nil {
		logger.Error("failed to load directory catalog", "error", err)
		os.Exit(1)
	}

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)
	targetRepo := repo.NewTargetRepo(pool)

	// Transition engine
	engine := lifecycle.New(lifecycle.Config{
		Store:  repo.NewStore(pool),
		Logger: logger,
	})

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqConn, err = mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Создаём worker
	w := worker.New(worker.Config{
		Engine:     engine,
		RunRepo:    runRepo,
		TargetRepo: targetRepo,
		Catalog:    registry,
		Publisher:  publisher,
		Conn:       mqConn,
		Logger:     logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
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

	// Останавливаем worker
	w.Stop()
	logger.Info("listopad-worker stopped")
}
