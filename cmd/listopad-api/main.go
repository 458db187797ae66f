package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/listopadhq/listopad/internal/api"
	"github.com/listopadhq/listopad/internal/artifacts"
	"github.com/listopadhq/listopad/internal/catalog"
	"github.com/listopadhq/listopad/internal/lifecycle"
	"github.com/listopadhq/listopad/internal/mq"
	"github.com/listopadhq/listopad/internal/repo"
	"github.com/listopadhq/listopad/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listopad_api_http_requests_total",
		Help: "Total HTTP requests handled by listopad_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting listopad-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Загружаем справочник каталогов
	registry, err := catalog.Load(catalog.PathFromEnv())
	if err != nil {
		logger.Error("failed to load directory catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("directory catalog loaded", "directories", len(registry.All()))

	// Создаём репозитории
	targetRepo := repo.NewTargetRepo(pool)
	runRepo := repo.NewRunRepo(pool)
	eventRepo := repo.NewEventRepo(pool)
	artifactRepo := repo.NewArtifactRepo(pool)

	// Transition engine поверх транзакционного Store
	engine := lifecycle.New(lifecycle.Config{
		Store:  repo.NewStore(pool),
		Logger: logger,
	})

	// RabbitMQ (опционально: без него sweeper/worker подберут runs поллингом)
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, runs will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// MinIO для артефактов
	var artifactSvc *artifacts.Service
	store, err := artifacts.NewMinioFromEnv()
	if err != nil {
		logger.Warn("MinIO not available, artifact upload disabled", "error", err)
	} else {
		artifactSvc = artifacts.NewService(store, artifactRepo, artifacts.BucketFromEnv(), logger)
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Engine:       engine,
		RunRepo:      runRepo,
		TargetRepo:   targetRepo,
		EventRepo:    eventRepo,
		ArtifactRepo: artifactRepo,
		Artifacts:    artifactSvc,
		Catalog:      registry,
		Publisher:    publisher,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
