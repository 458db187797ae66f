package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/listopadhq/listopad/internal/lifecycle"
	"github.com/listopadhq/listopad/internal/mq"
	"github.com/listopadhq/listopad/internal/repo"
	"github.com/listopadhq/listopad/internal/sweeper"
	"github.com/listopadhq/listopad/internal/telemetry"
)

// Advisory lock: в каждый момент времени подметает только один инстанс.
const sweepLockKey int64 = 515151

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting listopad-sweeper")

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

	// Создаём репозитории
	runRepo := repo.NewRunRepo(pool)
	targetRepo := repo.NewTargetRepo(pool)

	// Transition engine
	engine := lifecycle.New(lifecycle.Config{
		Store:  repo.NewStore(pool),
		Logger: logger,
	})

	// RabbitMQ (опционально)
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, re-queued runs rely on worker polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	s := sweeper.New(sweeper.Config{
		Engine:     engine,
		RunRepo:    runRepo,
		TargetRepo: targetRepo,
		Publisher:  publisher,
		Logger:     logger,
	})

	cadence, err := sweeper.CadenceFromEnv()
	if err != nil {
		logger.Error("invalid sweep cadence", "error", err)
		os.Exit(1)
	}

	// sweep loop: сначала становимся лидером, потом подметаем
	go func() {
		tk := time.NewTicker(5 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", sweepLockKey)
			}
		}()

		for !hasLock {
			select {
			case <-tk.C:
				// пытаемся стать лидером
				if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", sweepLockKey).Scan(&hasLock); err != nil {
					logger.Warn("advisory lock check failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}

		logger.Info("became sweep leader")
		if err := s.RunWith(ctx, cadence); err != nil && ctx.Err() == nil {
			logger.Error("sweep loop error", "error", err)
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
	if v := os.Getenv("SWEEP_PORT"); v != "" {
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
	logger.Info("listopad-sweeper stopped")
}
