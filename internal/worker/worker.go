package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/catalog"
	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/lifecycle"
	"github.com/listopadhq/listopad/internal/mq"
	"github.com/listopadhq/listopad/internal/repo"
	"github.com/listopadhq/listopad/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 5
	defaultLeaseTTL     = 2 * time.Minute
	defaultMaxAttempts  = 5
)

// Worker выполняет queued runs.
//
// Worker — stateless компонент системы, который:
//   - Получает runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет queued runs в БД (polling fallback)
//   - Захватывает lease на run, переводит его в in_progress
//   - Отправляет заявку через коннектор каталога
//   - Переводит run в статус по результату отправки; временные сбои
//     уходят в deferred с запланированным retry
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди; lease гарантирует, что run
// обрабатывает ровно один воркер.
type Worker struct {
	// ID — идентификатор воркера, владелец lease.
	id string

	engine     *lifecycle.Engine
	runRepo    *repo.RunRepo
	targetRepo *repo.TargetRepo

	// Справочник каталогов и реестр коннекторов.
	catalog  *catalog.Registry
	registry *Registry

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection
	consumer  *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int
	leaseTTL     time.Duration
	maxAttempts  int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// ID — идентификатор воркера (default: hostname-pid).
	ID string

	// Engine — transition engine (обязательно).
	Engine *lifecycle.Engine

	// Repositories
	RunRepo    *repo.RunRepo
	TargetRepo *repo.TargetRepo

	// Catalog — справочник каталогов (обязательно).
	Catalog *catalog.Registry

	// Registry — реестр коннекторов (опционально; если nil —
	// используется NewRegistry()).
	Registry *Registry

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 50)

	// LeaseTTL — время жизни lease (default: 2m).
	LeaseTTL time.Duration

	// MaxAttempts — попыток на линию до failed (default: 5).
	MaxAttempts int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	id := cfg.ID
	if id == "" {
		host, _ := os.Hostname()
		id = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Worker{
		id:           id,
		engine:       cfg.Engine,
		runRepo:      cfg.RunRepo,
		targetRepo:   cfg.TargetRepo,
		catalog:      cfg.Catalog,
		registry:     registry,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		leaseTTL:     leaseTTL,
		maxAttempts:  maxAttempts,
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для runs.queued
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"worker_id", w.id,
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"lease_ttl", w.leaseTTL,
	)

	// Без RabbitMQ работаем в polling-only режиме.
	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsQueued),
			Handler:  w.handleRunQueued,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// handleRunQueued — обработчик сообщения run.queued.
func (w *Worker) handleRunQueued(ctx context.Context, msg *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunQueuedPayload](&msg.Message)
	if err != nil {
		w.logger.Error("invalid run.queued payload", "error", err)
		// Payload не распарсится и при повторе — в DLQ
		return msg.Nack(false)
	}

	if err := w.processRun(ctx, payload.RunID); err != nil {
		return err
	}
	return msg.Ack()
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs созданные пока были выключены)
	select {
	case <-ctx.Done():
		return
	default:
		w.poll(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	runs, err := w.runRepo.ListQueued(ctx, time.Now().UTC(), w.batchSize)
	if err != nil {
		w.logger.Error("failed to list queued runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	w.logger.Debug("poll found queued runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		if err := w.processRun(ctx, run.ID); err != nil {
			w.logger.Error("failed to process run from poll",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
}

// processRun обрабатывает один run: lease, переход в in_progress,
// отправка через коннектор, переход по результату.
func (w *Worker) processRun(ctx context.Context, runID uuid.UUID) error {
	run, err := w.engine.AcquireLease(ctx, runID, w.id, w.leaseTTL)
	if err != nil {
		// Run забрал другой воркер или он уже не в queued —
		// нормальная гонка, не ошибка обработки.
		if errors.Is(err, lifecycle.ErrLeaseHeld) || errors.Is(err, lifecycle.ErrRunNotClaimable) {
			w.logger.Debug("run not claimable, skipping", "run_id", runID, "reason", err)
			return nil
		}
		return fmt.Errorf("acquire lease: %w", err)
	}

	run, err = w.engine.TransitionRunStatus(ctx, runID, lifecycle.TransitionRequest{
		ToStatus:      domain.StatusInProgress,
		Reason:        domain.ReasonWorkerStarted,
		TriggeredBy:   domain.ActorWorker,
		TriggeredByID: w.id,
	})
	if err != nil {
		// Acknowledgement gate: run в queued после rejected/needs_changes
		// без подтверждения пользователя. Lease отпускать не нужно —
		// протухнет сам, а до подтверждения run всё равно не стартует.
		if errors.Is(err, lifecycle.ErrChangesNotAcknowledged) {
			w.logger.Warn("run awaits user acknowledgement, skipping", "run_id", runID)
			return nil
		}
		return fmt.Errorf("start run: %w", err)
	}

	outcome := w.submit(ctx, run)

	req := w.outcomeRequest(run, outcome)
	updated, err := w.engine.TransitionRunStatus(ctx, runID, req)
	if err != nil {
		return fmt.Errorf("apply outcome %s: %w", outcome.Kind, err)
	}

	w.publishStatusChanged(ctx, run, updated)

	w.logger.Info("run processed",
		"run_id", runID,
		"outcome", outcome.Kind,
		"status", updated.Status,
		"attempt_no", updated.AttemptNo,
	)
	return nil
}

// submit выполняет отправку через коннектор каталога.
// Любой сбой конфигурации или коннектора сворачивается в Outcome:
// run не должен застрять в in_progress.
func (w *Worker) submit(ctx context.Context, run *domain.SubmissionRun) *Outcome {
	target, err := w.targetRepo.GetByID(ctx, run.TargetID)
	if err != nil {
		return failedOutcome(domain.ErrTypeConnectorBug, "load target: "+err.Error())
	}

	dir, err := w.catalog.Get(target.DirectorySlug)
	if err != nil {
		return failedOutcome(domain.ErrTypeConnectorBug, "unknown directory: "+target.DirectorySlug)
	}

	connector, err := w.registry.Get(dir.Connector)
	if err != nil {
		return failedOutcome(domain.ErrTypeConnectorBug, err.Error())
	}

	started := time.Now()
	outcome, err := connector.Submit(ctx, &SubmitRequest{
		Run:       run,
		Target:    target,
		Directory: dir,
	})
	telemetry.ConnectorDuration.WithLabelValues(dir.Slug).Observe(time.Since(started).Seconds())
	if err != nil {
		return failedOutcome(domain.ErrTypeConnectorBug, err.Error())
	}
	return outcome
}

// outcomeRequest строит переход статуса по результату отправки.
//
// Чистое отображение без I/O; deferred при исчерпанных попытках
// превращается в failed. Каждый переход снимает lease — обработка
// воркером на этом run закончена.
func (w *Worker) outcomeRequest(run *domain.SubmissionRun, outcome *Outcome) lifecycle.TransitionRequest {
	req := lifecycle.TransitionRequest{
		TriggeredBy:   domain.ActorWorker,
		TriggeredByID: w.id,
		Meta: &lifecycle.TransitionMeta{
			ClearLock:            true,
			ExternalSubmissionID: outcome.ExternalSubmissionID,
		},
	}

	switch outcome.Kind {
	case OutcomeSubmitted:
		req.ToStatus = domain.StatusSubmitted
		req.Reason = domain.ReasonSubmittedOK

	case OutcomeAlreadyListed:
		req.ToStatus = domain.StatusAlreadyListed
		req.Reason = domain.ReasonAlreadyListedFound

	case OutcomeActionNeeded:
		req.ToStatus = domain.StatusActionNeeded
		req.Meta.ActionNeeded = outcome.ActionNeeded

	case OutcomeDeferred:
		if run.AttemptNo >= w.maxAttempts {
			req.ToStatus = domain.StatusFailed
			req.Meta.Error = outcome.Error
			break
		}
		req.ToStatus = domain.StatusDeferred
		req.Meta.Error = outcome.Error
		req.Meta.ScheduleRetry = true
		req.Meta.RetryDelay = outcome.RetryAfter

	case OutcomeFailed:
		if outcome.Error != nil && outcome.Error.Type.Retryable() && run.AttemptNo < w.maxAttempts {
			req.ToStatus = domain.StatusDeferred
			req.Meta.Error = outcome.Error
			req.Meta.ScheduleRetry = true
			break
		}
		req.ToStatus = domain.StatusFailed
		req.Meta.Error = outcome.Error

	default:
		req.ToStatus = domain.StatusFailed
		req.Meta.Error = &domain.LastErrorInfo{
			Type:    domain.ErrTypeConnectorBug,
			Message: fmt.Sprintf("unexpected outcome kind %q", outcome.Kind),
		}
	}

	return req
}

// publishStatusChanged уведомляет подписчиков о переходе.
// Сбой публикации не откатывает переход: события в БД — источник
// правды, сообщение — только нотификация.
func (w *Worker) publishStatusChanged(ctx context.Context, before, after *domain.SubmissionRun) {
	if w.publisher == nil {
		return
	}
	err := w.publisher.PublishStatusChanged(ctx, mq.StatusChangedPayload{
		RunID:    after.ID,
		TargetID: after.TargetID,
		From:     before.Status,
		To:       after.Status,
		Reason:   after.StatusReason,
	})
	if err != nil {
		w.logger.Warn("failed to publish status change",
			"run_id", after.ID, "error", err)
	}
}

func failedOutcome(errType domain.ErrorType, message string) *Outcome {
	return &Outcome{
		Kind: OutcomeFailed,
		Error: &domain.LastErrorInfo{
			Type:    errType,
			Message: message,
		},
	}
}
