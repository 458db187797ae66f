package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/lifecycle"
	"github.com/listopadhq/listopad/internal/mq"
	"github.com/listopadhq/listopad/internal/repo"
)

// actorID — идентификатор sweeper'а в событиях и переходах.
const actorID = "sweeper"

// Sweeper — фоновый процесс, двигающий runs по времени.
//
// Один тик выполняет три прохода:
//  1. Due retries: deferred runs с наступившим next_run_at
//     возвращаются в queued и публикуются воркерам.
//  2. Expired leases: in_progress runs с протухшим lease уходят
//     в deferred с новым retry — воркер умер посреди работы.
//  3. Action deadlines: action_needed runs с прошедшим deadline
//     завершаются в expired.
//
// Каждый переход идёт через transition engine: sweeper не трогает
// статусы напрямую. Ошибка одного run не блокирует остальные.
// В кластере работает один активный sweeper (advisory lock в main).
type Sweeper struct {
	engine     *lifecycle.Engine
	runRepo    *repo.RunRepo
	targetRepo *repo.TargetRepo
	publisher  *mq.Publisher
	logger     *slog.Logger
	batchSize  int
	now        func() time.Time
}

// Config — конфигурация Sweeper.
type Config struct {
	Engine     *lifecycle.Engine
	RunRepo    *repo.RunRepo
	TargetRepo *repo.TargetRepo
	Publisher  *mq.Publisher
	Logger     *slog.Logger
	BatchSize  int // количество runs на проход за один тик (default: 100)

	// Now — источник времени (для тестов; default: time.Now).
	Now func() time.Time
}

// New создаёт новый Sweeper.
func New(cfg Config) *Sweeper {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Sweeper{
		engine:     cfg.Engine,
		runRepo:    cfg.RunRepo,
		targetRepo: cfg.TargetRepo,
		publisher:  cfg.Publisher,
		logger:     logger,
		batchSize:  batchSize,
		now:        now,
	}
}

// Tick выполняет один тик sweeper'а.
func (s *Sweeper) Tick(ctx context.Context) error {
	now := s.now().UTC()

	retries := s.sweepDueRetries(ctx, now)
	leases := s.sweepExpiredLeases(ctx, now)
	deadlines := s.sweepActionDeadlines(ctx, now)

	if retries+leases+deadlines > 0 {
		s.logger.Info("sweeper tick completed",
			"retries_requeued", retries,
			"leases_reclaimed", leases,
			"deadlines_expired", deadlines,
		)
	}
	return nil
}

// sweepDueRetries возвращает созревшие deferred runs в очередь.
func (s *Sweeper) sweepDueRetries(ctx context.Context, now time.Time) int {
	runs, err := s.runRepo.ListDueRetries(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list due retries", "error", err)
		return 0
	}

	var requeued int
	for i := range runs {
		run := &runs[i]

		updated, err := s.engine.TransitionRunStatus(ctx, run.ID, lifecycle.TransitionRequest{
			ToStatus:      domain.StatusQueued,
			Reason:        domain.ReasonScheduledRetry,
			TriggeredBy:   domain.ActorScheduler,
			TriggeredByID: actorID,
		})
		if err != nil {
			// Конкурентный переход (пользователь отменил, admin вмешался) —
			// run уже не deferred, пропускаем.
			if lifecycle.IsInvalidTransition(err) {
				continue
			}
			s.logger.Error("failed to requeue deferred run", "run_id", run.ID, "error", err)
			continue
		}

		s.publishRunQueued(ctx, updated)
		requeued++
	}
	return requeued
}

// sweepExpiredLeases возвращает брошенные in_progress runs в deferred.
func (s *Sweeper) sweepExpiredLeases(ctx context.Context, now time.Time) int {
	runs, err := s.runRepo.ListExpiredLeases(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list expired leases", "error", err)
		return 0
	}

	var reclaimed int
	for i := range runs {
		run := &runs[i]

		_, err := s.engine.TransitionRunStatus(ctx, run.ID, lifecycle.TransitionRequest{
			ToStatus:      domain.StatusDeferred,
			Reason:        domain.ReasonLeaseExpired,
			TriggeredBy:   domain.ActorSystem,
			TriggeredByID: actorID,
			Meta: &lifecycle.TransitionMeta{
				ScheduleRetry: true,
				ClearLock:     true,
			},
		})
		if err != nil {
			if lifecycle.IsInvalidTransition(err) {
				continue
			}
			s.logger.Error("failed to reclaim expired lease", "run_id", run.ID, "error", err)
			continue
		}

		s.logger.Warn("reclaimed run from dead worker",
			"run_id", run.ID,
			"worker_id", lockedBy(run),
		)
		reclaimed++
	}
	return reclaimed
}

// sweepActionDeadlines завершает runs с просроченным действием.
func (s *Sweeper) sweepActionDeadlines(ctx context.Context, now time.Time) int {
	runs, err := s.runRepo.ListActionDeadlinesPassed(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list passed action deadlines", "error", err)
		return 0
	}

	var expired int
	for i := range runs {
		run := &runs[i]

		_, err := s.engine.TransitionRunStatus(ctx, run.ID, lifecycle.TransitionRequest{
			ToStatus:      domain.StatusExpired,
			Reason:        domain.ReasonDeadlineExpired,
			TriggeredBy:   domain.ActorSystem,
			TriggeredByID: actorID,
		})
		if err != nil {
			if lifecycle.IsInvalidTransition(err) {
				continue
			}
			s.logger.Error("failed to expire run", "run_id", run.ID, "error", err)
			continue
		}
		expired++
	}
	return expired
}

// publishRunQueued уведомляет воркеров о run в очереди.
// Сбой публикации не критичен: воркер подхватит run через polling.
func (s *Sweeper) publishRunQueued(ctx context.Context, run *domain.SubmissionRun) {
	if s.publisher == nil {
		return
	}

	slug := ""
	target, err := s.targetRepo.GetByID(ctx, run.TargetID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("failed to load target for run.queued", "run_id", run.ID, "error", err)
		}
	} else {
		slug = target.DirectorySlug
	}

	err = s.publisher.PublishRunQueued(ctx, mq.RunQueuedPayload{
		RunID:         run.ID,
		TargetID:      run.TargetID,
		DirectorySlug: slug,
		AttemptNo:     run.AttemptNo,
	})
	if err != nil {
		s.logger.Warn("failed to publish run.queued", "run_id", run.ID, "error", err)
	}
}

func lockedBy(run *domain.SubmissionRun) string {
	if run.LockedBy == nil {
		return ""
	}
	return *run.LockedBy
}
