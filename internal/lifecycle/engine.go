package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/listopadhq/listopad/internal/domain"
	"github.com/listopadhq/listopad/internal/telemetry"
)

// Engine — transition engine: единственный легальный мутатор статуса run.
//
// Каждый переход выполняется как одна атомарная единица работы:
//   - статическая валидация входа (до обращения к хранилищу)
//   - эксклюзивная блокировка строки run
//   - повторная проверка перехода по таблице на заблокированном статусе
//   - precondition-проверки (артефакт для live, acknowledgement для retry)
//   - построение и запись набора полей
//   - ровно одно каноническое событие status_change
//   - post-transition: синхронизация проекции target, дополнительные события
//
// Engine stateless: всё состояние в Store. Тесты подставляют
// in-memory Store вместо Postgres.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Config — конфигурация Engine.
type Config struct {
	// Store — хранилище (обязательно).
	Store Store

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger

	// Now — источник времени (для тестов; default: time.Now).
	Now func() time.Time
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:  cfg.Store,
		logger: logger,
		now:    now,
	}
}

// TransitionRequest — запрос на переход статуса.
type TransitionRequest struct {
	// ToStatus — целевой статус (обязательно, из таксономии).
	ToStatus domain.Status

	// Reason — причина перехода. Если пустая, engine выводит её
	// из метаданных (тип действия или тип ошибки), когда это возможно.
	Reason domain.StatusReason

	// TriggeredBy — кто инициировал переход (обязательно).
	TriggeredBy domain.Actor

	// TriggeredByID — идентификатор инициатора.
	TriggeredByID string

	// Meta — дополнительные данные перехода.
	Meta *TransitionMeta
}

// TransitionMeta — дополнительные данные перехода.
type TransitionMeta struct {
	// ActionNeeded — обязательно при переходе в action_needed.
	ActionNeeded *domain.ActionNeededInfo

	// Error — обязательно при переходе в failed; допустимо для deferred.
	Error *domain.LastErrorInfo

	// ScheduleRetry — запланировать retry при переходе в deferred.
	// Время выбирается в порядке приоритета: NextRunAt, RetryDelay,
	// вычисление по номеру попытки.
	ScheduleRetry bool
	NextRunAt     *time.Time
	RetryDelay    time.Duration

	// ClearLock — атомарно занулить все три поля lease вместе
	// с записью статуса.
	ClearLock bool

	// Внешний трекинг каталога.
	ExternalSubmissionID string
	RawStatus            string
	RawStatusMessage     string
}

// TransitionRunStatus выполняет переход в собственной транзакции.
func (e *Engine) TransitionRunStatus(ctx context.Context, runID uuid.UUID, req TransitionRequest) (*domain.SubmissionRun, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	var updated *domain.SubmissionRun
	err := e.store.InTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		run, err := e.applyTransition(ctx, uow, runID, req)
		if err != nil {
			return err
		}
		updated = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TransitionRunStatusIn выполняет переход внутри транзакции вызывающего.
// Коммит и откат остаются за вызывающим: переход можно скомпоновать
// с другими записями в один атомарный коммит.
func (e *Engine) TransitionRunStatusIn(ctx context.Context, uow UnitOfWork, runID uuid.UUID, req TransitionRequest) (*domain.SubmissionRun, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}
	return e.applyTransition(ctx, uow, runID, req)
}

// validateRequest — статическая валидация до обращения к хранилищу.
// Любая ошибка здесь означает, что ни одной записи не произошло.
func (e *Engine) validateRequest(req TransitionRequest) error {
	if !req.ToStatus.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, req.ToStatus)
	}
	if req.Reason != "" && !req.Reason.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownReason, req.Reason)
	}
	if !req.TriggeredBy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownActor, req.TriggeredBy)
	}

	meta := req.Meta

	if req.ToStatus == domain.StatusActionNeeded {
		if meta == nil || meta.ActionNeeded == nil {
			return ErrMissingActionInfo
		}
		if !meta.ActionNeeded.Type.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownActionType, meta.ActionNeeded.Type)
		}
	}

	if req.ToStatus == domain.StatusFailed {
		if meta == nil || meta.Error == nil {
			return ErrMissingErrorType
		}
	}

	// Тип ошибки, если передан, обязан быть из таксономии
	// (в том числе для deferred).
	if meta != nil && meta.Error != nil && !meta.Error.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownErrorType, meta.Error.Type)
	}

	return nil
}

// applyTransition — ядро перехода. Выполняется под транзакцией.
func (e *Engine) applyTransition(ctx context.Context, uow UnitOfWork, runID uuid.UUID, req TransitionRequest) (*domain.SubmissionRun, error) {
	now := e.now().UTC()

	// Блокировка строки сериализует конкурентные переходы:
	// проигравший увидит уже обновлённый статус и срежется
	// на проверке таблицы.
	run, err := uow.GetRunForUpdate(ctx, runID)
	if err != nil {
		return nil, err
	}

	from := run.Status
	to := req.ToStatus

	if !domain.IsValidTransition(from, to) {
		telemetry.TransitionsRejected.WithLabelValues("invalid_transition").Inc()
		return nil, &InvalidTransitionError{From: from, To: to, Allowed: from.AllowedNext()}
	}

	if err := e.checkPreconditions(ctx, uow, run, to); err != nil {
		telemetry.TransitionsRejected.WithLabelValues("precondition").Inc()
		return nil, err
	}

	upd, retry := e.buildUpdate(run, req, now)

	if err := uow.UpdateRun(ctx, runID, upd); err != nil {
		return nil, fmt.Errorf("update run: %w", err)
	}

	if err := e.emitStatusChange(ctx, uow, run, req, upd, now); err != nil {
		return nil, err
	}

	if err := e.postTransition(ctx, uow, run, req, upd, retry, now); err != nil {
		return nil, err
	}

	updated, err := uow.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("reload run: %w", err)
	}

	telemetry.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	e.logger.Info("run status changed",
		"run_id", runID,
		"from", from,
		"to", to,
		"reason", upd.StatusReason,
		"triggered_by", req.TriggeredBy,
	)

	return updated, nil
}

// checkPreconditions — transition-specific проверки между проверкой
// таблицы и построением обновления.
func (e *Engine) checkPreconditions(ctx context.Context, uow UnitOfWork, run *domain.SubmissionRun, to domain.Status) error {
	// "live" — публичное утверждение о реальности. Без доказательства
	// переход запрещён, это жёсткая ошибка, а не предупреждение.
	if to == domain.StatusLive {
		has, err := uow.HasArtifact(ctx, run.ID, domain.ArtifactLiveVerification)
		if err != nil {
			return fmt.Errorf("check live verification artifact: %w", err)
		}
		if !has {
			return ErrVerificationMissing
		}
	}

	// Retry после претензий каталога требует явного подтверждения
	// человеком — иначе молча повторяем против нерешённой жалобы.
	if to == domain.StatusInProgress &&
		(run.Status == domain.StatusNeedsChanges || run.Status == domain.StatusRejected) &&
		!run.ChangesAcknowledged {
		return ErrChangesNotAcknowledged
	}

	return nil
}

// retryPlan — результат планирования retry (для события retry_scheduled).
type retryPlan struct {
	nextRunAt time.Time
	delay     time.Duration
	attemptNo int
}

// buildUpdate собирает набор полей для записи.
func (e *Engine) buildUpdate(run *domain.SubmissionRun, req TransitionRequest, now time.Time) (RunUpdate, *retryPlan) {
	to := req.ToStatus
	meta := req.Meta

	upd := RunUpdate{
		Status:          &to,
		StatusChangedAt: &now,
	}

	// Причина: явная, иначе выведенная из метаданных, иначе NULL.
	if reason := e.resolveReason(req); reason != "" {
		upd.StatusReason = &reason
	} else {
		upd.ClearReason = true
	}

	// Вход в in_progress: первый старт ставит started_at без инкремента.
	// Любой повторный вход (из deferred напрямую или из queued после
	// requeue) начинает новую попытку.
	if to == domain.StatusInProgress {
		if run.StartedAt == nil {
			upd.StartedAt = &now
		} else {
			attempt := run.AttemptNo + 1
			upd.AttemptNo = &attempt
			upd.StartedAt = &now
		}
		upd.ClearNextRunAt = true
	}

	// Возврат в очередь сбрасывает расписание retry.
	if to == domain.StatusQueued {
		upd.ClearNextRunAt = true
	}

	if meta != nil && meta.ActionNeeded != nil {
		upd.ActionNeeded = meta.ActionNeeded
	} else if run.ActionNeeded != nil && run.Status == domain.StatusActionNeeded {
		// Уходим из action_needed — требование больше не актуально.
		upd.ClearActionNeeded = true
	}

	if meta != nil && meta.Error != nil {
		upd.LastError = meta.Error
	}

	var retry *retryPlan
	if to == domain.StatusDeferred && meta != nil {
		retry = e.planRetry(run, meta, now)
		if retry != nil {
			upd.NextRunAt = &retry.nextRunAt
		}
	}

	if meta != nil && meta.ClearLock {
		upd.ClearLock = true
	}

	if meta != nil {
		if meta.ExternalSubmissionID != "" {
			upd.ExternalSubmissionID = &meta.ExternalSubmissionID
		}
		if meta.RawStatus != "" {
			upd.RawStatus = &meta.RawStatus
		}
		if meta.RawStatusMessage != "" {
			upd.RawStatusMessage = &meta.RawStatusMessage
		}
	}

	if to.IsTerminal() {
		upd.CompletedAt = &now
	}

	return upd, retry
}

// resolveReason выбирает причину перехода: явная из запроса,
// иначе выведенная из типа действия или типа ошибки.
func (e *Engine) resolveReason(req TransitionRequest) domain.StatusReason {
	if req.Reason != "" {
		return req.Reason
	}
	if req.Meta == nil {
		return ""
	}
	if req.ToStatus == domain.StatusActionNeeded && req.Meta.ActionNeeded != nil {
		return req.Meta.ActionNeeded.Type.Reason()
	}
	if req.Meta.Error != nil {
		return req.Meta.Error.Type.Reason()
	}
	return ""
}

// planRetry вычисляет время следующего запуска.
// Приоритет: явный timestamp, явная задержка, вычисление по попытке.
func (e *Engine) planRetry(run *domain.SubmissionRun, meta *TransitionMeta, now time.Time) *retryPlan {
	if !meta.ScheduleRetry && meta.NextRunAt == nil && meta.RetryDelay <= 0 {
		return nil
	}

	attempt := run.AttemptNo
	if attempt < 1 {
		attempt = 1
	}

	switch {
	case meta.NextRunAt != nil:
		next := meta.NextRunAt.UTC()
		return &retryPlan{nextRunAt: next, delay: next.Sub(now), attemptNo: attempt}
	case meta.RetryDelay > 0:
		return &retryPlan{nextRunAt: now.Add(meta.RetryDelay), delay: meta.RetryDelay, attemptNo: attempt}
	default:
		delay := RetryDelay(attempt)
		return &retryPlan{nextRunAt: now.Add(delay), delay: delay, attemptNo: attempt}
	}
}

// emitStatusChange пишет каноническое событие перехода.
// Payload несёт редуцированное подмножество meta: детали действия,
// детали ошибки, внешний идентификатор.
func (e *Engine) emitStatusChange(ctx context.Context, uow UnitOfWork, run *domain.SubmissionRun, req TransitionRequest, upd RunUpdate, now time.Time) error {
	from := run.Status
	to := req.ToStatus

	data := domain.StatusChangeData{
		From:   from,
		To:     to,
		Reason: upd.StatusReason,
	}
	if req.Meta != nil {
		data.ActionNeeded = req.Meta.ActionNeeded
		data.Error = req.Meta.Error
		data.ExternalSubmissionID = req.Meta.ExternalSubmissionID
	}

	event := &domain.SubmissionEvent{
		ID:            uuid.New(),
		RunID:         run.ID,
		TargetID:      run.TargetID,
		Type:          domain.EventStatusChange,
		FromStatus:    &from,
		ToStatus:      &to,
		StatusReason:  upd.StatusReason,
		TriggeredBy:   req.TriggeredBy,
		TriggeredByID: req.TriggeredByID,
		Data:          domain.EventData{StatusChange: &data},
		CreatedAt:     now,
	}

	if err := uow.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("insert status_change event: %w", err)
	}
	return nil
}

// postTransition — шаг после записи run и канонического события:
// дополнительные события и синхронизация проекции target.
func (e *Engine) postTransition(ctx context.Context, uow UnitOfWork, run *domain.SubmissionRun, req TransitionRequest, upd RunUpdate, retry *retryPlan, now time.Time) error {
	to := req.ToStatus

	// Дополнительное событие: требуется действие человека.
	if to == domain.StatusActionNeeded && req.Meta != nil && req.Meta.ActionNeeded != nil {
		info := req.Meta.ActionNeeded
		event := &domain.SubmissionEvent{
			ID:            uuid.New(),
			RunID:         run.ID,
			TargetID:      run.TargetID,
			Type:          domain.EventActionRequired,
			TriggeredBy:   req.TriggeredBy,
			TriggeredByID: req.TriggeredByID,
			Data: domain.EventData{ActionRequired: &domain.ActionRequiredData{
				Type:     info.Type,
				URL:      info.URL,
				Deadline: info.Deadline,
			}},
			CreatedAt: now,
		}
		if err := uow.InsertEvent(ctx, event); err != nil {
			return fmt.Errorf("insert action_required event: %w", err)
		}
	}

	// Дополнительное событие: запланирован retry.
	if retry != nil {
		event := &domain.SubmissionEvent{
			ID:            uuid.New(),
			RunID:         run.ID,
			TargetID:      run.TargetID,
			Type:          domain.EventRetryScheduled,
			TriggeredBy:   req.TriggeredBy,
			TriggeredByID: req.TriggeredByID,
			Data: domain.EventData{RetryScheduled: &domain.RetryScheduledData{
				AttemptNo: retry.attemptNo,
				NextRunAt: retry.nextRunAt,
				DelayMs:   retry.delay.Milliseconds(),
			}},
			CreatedAt: now,
		}
		if err := uow.InsertEvent(ctx, event); err != nil {
			return fmt.Errorf("insert retry_scheduled event: %w", err)
		}
		telemetry.RetriesScheduled.Inc()
	}

	// Дополнительное событие: lease воркера протух.
	if req.Reason == domain.ReasonLeaseExpired && run.LockedBy != nil {
		event := &domain.SubmissionEvent{
			ID:            uuid.New(),
			RunID:         run.ID,
			TargetID:      run.TargetID,
			Type:          domain.EventLeaseExpired,
			TriggeredBy:   req.TriggeredBy,
			TriggeredByID: req.TriggeredByID,
			Data: domain.EventData{LeaseExpired: &domain.LeaseExpiredData{
				WorkerID:  *run.LockedBy,
				ExpiredAt: now,
			}},
			CreatedAt: now,
		}
		if err := uow.InsertEvent(ctx, event); err != nil {
			return fmt.Errorf("insert lease_expired event: %w", err)
		}
	}

	// Дополнительное событие: lease снята штатно вместе с переходом.
	// Протухшая lease фиксируется событием lease_expired, не этим.
	if req.Meta != nil && req.Meta.ClearLock && run.LockedBy != nil &&
		req.Reason != domain.ReasonLeaseExpired {
		event := &domain.SubmissionEvent{
			ID:            uuid.New(),
			RunID:         run.ID,
			TargetID:      run.TargetID,
			Type:          domain.EventLockReleased,
			TriggeredBy:   req.TriggeredBy,
			TriggeredByID: req.TriggeredByID,
			Data: domain.EventData{LockReleased: &domain.LockReleasedData{
				WorkerID: *run.LockedBy,
			}},
			CreatedAt: now,
		}
		if err := uow.InsertEvent(ctx, event); err != nil {
			return fmt.Errorf("insert lock_released event: %w", err)
		}
	}

	// Дополнительное событие: каталог прислал сырой статус.
	if req.Meta != nil && req.Meta.RawStatus != "" {
		event := &domain.SubmissionEvent{
			ID:            uuid.New(),
			RunID:         run.ID,
			TargetID:      run.TargetID,
			Type:          domain.EventExternalStatus,
			TriggeredBy:   req.TriggeredBy,
			TriggeredByID: req.TriggeredByID,
			Data: domain.EventData{ExternalStatus: &domain.ExternalStatusData{
				RawStatus:        req.Meta.RawStatus,
				RawStatusMessage: req.Meta.RawStatusMessage,
				MappedStatus:     to,
			}},
			CreatedAt: now,
		}
		if err := uow.InsertEvent(ctx, event); err != nil {
			return fmt.Errorf("insert external_status event: %w", err)
		}
	}

	return e.syncTarget(ctx, uow, run, to, now)
}

// syncTarget поддерживает денормализованную проекцию target.
//
// Проекция обновляется только если переходит текущий run target'а:
// поздний webhook по старому run линии не должен затирать статус.
func (e *Engine) syncTarget(ctx context.Context, uow UnitOfWork, run *domain.SubmissionRun, to domain.Status, now time.Time) error {
	target, err := uow.GetTarget(ctx, run.TargetID)
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}

	if target.CurrentRunID != nil && *target.CurrentRunID != run.ID {
		return nil
	}

	runID := run.ID
	tupd := TargetUpdate{
		CurrentStatus: &to,
		CurrentRunID:  &runID,
	}
	if to == domain.StatusLive {
		tupd.LiveVerifiedAt = &now
	}

	if err := uow.UpdateTargetCurrent(ctx, run.TargetID, tupd); err != nil {
		return fmt.Errorf("sync target projection: %w", err)
	}
	return nil
}
