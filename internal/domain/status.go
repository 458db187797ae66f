package domain

// Status — статус попытки размещения (run) в каталоге.
//
// Статусы делятся на три семейства:
//
//   - pre-submission: queued, deferred, paused, in_progress
//   - pending-resolution: action_needed, submitted, awaiting_review, approved, needs_changes
//   - resolved/terminal: live, rejected, failed, blocked, disabled, expired, already_listed, cancelled
//
// Строковые значения — wire-контракт: они один в один совпадают
// с CHECK constraint в БД. Добавление нового статуса требует
// одновременного изменения и здесь, и в схеме.
type Status string

const (
	// StatusQueued — run создан и ожидает воркера.
	StatusQueued Status = "queued"

	// StatusDeferred — run отложен (retry по расписанию, rate limit и т.п.).
	StatusDeferred Status = "deferred"

	// StatusPaused — run приостановлен пользователем или системой квот.
	StatusPaused Status = "paused"

	// StatusInProgress — воркер выполняет отправку.
	StatusInProgress Status = "in_progress"

	// StatusActionNeeded — требуется действие человека (captcha, документы и т.п.).
	StatusActionNeeded Status = "action_needed"

	// StatusSubmitted — заявка отправлена в каталог, ждём реакции.
	StatusSubmitted Status = "submitted"

	// StatusAwaitingReview — каталог взял заявку на модерацию.
	StatusAwaitingReview Status = "awaiting_review"

	// StatusApproved — каталог одобрил заявку, листинг ещё не опубликован.
	StatusApproved Status = "approved"

	// StatusNeedsChanges — каталог вернул заявку на доработку.
	StatusNeedsChanges Status = "needs_changes"

	// StatusLive — листинг опубликован и подтверждён доказательством.
	StatusLive Status = "live"

	// StatusRejected — каталог окончательно отклонил заявку.
	StatusRejected Status = "rejected"

	// StatusFailed — попытка завершилась ошибкой (после всех retry).
	StatusFailed Status = "failed"

	// StatusBlocked — каталог заблокировал отправки для этого бизнеса.
	StatusBlocked Status = "blocked"

	// StatusDisabled — пара каталог×бизнес отключена (подписка, настройки).
	StatusDisabled Status = "disabled"

	// StatusExpired — run истёк (deadline действия или review прошли).
	StatusExpired Status = "expired"

	// StatusAlreadyListed — листинг уже существует в каталоге.
	StatusAlreadyListed Status = "already_listed"

	// StatusCancelled — run отменён пользователем или админом.
	StatusCancelled Status = "cancelled"
)

// statusMeta — метаданные статуса: терминальность и допустимые переходы.
type statusMeta struct {
	terminal   bool
	nextStates []Status
}

// statusTable — полная таблица переходов.
//
// Переход (from, to) допустим тогда и только тогда, когда to входит
// в nextStates[from]. Из терминальных статусов разрешён только
// явный whitelist "reopen"-рёбер (failed → queued и т.п.).
var statusTable = map[Status]statusMeta{
	StatusQueued: {nextStates: []Status{
		StatusInProgress, StatusDeferred, StatusPaused,
		StatusCancelled, StatusBlocked, StatusDisabled, StatusAlreadyListed,
	}},
	StatusDeferred: {nextStates: []Status{
		StatusQueued, StatusInProgress, StatusPaused,
		StatusCancelled, StatusExpired, StatusBlocked, StatusDisabled,
	}},
	StatusPaused: {nextStates: []Status{
		StatusQueued, StatusCancelled, StatusDisabled, StatusExpired,
	}},
	StatusInProgress: {nextStates: []Status{
		StatusActionNeeded, StatusSubmitted, StatusDeferred, StatusLive,
		StatusFailed, StatusBlocked, StatusAlreadyListed, StatusCancelled,
	}},
	StatusActionNeeded: {nextStates: []Status{
		StatusInProgress, StatusSubmitted, StatusExpired, StatusCancelled, StatusFailed,
	}},
	StatusSubmitted: {nextStates: []Status{
		StatusAwaitingReview, StatusApproved, StatusLive, StatusRejected,
		StatusNeedsChanges, StatusActionNeeded, StatusFailed, StatusExpired,
	}},
	StatusAwaitingReview: {nextStates: []Status{
		StatusApproved, StatusRejected, StatusNeedsChanges,
		StatusLive, StatusExpired, StatusFailed,
	}},
	StatusApproved: {nextStates: []Status{
		StatusLive, StatusNeedsChanges, StatusFailed, StatusExpired,
	}},
	StatusNeedsChanges: {nextStates: []Status{
		StatusInProgress, StatusRejected, StatusCancelled, StatusExpired,
	}},

	// Терминальные статусы. Исходящие рёбра — whitelist для reopen.
	StatusLive:          {terminal: true},
	StatusRejected:      {terminal: true, nextStates: []Status{StatusInProgress}},
	StatusFailed:        {terminal: true, nextStates: []Status{StatusQueued}},
	StatusBlocked:       {terminal: true, nextStates: []Status{StatusQueued}},
	StatusDisabled:      {terminal: true, nextStates: []Status{StatusQueued}},
	StatusExpired:       {terminal: true, nextStates: []Status{StatusQueued}},
	StatusAlreadyListed: {terminal: true},
	StatusCancelled:     {terminal: true, nextStates: []Status{StatusQueued}},
}

// Valid возвращает true, если статус входит в таксономию.
func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// IsTerminal возвращает true, если статус финальный.
// Reopen-рёбра из терминальных статусов терминальности не отменяют.
func (s Status) IsTerminal() bool {
	return statusTable[s].terminal
}

// AllowedNext возвращает список допустимых следующих статусов.
// Для неизвестного статуса возвращает nil.
func (s Status) AllowedNext() []Status {
	meta, ok := statusTable[s]
	if !ok {
		return nil
	}
	out := make([]Status, len(meta.nextStates))
	copy(out, meta.nextStates)
	return out
}

// IsValidTransition проверяет переход по таблице.
func IsValidTransition(from, to Status) bool {
	meta, ok := statusTable[from]
	if !ok || !to.Valid() {
		return false
	}
	for _, candidate := range meta.nextStates {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllStatuses возвращает все статусы таксономии.
// Порядок стабилен (для тестов и выгрузок).
func AllStatuses() []Status {
	return []Status{
		StatusQueued, StatusDeferred, StatusPaused, StatusInProgress,
		StatusActionNeeded, StatusSubmitted, StatusAwaitingReview,
		StatusApproved, StatusNeedsChanges,
		StatusLive, StatusRejected, StatusFailed, StatusBlocked,
		StatusDisabled, StatusExpired, StatusAlreadyListed, StatusCancelled,
	}
}
