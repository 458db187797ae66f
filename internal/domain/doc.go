// Package domain содержит модель данных жизненного цикла размещений.
//
// Здесь живут:
//   - status.go  — таксономия статусов и таблица переходов
//   - reason.go  — закрытый словарь причин переходов
//   - action.go  — типы требуемых действий и их маппинг на причины
//   - errtype.go — типы ошибок и их маппинг на причины
//   - actor.go   — словарь инициаторов (worker, user, admin, ...)
//   - run.go     — SubmissionRun, одна попытка размещения
//   - target.go  — SubmissionTarget, пара каталог×бизнес
//   - event.go   — журнал событий с типизированными payload'ами
//   - artifact.go — метаданные доказательств
//
// Все перечисления — wire-контракт с CHECK constraint'ами БД:
// значения должны совпадать байт в байт.
package domain
