// Package sweeper реализует фоновые проходы по времени.
//
// Sweeper возвращает созревшие deferred runs в очередь, отбирает
// runs у мёртвых воркеров (протухший lease) и завершает runs
// с просроченным deadline действия. Все переходы идут через
// transition engine.
//
// Расписание тиков — Cadence: фиксированный интервал или
// cron-выражение из окружения.
package sweeper
