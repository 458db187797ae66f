// Package lifecycle реализует машину состояний размещений.
//
// Ядро — Engine: единственный легальный мутатор статуса run и
// единственный писатель журнала событий. Вокруг него:
//
//   - engine.go  — атомарный переход статуса с блокировкой строки
//   - factory.go — создание run и цепочек попыток
//   - ack.go     — подтверждение претензий каталога пользователем
//   - lease.go   — захват run воркером
//   - backoff.go — вычисление задержки retry
//   - store.go   — интерфейсы хранилища (Postgres или in-memory)
//
// Жизненный цикл одной попытки:
//
//	queued -> in_progress -> submitted -> awaiting_review -> live
//	            |               |
//	            v               v
//	        action_needed   needs_changes -> in_progress (после ack)
//	            |
//	            v
//	        deferred -> queued (retry по расписанию)
//
// Терминальные статусы закрывают run; продолжение линии — новый run
// через CreateRun с PreviousRunID.
package lifecycle
