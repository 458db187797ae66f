// Package repo — слой доступа к PostgreSQL.
//
// Две роли:
//
//   - store.go — транзакционная реализация lifecycle.Store:
//     все мутации runs/events/targets идут через неё под
//     SELECT ... FOR UPDATE;
//   - *_repo.go — read-side репозитории для API, воркера и sweeper'а.
//
// Используется pgx/v5 с пулом соединений.
package repo
