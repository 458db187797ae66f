// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - run.queued         — run ожидает воркера
//   - run.status_changed — статус run изменился
//
// Exchanges:
//   - listopad.runs   — очередь работ воркеров
//   - listopad.events — поток переходов статусов
//   - listopad.dlq    — dead letter queue
package mq
