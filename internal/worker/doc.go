// Package worker реализует обработку queued runs.
//
// Worker потребляет сообщения run.queued из RabbitMQ (плюс polling
// fallback по БД), захватывает lease на run, отправляет заявку
// в каталог через коннектор и переводит run в статус по результату.
//
// Коннекторы регистрируются в Registry по типу из конфигурации
// каталога; из коробки доступен HTTPConnector для каталогов с HTTP API.
// Результат отправки (Outcome) — закрытая классификация: submitted,
// already_listed, action_needed, deferred, failed. Временные сбои
// уходят в deferred с retry по exponential backoff; после исчерпания
// попыток линия завершается в failed.
package worker
