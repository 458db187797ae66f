// Package api реализует HTTP API поверх lifecycle engine.
//
// Маршруты: targets (создание пары каталог×бизнес с первым run),
// runs (чтение, журнал событий, acknowledge, retry, cancel,
// pause/resume), артефакты (загрузка и presigned скачивание),
// справочник каталогов и webhook'и каталогов.
//
// Все мутации статусов идут через transition engine; api не пишет
// в таблицы runs напрямую.
package api
