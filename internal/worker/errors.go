package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownConnector — нет коннектора для данного типа каталога.
	ErrUnknownConnector = errors.New("unknown connector type")

	// ErrSubmitRequest — запрос к коннектору не удалось построить.
	ErrSubmitRequest = errors.New("submit request failed")

	// ErrBadOutcome — коннектор вернул некорректный результат.
	ErrBadOutcome = errors.New("bad connector outcome")
)
