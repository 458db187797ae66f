package lifecycle

import "time"

// Константы политики retry.
const (
	// retryBaseDelay — задержка перед второй попыткой.
	retryBaseDelay = 5 * time.Second

	// retryMultiplier — множитель экспоненциального роста.
	retryMultiplier = 2

	// retryMaxDelay — потолок задержки.
	retryMaxDelay = 300 * time.Second
)

// RetryDelay вычисляет задержку retry для номера попытки.
//
//	delay = min(base * multiplier^(attemptNo-1), max)
//
// Чистая функция без I/O. Используется engine'ом, когда вызывающий
// запросил scheduleRetry без явного nextRunAt/retryDelay.
func RetryDelay(attemptNo int) time.Duration {
	if attemptNo < 1 {
		attemptNo = 1
	}

	delay := retryBaseDelay
	for i := 1; i < attemptNo; i++ {
		delay *= retryMultiplier
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}

	if delay > retryMaxDelay {
		return retryMaxDelay
	}
	return delay
}
