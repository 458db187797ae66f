package sweeper

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// defaultInterval — интервал тиков, когда cron-выражение не задано.
const defaultInterval = 30 * time.Second

// Cadence — расписание тиков sweeper'а.
//
// Либо фиксированный интервал (SWEEP_INTERVAL), либо cron-выражение
// (SWEEP_CRON) — cron удобен, когда тики нужно привязать к стенке
// часов (начало минуты, ночные окна каталогов).
type Cadence struct {
	interval time.Duration
	schedule cron.Schedule
}

// CadenceFromEnv строит Cadence из окружения.
// SWEEP_CRON имеет приоритет над SWEEP_INTERVAL.
func CadenceFromEnv() (Cadence, error) {
	if expr := os.Getenv("SWEEP_CRON"); expr != "" {
		return ParseCadence(expr)
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Cadence{}, fmt.Errorf("parse SWEEP_INTERVAL %q: %w", v, err)
		}
		return Cadence{interval: interval}, nil
	}
	return Cadence{interval: defaultInterval}, nil
}

// ParseCadence парсит cron-выражение в Cadence.
func ParseCadence(expr string) (Cadence, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return Cadence{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return Cadence{schedule: schedule}, nil
}

// Next возвращает время следующего тика после from.
func (c Cadence) Next(from time.Time) time.Time {
	if c.schedule != nil {
		return c.schedule.Next(from)
	}
	interval := c.interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return from.Add(interval)
}

// RunWith запускает sweeper по заданному расписанию.
// Блокирует до отмены контекста.
func (s *Sweeper) RunWith(ctx context.Context, cadence Cadence) error {
	s.logger.Info("sweeper started")

	for {
		next := cadence.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("sweeper tick failed", "error", err)
			}
		}
	}
}
