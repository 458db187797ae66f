package sweeper

import (
	"testing"
	"time"
)

// --- Cadence Tests ---

func TestParseCadence_ValidCron(t *testing.T) {
	cadence, err := ParseCadence("*/5 * * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	from := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	next := cadence.Next(from)
	want := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestParseCadence_InvalidCron(t *testing.T) {
	if _, err := ParseCadence("not a cron"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestCadence_IntervalNext(t *testing.T) {
	cadence := Cadence{interval: time.Minute}

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next := cadence.Next(from)
	if !next.Equal(from.Add(time.Minute)) {
		t.Errorf("next = %v, want from+1m", next)
	}
}

func TestCadence_ZeroFallsBackToDefault(t *testing.T) {
	var cadence Cadence

	from := time.Now()
	next := cadence.Next(from)
	if !next.Equal(from.Add(defaultInterval)) {
		t.Errorf("next = %v, want default interval", next)
	}
}

func TestCadenceFromEnv_CronWinsOverInterval(t *testing.T) {
	t.Setenv("SWEEP_CRON", "0 * * * *")
	t.Setenv("SWEEP_INTERVAL", "10s")

	cadence, err := CadenceFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cadence.schedule == nil {
		t.Error("cron expression should take precedence")
	}
}

func TestCadenceFromEnv_Interval(t *testing.T) {
	t.Setenv("SWEEP_CRON", "")
	t.Setenv("SWEEP_INTERVAL", "45s")

	cadence, err := CadenceFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cadence.interval != 45*time.Second {
		t.Errorf("interval = %v", cadence.interval)
	}
}

func TestCadenceFromEnv_BadInterval(t *testing.T) {
	t.Setenv("SWEEP_CRON", "")
	t.Setenv("SWEEP_INTERVAL", "soon")

	if _, err := CadenceFromEnv(); err == nil {
		t.Fatal("expected error for malformed interval")
	}
}
