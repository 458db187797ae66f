package lifecycle

import (
	"testing"
	"time"
)

func TestRetryDelay_ExponentialGrowth(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 80 * time.Second},
		{6, 160 * time.Second},
		{7, 300 * time.Second}, // 320s capped
		{8, 300 * time.Second},
		{20, 300 * time.Second},
	}
	for _, c := range cases {
		if got := RetryDelay(c.attempt); got != c.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestRetryDelay_ClampsInvalidAttempt(t *testing.T) {
	if got := RetryDelay(0); got != 5*time.Second {
		t.Errorf("RetryDelay(0) = %v, want base delay", got)
	}
	if got := RetryDelay(-3); got != 5*time.Second {
		t.Errorf("RetryDelay(-3) = %v, want base delay", got)
	}
}
