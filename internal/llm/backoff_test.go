package llm

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		retry int
		hint  time.Duration
		want  time.Duration
	}{
		{0, 0, 6 * time.Second},
		{1, 0, 12 * time.Second},
		{2, 0, 24 * time.Second},
		{3, 0, 30 * time.Second},
		{10, 0, 30 * time.Second},
		{0, 20 * time.Second, 20 * time.Second},
		{0, time.Minute, 30 * time.Second},
		{1, time.Second, 12 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.retry, tt.hint); got != tt.want {
			t.Errorf("Delay(%d, %v) = %v, want %v", tt.retry, tt.hint, got, tt.want)
		}
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepContext(ctx, time.Hour); err == nil {
		t.Error("Expected error from cancelled context")
	}
}
