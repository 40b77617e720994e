package throttle

import (
	"testing"
	"time"
)

func TestOnRateLimited(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		after time.Duration
		want  time.Time
	}{
		{"server wait", 100 * time.Second, now.Add(100 * time.Second)},
		{"zero", 0, now},
		{"negative clamped", -5 * time.Second, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OnRateLimited(now, tt.after); !got.Equal(tt.want) {
				t.Errorf("OnRateLimited() = %v, want %v", got, tt.want)
			}
		})
	}
}
