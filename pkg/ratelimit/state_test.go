package ratelimit

import (
	"testing"
	"time"
)

func TestCooldownState_Active(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		until         time.Time
		wantActive    bool
		wantRemaining time.Duration
	}{
		{"never triggered", time.Time{}, false, 0},
		{"in future", now.Add(30 * time.Second), true, 30 * time.Second},
		{"exactly now", now, false, 0},
		{"passed", now.Add(-time.Second), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := CooldownState{Until: tt.until}
			if got := s.Active(now); got != tt.wantActive {
				t.Errorf("Active() = %v, want %v", got, tt.wantActive)
			}
			if got := s.Remaining(now); got != tt.wantRemaining {
				t.Errorf("Remaining() = %v, want %v", got, tt.wantRemaining)
			}
		})
	}
}
