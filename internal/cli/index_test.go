package cli

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 7*time.Minute, "2h7m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbedProgress_ReplaysEarlySteps(t *testing.T) {
	p := &embedProgress{}
	p.step(1, 2)
	p.step(2, 2)

	if p.done != 2 || p.bar != nil {
		t.Fatalf("expected 2 buffered steps, got done=%d", p.done)
	}

	p.start(0)
	if p.bar != nil {
		t.Error("no bar expected when nothing was queued")
	}
}

func TestKeyState(t *testing.T) {
	if keyState("") != "not set" || keyState("sk") != "set" {
		t.Error("unexpected key state labels")
	}
}
