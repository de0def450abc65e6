package reminder

import (
	"errors"
	"testing"
	"time"
)

func TestParseDelay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		token string
		want  int64
		err   error
	}{
		{token: "10m", want: 10},
		{token: "1m", want: 1},
		{token: " 5m ", want: 5},
		{token: "10x", err: ErrInvalidFormat},
		{token: "10", err: ErrInvalidFormat},
		{token: "m", err: ErrInvalidFormat},
		{token: "0m", err: ErrInvalidFormat},
		{token: "-5m", err: ErrInvalidFormat},
		{token: "+5m", err: ErrInvalidFormat},
		{token: "abcm", err: ErrInvalidFormat},
		{token: "1.5m", err: ErrInvalidFormat},
		{token: "10h", err: ErrInvalidFormat},
		{token: "99999999999999999999m", err: ErrInvalidFormat},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseDelay(tt.token)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("ParseDelay(%q) err = %v, want %v", tt.token, err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDelay(%q) error: %v", tt.token, err)
			}
			if got != tt.want {
				t.Fatalf("ParseDelay(%q) = %d, want %d", tt.token, got, tt.want)
			}
		})
	}
}

func TestParseRemindArgs(t *testing.T) {
	t.Parallel()
	req, err := ParseRemindArgs([]string{"10m", "Take", "a", "break"})
	if err != nil {
		t.Fatalf("ParseRemindArgs error: %v", err)
	}
	if req.Minutes != 10 || req.Message != "Take a break" {
		t.Fatalf("got %+v", req)
	}
	if req.Delay() != 10*time.Minute {
		t.Fatalf("Delay = %v", req.Delay())
	}

	if _, err := ParseRemindArgs(nil); !errors.Is(err, ErrMissingArguments) {
		t.Fatalf("no args: err = %v", err)
	}
	if _, err := ParseRemindArgs([]string{"10m"}); !errors.Is(err, ErrMissingArguments) {
		t.Fatalf("no message: err = %v", err)
	}
	if _, err := ParseRemindArgs([]string{"10m", "  "}); !errors.Is(err, ErrMissingArguments) {
		t.Fatalf("blank message: err = %v", err)
	}
	if _, err := ParseRemindArgs([]string{"10x", "Take a break"}); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("bad delay: err = %v", err)
	}
}

func TestParseTaskArgs(t *testing.T) {
	t.Parallel()
	task, err := ParseTaskArgs([]string{"Finish", "project"})
	if err != nil || task != "Finish project" {
		t.Fatalf("ParseTaskArgs = %q, %v", task, err)
	}
	if _, err := ParseTaskArgs(nil); !errors.Is(err, ErrMissingArguments) {
		t.Fatalf("empty: err = %v", err)
	}
}
