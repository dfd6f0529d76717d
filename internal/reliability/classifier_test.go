package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	base := errors.New("upstream unavailable")

	if IsTransient(nil) {
		t.Fatal("nil error classified transient")
	}
	if IsTransient(base) {
		t.Fatal("unmarked error classified transient")
	}
	if !IsTransient(MarkTransient(base)) {
		t.Fatal("marked error not classified transient")
	}
	if !IsTransient(fmt.Errorf("generate: %w", MarkTransient(base))) {
		t.Fatal("wrapped mark not detected")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatal("deadline expiry not classified transient")
	}
	if IsTransient(context.Canceled) {
		t.Fatal("caller cancellation classified transient")
	}
}

func TestMarkTransientNil(t *testing.T) {
	if MarkTransient(nil) != nil {
		t.Fatal("MarkTransient(nil) should be nil")
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	base := errors.New("quota exhausted")
	marked := MarkTransient(base)
	if !errors.Is(marked, base) {
		t.Fatal("marked error should unwrap to the cause")
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(1, base, capDur); got != 200*time.Millisecond {
		t.Fatalf("attempt 1 = %v, want 200ms", got)
	}
	if got := ExponentialBackoff(2, base, capDur); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 400ms", got)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
