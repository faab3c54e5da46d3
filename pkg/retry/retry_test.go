package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/genl-protocol/genl-go/pkg/conn"
)

func TestBackoffProgression(t *testing.T) {
	b := NewBackoffWithConfig(Config{
		Initial:    10 * time.Millisecond,
		Max:        80 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     0, // deterministic
	})

	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		80 * time.Millisecond, // capped
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("delay %d = %v, want %v", i, got, w)
		}
	}
	if b.Attempts() != len(want) {
		t.Errorf("attempts = %d, want %d", b.Attempts(), len(want))
	}

	b.Reset()
	if got := b.Next(); got != 10*time.Millisecond {
		t.Errorf("delay after reset = %v, want 10ms", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoffWithConfig(Config{
		Initial:    100 * time.Millisecond,
		Max:        100 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     0.25,
	})

	for i := 0; i < 100; i++ {
		d := b.Next()
		if d < 100*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 125ms]", d)
		}
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&conn.KernelError{Kind: conn.KindBusy, Errno: syscall.EBUSY}, true},
		{&conn.KernelError{Kind: conn.KindInterrupted, Errno: syscall.EINTR}, true},
		{&conn.KernelError{Kind: conn.KindNotFound, Errno: syscall.ENOENT}, false},
		{&conn.KernelError{Kind: conn.KindKernel, Errno: syscall.EIO}, false},
		{errors.New("plain error"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := Transient(tt.err); got != tt.want {
			t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{
		Backoff: Config{Initial: time.Millisecond, Max: time.Millisecond},
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return &conn.KernelError{Kind: conn.KindBusy, Errno: syscall.EBUSY}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := &conn.KernelError{Kind: conn.KindNotFound, Errno: syscall.ENOENT}
	err := Do(context.Background(), Options{}, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Options{
		Attempts: 3,
		Backoff:  Config{Initial: time.Millisecond, Max: time.Millisecond},
	}, func(context.Context) error {
		calls++
		return &conn.KernelError{Kind: conn.KindBusy, Errno: syscall.EBUSY}
	})
	if !errors.Is(err, syscall.EBUSY) {
		t.Fatalf("expected the last transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Options{
		Backoff: Config{Initial: time.Hour, Max: time.Hour},
	}, func(context.Context) error {
		return &conn.KernelError{Kind: conn.KindBusy, Errno: syscall.EBUSY}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
