package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New(Config{FailureThreshold: 2, Cooldown: time.Minute})
	b.now = func() time.Time { return now }

	boom := errors.New("provider down")
	fail := func(context.Context) error { return boom }

	for i := 0; i < 2; i++ {
		if err := b.Do(context.Background(), fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected provider error, got %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	called := false
	err := b.Do(context.Background(), func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Fatalf("expected fail-fast, got err=%v called=%v", err, called)
	}

	now = now.Add(time.Minute)
	if err := b.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected trial call to pass, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful trial, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New(Config{FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	boom := errors.New("boom")
	_ = b.Do(context.Background(), func(context.Context) error { return boom })

	now = now.Add(time.Second)
	_ = b.Do(context.Background(), func(context.Context) error { return boom })

	if b.State() != StateOpen {
		t.Fatalf("expected reopen, got %s", b.State())
	}
}

func TestBreakerAppliesTimeout(t *testing.T) {
	b := New(Config{Timeout: 10 * time.Millisecond})

	err := b.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
