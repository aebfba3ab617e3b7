package detach

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunner_RunsAndWaits(t *testing.T) {
	r := NewRunner(time.Second)
	var ran atomic.Int32

	for i := 0; i < 5; i++ {
		r.Go("task", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	r.Wait()

	if got := ran.Load(); got != 5 {
		t.Errorf("ran = %d, want 5", got)
	}
}

func TestRunner_ErrorDoesNotPropagate(t *testing.T) {
	r := NewRunner(time.Second)
	r.Go("failing", func(ctx context.Context) error {
		return errors.New("boom")
	})
	r.Wait()
}

func TestRunner_PanicCaptured(t *testing.T) {
	r := NewRunner(time.Second)
	r.Go("panicking", func(ctx context.Context) error {
		panic("boom")
	})
	// Wait must return; an uncaptured panic would crash the test binary.
	r.Wait()
}

func TestRunner_ContextBounded(t *testing.T) {
	r := NewRunner(20 * time.Millisecond)
	done := make(chan error, 1)
	r.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	r.Wait()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("ctx error = %v, want deadline exceeded", err)
		}
	default:
		t.Fatal("task context never expired")
	}
}
