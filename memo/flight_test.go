package memo

import (
	"context"
	"errors"
	"testing"
)

func TestFlight_WaitObservesCompletion(t *testing.T) {
	f := newFlight[string]()

	if f.terminal() {
		t.Fatal("fresh flight is terminal")
	}

	go f.complete("done", nil)

	v, err := f.wait(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("wait = (%q, %v), want (done, nil)", v, err)
	}
	if !f.terminal() {
		t.Error("completed flight not terminal")
	}

	// Terminal outcome is stable for late waiters.
	v, err = f.wait(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("second wait = (%q, %v), want (done, nil)", v, err)
	}
}

func TestFlight_WaitHonorsCallerCancellation(t *testing.T) {
	f := newFlight[string]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("wait error = %v, want context.Canceled", err)
	}

	// The flight itself is untouched.
	if f.terminal() {
		t.Error("caller cancellation completed the flight")
	}
	f.complete("late", nil)
	if v, err := f.wait(context.Background()); err != nil || v != "late" {
		t.Fatalf("wait after completion = (%q, %v), want (late, nil)", v, err)
	}
}

func TestFlight_ErrorOutcome(t *testing.T) {
	f := newFlight[int]()
	wantErr := errors.New("boom")

	f.complete(0, wantErr)

	if _, err := f.wait(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("wait error = %v, want %v", err, wantErr)
	}
}
