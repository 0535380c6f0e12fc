package async

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spawnforge/spawncache/errs"
)

func TestNewPoolRejectsZeroWorkers(t *testing.T) {
	if _, err := NewPool(0, 4); err == nil {
		t.Fatal("expected error for zero workers")
	}
}

func TestSubmitExecutesTask(t *testing.T) {
	p, err := NewPool(2, 8)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	var ran atomic.Int32
	done := make(chan struct{})
	err = p.Submit(context.Background(), func(context.Context) error {
		ran.Add(1)
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	if ran.Load() != 1 {
		t.Fatalf("expected exactly one run, got %d", ran.Load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestSubmitBlocksUntilQueueDrains(t *testing.T) {
	p, err := NewPool(1, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	block := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-block
		return nil
	}); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	// The worker is now parked on the blocker, so the queue is empty.
	<-started

	if err := p.Submit(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("queue-filling Submit failed: %v", err)
	}

	var ran atomic.Int32
	submitted := make(chan error, 1)
	go func() {
		submitted <- p.Submit(context.Background(), func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}()

	// With the worker parked and the queue full, the submission must wait.
	select {
	case err := <-submitted:
		t.Fatalf("Submit returned %v while the queue was saturated", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case err := <-submitted:
		if err != nil {
			t.Fatalf("Submit failed after the queue drained: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not unblock after the queue drained")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if ran.Load() != 1 {
		t.Fatalf("expected the blocked submission to run, got %d runs", ran.Load())
	}
}

func TestSubmitHonorsContextWhileSaturated(t *testing.T) {
	p, err := NewPool(1, 0)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	if err := p.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-block
		return nil
	}); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Submit(ctx, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected Submit to fail once its context ended")
	}
}

func TestSubmitAfterCloseRejected(t *testing.T) {
	p, err := NewPool(1, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	p.Close()

	err = p.Submit(context.Background(), func(context.Context) error { return nil })
	if !errs.IsCode(err, errs.CodeUnavailable) {
		t.Fatalf("expected unavailable error after Close, got %v", err)
	}
}

func TestShutdownRunsQueuedTasks(t *testing.T) {
	p, err := NewPool(1, 8)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	var ran atomic.Int32
	for i := 0; i < 8; i++ {
		if err := p.Submit(context.Background(), func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if ran.Load() != 8 {
		t.Fatalf("expected all queued tasks to run before Shutdown returned, got %d of 8", ran.Load())
	}
}

func TestSubmitNilTask(t *testing.T) {
	p, err := NewPool(1, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	if err := p.Submit(context.Background(), nil); !errs.IsCode(err, errs.CodeInvalid) {
		t.Fatalf("expected invalid-argument error, got %v", err)
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	p, err := NewPool(1, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	var finished atomic.Bool
	started := make(chan struct{})
	if err := p.Submit(context.Background(), func(context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !finished.Load() {
		t.Fatal("Shutdown returned before in-flight task completed")
	}
}
