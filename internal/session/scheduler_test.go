package session

import (
	"context"
	"log"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestSchedulerOrderingPerSender(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	s := NewScheduler(logger, 16)

	got := make([]string, 0, 3)
	var mu sync.Mutex
	done := make(chan struct{}, 3)
	task := func(id string) Task {
		return func(context.Context) {
			mu.Lock()
			got = append(got, id)
			mu.Unlock()
			done <- struct{}{}
		}
	}

	for _, id := range []string{"m1", "m2", "m3"} {
		if err := s.Enqueue("+56911", task(id)); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for scheduled tasks")
		}
	}

	want := []string{"m1", "m2", "m3"}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected order: want=%v got=%v", want, got)
	}
}

func TestSchedulerQueueFull(t *testing.T) {
	s := NewScheduler(nil, 1)
	block := make(chan struct{})
	started := make(chan struct{}, 1)

	blocking := func(context.Context) {
		started <- struct{}{}
		<-block
	}
	noop := func(context.Context) {}

	if err := s.Enqueue("+1", blocking); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for worker start")
	}
	if err := s.Enqueue("+1", noop); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if err := s.Enqueue("+1", noop); err != ErrSessionQueueFull {
		t.Fatalf("expected ErrSessionQueueFull, got %v", err)
	}
	// Other senders are unaffected.
	if err := s.Enqueue("+2", noop); err != nil {
		t.Fatalf("enqueue other sender: %v", err)
	}

	close(block)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Enqueue("+1", noop); err != ErrSchedulerClosed {
		t.Fatalf("expected ErrSchedulerClosed, got %v", err)
	}
}

func TestSchedulerSurvivesPanickingTask(t *testing.T) {
	s := NewScheduler(nil, 4)
	done := make(chan struct{})
	_ = s.Enqueue("+1", func(context.Context) { panic("boom") })
	_ = s.Enqueue("+1", func(context.Context) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not continue after panic")
	}
}

func TestSchedulerReapsIdleWorkers(t *testing.T) {
	s := NewScheduler(nil, 4, WithIdleTimeout(10*time.Millisecond))
	done := make(chan string, 4)
	for _, key := range []string{"+1", "+2"} {
		key := key
		if err := s.Enqueue(key, func(context.Context) { done <- key }); err != nil {
			t.Fatalf("enqueue %s: %v", key, err)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tasks")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.active() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected idle workers to exit, %d still running", s.active())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A reaped key gets a fresh worker.
	if err := s.Enqueue("+1", func(context.Context) { done <- "again" }); err != nil {
		t.Fatalf("enqueue after reap: %v", err)
	}
	select {
	case got := <-done:
		if got != "again" {
			t.Fatalf("unexpected task %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("task after reap never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}
