package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"
)

const defaultIdleTimeout = 2 * time.Minute

var (
	ErrSessionQueueFull = errors.New("session queue full")
	ErrSchedulerClosed  = errors.New("session scheduler closed")
)

// Task is one unit of work for a sender.
type Task func(context.Context)

// Scheduler runs tasks one at a time per sender key, in arrival order, on a
// dedicated goroutine with a bounded queue. A goroutine with nothing queued
// for the idle timeout exits and the next task for that key starts a new one.
type Scheduler struct {
	logger      *log.Logger
	queueSize   int
	idleTimeout time.Duration

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	wg      sync.WaitGroup
}

type worker struct {
	ch chan Task
}

type SchedulerOption func(*Scheduler)

func WithIdleTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

func NewScheduler(logger *log.Logger, queueSize int, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &Scheduler{
		logger:      logger,
		queueSize:   queueSize,
		idleTimeout: defaultIdleTimeout,
		workers:     make(map[string]*worker),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Scheduler) Enqueue(key string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerClosed
	}
	w := s.workerForLocked(key)

	select {
	case w.ch <- task:
		return nil
	default:
		s.logger.Printf("session queue full key=%s", key)
		return ErrSessionQueueFull
	}
}

func (s *Scheduler) workerForLocked(key string) *worker {
	if w, ok := s.workers[key]; ok {
		return w
	}

	w := &worker{ch: make(chan Task, s.queueSize)}
	s.workers[key] = w

	s.wg.Add(1)
	go s.serve(key, w)

	return w
}

func (s *Scheduler) serve(key string, w *worker) {
	defer s.wg.Done()
	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case task, ok := <-w.ch:
			if !ok {
				return
			}
			s.run(key, task)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.idleTimeout)
		case <-idle.C:
			if s.reap(key, w) {
				return
			}
			idle.Reset(s.idleTimeout)
		}
	}
}

// reap drops an idle worker. Enqueue sends while holding mu, so an empty
// queue seen here stays empty until the worker is gone from the map.
func (s *Scheduler) reap(key string, w *worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(w.ch) > 0 {
		return false
	}
	if s.workers[key] == w {
		delete(s.workers, key)
	}
	return true
}

func (s *Scheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

func (s *Scheduler) run(key string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("session task panic key=%s err=%v", key, r)
		}
	}()
	task(context.Background())
}

// Close stops accepting tasks and waits for queued ones to drain or ctx to end.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for _, w := range s.workers {
			close(w.ch)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
