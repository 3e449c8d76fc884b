// Package scheduler runs delayed one-shot tasks on a single worker goroutine.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"SkillSwapserver/internal/clock"
)

const defaultQueueSize = 256

type Task func(ctx context.Context)

type Scheduler struct {
	clock  clock.Clock
	logger *slog.Logger

	queue chan Task
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New starts the worker. Close must be called to release it.
func New(c clock.Clock, logger *slog.Logger) *Scheduler {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		clock:  c,
		logger: logger,
		queue:  make(chan Task, defaultQueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Schedule arms a timer that hands fn to the worker after delay. Tasks scheduled or
// fired after Close are dropped.
func (s *Scheduler) Schedule(delay time.Duration, fn func(ctx context.Context)) {
	select {
	case <-s.done:
		return
	default:
	}
	s.clock.AfterFunc(delay, func() {
		select {
		case s.queue <- fn:
		case <-s.done:
		}
	})
}

// Every runs fn repeatedly, interval after the previous run finished, until Close.
func (s *Scheduler) Every(interval time.Duration, fn func(ctx context.Context)) {
	var tick func(ctx context.Context)
	tick = func(ctx context.Context) {
		fn(ctx)
		s.Schedule(interval, tick)
	}
	s.Schedule(interval, tick)
}

func (s *Scheduler) Close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.queue:
			s.exec(fn)
		}
	}
}

func (s *Scheduler) exec(fn Task) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("scheduled task panicked", "panic", rec)
		}
	}()
	fn(s.ctx)
}
