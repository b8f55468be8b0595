// Package scheduler starts polling rounds. It pushes a Trigger onto the
// supervisor's Trigger queue at a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/action"
)

// DefaultInterval is the round interval used when none is configured.
const DefaultInterval = 60 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Pusher: interface for dependency injection
// ─────────────────────────────────────────────────────────────────────────────

// Pusher is the subset of transport/redis.Queue used by the scheduler.
type Pusher interface {
	Push(ctx context.Context, queue string, data []byte) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// Config controls where and how often Triggers are pushed.
type Config struct {
	// Instance selects the Trigger queue.
	Instance string

	// Namer builds the queue name. Zero value uses action.DefaultNamer.
	Namer action.Namer

	// Interval between Triggers. Default DefaultInterval.
	Interval time.Duration

	Codec action.Codec
}

// Scheduler fires Triggers. It does not start automatically; call Start.
type Scheduler struct {
	queue    string
	interval time.Duration
	codec    action.Codec
	pusher   Pusher
	logger   *slog.Logger

	mu    sync.Mutex
	fired int

	done chan struct{}
}

// New resolves the Trigger queue name and validates cfg.
func New(cfg Config, pusher Pusher, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if pusher == nil {
		return nil, errors.New("scheduler: queue is required")
	}
	if cfg.Codec == nil {
		return nil, errors.New("scheduler: codec is required")
	}
	if cfg.Namer == (action.Namer{}) {
		cfg.Namer = action.DefaultNamer
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	queue, err := cfg.Namer.Queue(cfg.Instance, models.KindTrigger)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return &Scheduler{
		queue:    queue,
		interval: cfg.Interval,
		codec:    cfg.Codec,
		pusher:   pusher,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Queue returns the Trigger queue name.
func (s *Scheduler) Queue() string { return s.queue }

// Fire pushes a single Trigger.
func (s *Scheduler) Fire(ctx context.Context) error {
	data, err := s.codec.Encode(models.Trigger{})
	if err != nil {
		return fmt.Errorf("scheduler: encode trigger: %w", err)
	}
	if err := s.pusher.Push(ctx, s.queue, data); err != nil {
		return fmt.Errorf("scheduler: push %s: %w", s.queue, err)
	}
	s.mu.Lock()
	s.fired++
	s.mu.Unlock()
	s.logger.Debug("scheduler: trigger fired", "queue", s.queue)
	return nil
}

// Start fires immediately and then once per interval. It blocks until ctx is
// cancelled. A failed push is logged and retried at the next tick.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Fire(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("scheduler: trigger not delivered", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop waits for the scheduling loop to exit. The caller must cancel the
// context passed to Start before calling Stop.
func (s *Scheduler) Stop() {
	<-s.done
}

// Fired returns the number of Triggers delivered (for monitoring / tests).
func (s *Scheduler) Fired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// ─────────────────────────────────────────────────────────────────────────────
// noopWriter: discard log output when no logger is provided
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
