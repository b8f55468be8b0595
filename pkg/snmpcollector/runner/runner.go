// Package runner drives one pipeline stage against its inbound queues.
//
// Worker loop:
//
//	Pop (BLPOP over inbound queues) → Codec.Decode → Dispatcher.Dispatch →
//	Codec.Encode each returned action → PushAll (one MULTI/EXEC) to the
//	queues named by their kinds
//
// Messages that cannot be decoded, whose handler fails or whose outputs
// cannot be pushed are written to the dead-letter sink and never retried.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/action"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/metrics"
	"github.com/dhmon/snmpcollector/transport/file"
	"github.com/dhmon/snmpcollector/transport/redis"
)

// Dead-letter reasons.
const (
	ReasonUnknownType = "unknown_type"
	ReasonMalformed   = "malformed"
	ReasonUnsupported = "unsupported"
	ReasonHandler     = "handler_error"
	ReasonEncode      = "encode_error"
	ReasonPush        = "push_error"
)

// Queue is the subset of transport/redis.Queue used by the runner. PushAll
// must queue either every message or none.
type Queue interface {
	PushAll(ctx context.Context, msgs []redis.Message) error
	Pop(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, error)
}

// DeadLetters records rejected messages.
type DeadLetters interface {
	Write(queue, reason string, cause error, payload []byte) (file.DeadLetter, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config describes one stage deployment.
type Config struct {
	// Instance is the pipeline instance, the third queue name component.
	Instance string

	// Namer builds queue names. Zero value uses action.DefaultNamer.
	Namer action.Namer

	// Consumes lists the action kinds popped by this stage, in priority order.
	Consumes []models.Kind

	// Workers is the number of concurrent pop/dispatch loops. Default 1.
	Workers int

	// PollTimeout bounds each blocking pop so workers notice shutdown.
	// Default 1s.
	PollTimeout time.Duration

	Queue       Queue
	Codec       action.Codec
	DeadLetters DeadLetters // optional
	Metrics     *metrics.Metrics
}

func (c *Config) withDefaults() {
	if c.Namer == (action.Namer{}) {
		c.Namer = action.DefaultNamer
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Runner
// ─────────────────────────────────────────────────────────────────────────────

// Runner pops, dispatches and forwards actions for a single stage. The stage
// must be safe for concurrent use when Workers > 1.
type Runner struct {
	cfg        Config
	dispatcher *action.Dispatcher
	inbound    []string
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg against stage. It fails with an error matching
// action.ErrUnsupportedAction when stage lacks a handler for one of
// cfg.Consumes, so a misconfigured deployment never starts.
func New(cfg Config, stage any, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()

	if cfg.Queue == nil {
		return nil, errors.New("runner: queue is required")
	}
	if cfg.Codec == nil {
		return nil, errors.New("runner: codec is required")
	}
	if len(cfg.Consumes) == 0 {
		return nil, errors.New("runner: no inbound action kinds configured")
	}

	d, err := action.NewDispatcher(stage, cfg.Consumes...)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	inbound, err := cfg.Namer.Queues(cfg.Instance, cfg.Consumes...)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	return &Runner{
		cfg:        cfg,
		dispatcher: d,
		inbound:    inbound,
		logger:     logger,
	}, nil
}

// Inbound returns the queue names popped by the runner, in priority order.
func (r *Runner) Inbound() []string {
	out := make([]string, len(r.inbound))
	copy(out, r.inbound)
	return out
}

// Start launches the worker goroutines. They run until ctx is cancelled or
// Stop is called.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	r.logger.Info("runner: started",
		"instance", r.cfg.Instance,
		"queues", r.inbound,
		"workers", r.cfg.Workers,
		"codec", r.cfg.Codec.Name(),
	)
}

// Stop cancels the workers and waits for in-flight messages to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("runner: stopped", "instance", r.cfg.Instance)
}

// Run is Start followed by Stop once ctx is done.
func (r *Runner) Run(ctx context.Context) {
	r.Start(ctx)
	<-ctx.Done()
	r.Stop()
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		queue, data, err := r.cfg.Queue.Pop(ctx, r.inbound, r.cfg.PollTimeout)
		switch {
		case err == nil:
		case errors.Is(err, redis.ErrEmpty):
			continue
		case ctx.Err() != nil:
			return
		default:
			r.logger.Warn("runner: pop failed", "queues", r.inbound, "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.cfg.PollTimeout):
			}
			continue
		}

		if err := r.Process(ctx, queue, data); err != nil {
			r.logger.Error("runner: forward failed", "queue", queue, "error", err.Error())
		}
	}
}

// Process handles one message popped from queue. Rejected messages are
// dead-lettered and yield nil. The outputs of one message are pushed as a
// single batch; when that push fails the inbound message is dead-lettered
// with ReasonPush and the error is returned.
func (r *Runner) Process(ctx context.Context, queue string, data []byte) error {
	a, err := r.cfg.Codec.Decode(data)
	if err != nil {
		reason := ReasonMalformed
		if errors.Is(err, action.ErrUnknownActionType) {
			reason = ReasonUnknownType
		}
		r.reject(queue, reason, err, data)
		return nil
	}
	kind := a.Kind().String()
	r.cfg.Metrics.Consumed(kind)

	start := time.Now()
	out, err := r.dispatcher.Dispatch(ctx, a)
	r.cfg.Metrics.ObserveDispatch(kind, time.Since(start))
	if err != nil {
		reason := ReasonHandler
		if errors.Is(err, action.ErrUnsupportedAction) {
			reason = ReasonUnsupported
		} else {
			r.cfg.Metrics.HandlerError(kind)
		}
		r.reject(queue, reason, err, data)
		return nil
	}

	batch := make([]redis.Message, 0, len(out))
	kinds := make([]string, 0, len(out))
	for _, next := range out {
		if msg, ok := r.encode(queue, next, data); ok {
			batch = append(batch, msg)
			kinds = append(kinds, next.Kind().String())
		}
	}
	if len(batch) == 0 {
		r.logger.Debug("runner: processed", "queue", queue, "kind", kind, "emitted", 0)
		return nil
	}
	if err := r.cfg.Queue.PushAll(ctx, batch); err != nil {
		r.reject(queue, ReasonPush, err, data)
		return fmt.Errorf("runner: forward %d actions from %s: %w", len(batch), queue, err)
	}
	for _, k := range kinds {
		r.cfg.Metrics.Emitted(k)
	}
	r.logger.Debug("runner: processed", "queue", queue, "kind", kind, "emitted", len(batch))
	return nil
}

// encode resolves the destination of one handler output and serialises it.
// Failures are dead-lettered with the inbound payload that produced them.
func (r *Runner) encode(from string, next models.Action, origin []byte) (redis.Message, bool) {
	if next == nil {
		r.reject(from, ReasonEncode, fmt.Errorf("runner: handler returned a nil action: %w", action.ErrUnknownActionType), origin)
		return redis.Message{}, false
	}
	dest, err := r.cfg.Namer.Queue(r.cfg.Instance, next.Kind())
	if err != nil {
		r.reject(from, ReasonEncode, err, origin)
		return redis.Message{}, false
	}
	payload, err := r.cfg.Codec.Encode(next)
	if err != nil {
		r.reject(from, ReasonEncode, err, origin)
		return redis.Message{}, false
	}
	return redis.Message{Queue: dest, Data: payload}, true
}

func (r *Runner) reject(queue, reason string, cause error, payload []byte) {
	r.cfg.Metrics.DeadLetter(reason)
	if r.cfg.DeadLetters == nil {
		r.logger.Warn("runner: message dropped", "queue", queue, "reason", reason, "error", cause.Error())
		return
	}
	rec, err := r.cfg.DeadLetters.Write(queue, reason, cause, payload)
	if err != nil {
		r.logger.Error("runner: dead-letter write failed", "queue", queue, "reason", reason, "error", err.Error())
		return
	}
	r.logger.Warn("runner: message dead-lettered",
		"id", rec.ID,
		"queue", queue,
		"reason", reason,
		"error", cause.Error(),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// noopWriter: discard log output when no logger is provided
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
