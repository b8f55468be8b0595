// Package redis implements the durable action queues on Redis lists.
//
// Pipeline position:
//
//	stage handler → format codec → transport/redis (Push) ⇢ transport/redis (Pop) → next stage
//
// Each queue is one Redis list named by action.Namer. Producers RPUSH and
// consumers BLPOP, so every list is FIFO. Delivery guarantees are those of a
// plain Redis list: a message popped by a consumer that then crashes is lost.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Pop when no message arrived before the timeout.
var ErrEmpty = errors.New("transport/redis: queue empty")

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the Redis connection settings.
type Config struct {
	// Addr is host:port of the Redis server. Default "127.0.0.1:6379".
	Addr string

	Password string
	DB       int
}

// ─────────────────────────────────────────────────────────────────────────────
// Queue
// ─────────────────────────────────────────────────────────────────────────────

// Queue pushes and pops encoded actions. It is safe for concurrent use; the
// underlying client maintains its own connection pool.
type Queue struct {
	client *backend.Client
	logger *slog.Logger
}

// New connects a Queue to the server described by cfg. The connection is
// established lazily; use Ping to verify it.
func New(cfg Config, logger *slog.Logger) *Queue {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), logger)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Queue{client: client, logger: logger}
}

// Ping checks that the server is reachable.
func (q *Queue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("transport/redis: ping: %w", err)
	}
	return nil
}

// Push appends data to the tail of queue.
func (q *Queue) Push(ctx context.Context, queue string, data []byte) error {
	if err := q.client.RPush(ctx, queue, data).Err(); err != nil {
		q.logger.Error("transport/redis: push failed", "queue", queue, "bytes", len(data), "error", err.Error())
		return fmt.Errorf("transport/redis: push %s: %w", queue, err)
	}
	q.logger.Debug("transport/redis: pushed", "queue", queue, "bytes", len(data))
	return nil
}

// Message is one encoded action bound for a queue.
type Message struct {
	Queue string
	Data  []byte
}

// PushAll appends every message to the tail of its queue inside one
// MULTI/EXEC transaction: either all messages are queued or none are.
func (q *Queue) PushAll(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	_, err := q.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for _, m := range msgs {
			pipe.RPush(ctx, m.Queue, m.Data)
		}
		return nil
	})
	if err != nil {
		q.logger.Error("transport/redis: batch push failed", "messages", len(msgs), "error", err.Error())
		return fmt.Errorf("transport/redis: push %d messages: %w", len(msgs), err)
	}
	q.logger.Debug("transport/redis: pushed batch", "messages", len(msgs))
	return nil
}

// Pop blocks until a message is available on one of queues, the timeout
// elapses (ErrEmpty) or ctx is cancelled. Queues are checked in the order
// given, so earlier queues take priority. It returns the queue the message
// came from.
func (q *Queue) Pop(ctx context.Context, queues []string, timeout time.Duration) (string, []byte, error) {
	if len(queues) == 0 {
		return "", nil, fmt.Errorf("transport/redis: pop: no queues")
	}
	res, err := q.client.BLPop(ctx, timeout, queues...).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return "", nil, ErrEmpty
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}
		return "", nil, fmt.Errorf("transport/redis: pop: %w", err)
	}
	if len(res) != 2 {
		return "", nil, fmt.Errorf("transport/redis: pop: unexpected reply of %d elements", len(res))
	}
	return res[0], []byte(res[1]), nil
}

// Len returns the number of messages waiting on queue.
func (q *Queue) Len(ctx context.Context, queue string) (int64, error) {
	n, err := q.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("transport/redis: len %s: %w", queue, err)
	}
	return n, nil
}

// Close releases the client's connections.
func (q *Queue) Close() error {
	return q.client.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
