package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	jsoncodec "github.com/dhmon/snmpcollector/format/json"
	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/action"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/scheduler"
	"github.com/dhmon/snmpcollector/transport/redis"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mock Pusher
// ─────────────────────────────────────────────────────────────────────────────

type mockPusher struct {
	mu     sync.Mutex
	queues []string
	data   [][]byte
	err    error
}

func (m *mockPusher) Push(ctx context.Context, queue string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.queues = append(m.queues, queue)
	m.data = append(m.data, data)
	return nil
}

func (m *mockPusher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}

func codec() action.Codec { return jsoncodec.New(jsoncodec.Config{}, nil) }

// ─────────────────────────────────────────────────────────────────────────────
// Construction
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_QueueName(t *testing.T) {
	s, err := scheduler.New(scheduler.Config{Instance: "prod", Codec: codec()}, &mockPusher{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Queue() != "dhmon:snmp:prod:Trigger" {
		t.Errorf("Queue() = %q", s.Queue())
	}

	custom := action.Namer{Namespace: "lab", Component: "poll"}
	s, err = scheduler.New(scheduler.Config{Instance: "a", Namer: custom, Codec: codec()}, &mockPusher{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Queue() != "lab:poll:a:Trigger" {
		t.Errorf("Queue() = %q", s.Queue())
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    scheduler.Config
		pusher scheduler.Pusher
		target error
	}{
		{"invalid instance", scheduler.Config{Instance: "a:b", Codec: codec()}, &mockPusher{}, action.ErrInvalidInstanceIdentifier},
		{"empty instance", scheduler.Config{Codec: codec()}, &mockPusher{}, action.ErrInvalidInstanceIdentifier},
		{"no codec", scheduler.Config{Instance: "a"}, &mockPusher{}, nil},
		{"no queue", scheduler.Config{Instance: "a", Codec: codec()}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scheduler.New(tt.cfg, tt.pusher, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Fire
// ─────────────────────────────────────────────────────────────────────────────

func TestFire_PushesDecodableTrigger(t *testing.T) {
	p := &mockPusher{}
	c := codec()
	s, _ := scheduler.New(scheduler.Config{Instance: "prod", Codec: c}, p, nil)

	if err := s.Fire(context.Background()); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if p.count() != 1 || p.queues[0] != "dhmon:snmp:prod:Trigger" {
		t.Fatalf("pushes = %v", p.queues)
	}
	a, err := c.Decode(p.data[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if a.Kind() != models.KindTrigger {
		t.Errorf("kind = %s, want Trigger", a.Kind())
	}
	if s.Fired() != 1 {
		t.Errorf("Fired() = %d", s.Fired())
	}
}

func TestFire_PushError(t *testing.T) {
	p := &mockPusher{err: errors.New("connection refused")}
	s, _ := scheduler.New(scheduler.Config{Instance: "prod", Codec: codec()}, p, nil)
	if err := s.Fire(context.Background()); err == nil {
		t.Fatal("expected push error")
	}
	if s.Fired() != 0 {
		t.Errorf("Fired() = %d, want 0", s.Fired())
	}
}

func TestFire_RedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	q := redis.New(redis.Config{Addr: mr.Addr()}, nil)
	t.Cleanup(func() { q.Close() })

	s, err := scheduler.New(scheduler.Config{Instance: "prod", Codec: codec()}, q, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := s.Fire(ctx); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	n, err := q.Len(ctx, s.Queue())
	if err != nil || n != 1 {
		t.Errorf("queue length = %d, %v; want 1", n, err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Start / Stop
// ─────────────────────────────────────────────────────────────────────────────

func TestStart_FiresImmediately(t *testing.T) {
	p := &mockPusher{}
	s, _ := scheduler.New(scheduler.Config{Instance: "prod", Interval: time.Hour, Codec: codec()}, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for p.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("no trigger fired on start")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	s.Stop()

	if p.count() != 1 {
		t.Errorf("pushes = %d, want 1 with an hour interval", p.count())
	}
}

func TestStart_FiresEveryInterval(t *testing.T) {
	p := &mockPusher{}
	s, _ := scheduler.New(scheduler.Config{Instance: "prod", Interval: 10 * time.Millisecond, Codec: codec()}, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for p.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d triggers fired", p.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}

func TestStart_SurvivesPushErrors(t *testing.T) {
	p := &mockPusher{err: errors.New("down")}
	s, _ := scheduler.New(scheduler.Config{Instance: "prod", Interval: 5 * time.Millisecond, Codec: codec()}, p, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if s.Fired() != 0 {
		t.Errorf("Fired() = %d, want 0", s.Fired())
	}
}
