package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	jsoncodec "github.com/dhmon/snmpcollector/format/json"
	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/action"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/metrics"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/runner"
	"github.com/dhmon/snmpcollector/transport/file"
	"github.com/dhmon/snmpcollector/transport/redis"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

// fanoutStage answers a Trigger with a fixed action list.
type fanoutStage struct {
	out   []models.Action
	err   error
	calls atomic.Int32
}

func (s *fanoutStage) OnTrigger(_ context.Context) ([]models.Action, error) {
	s.calls.Add(1)
	return s.out, s.err
}

type deadLetterRecorder struct {
	mu   sync.Mutex
	recs []file.DeadLetter
}

func (d *deadLetterRecorder) Write(queue, reason string, cause error, payload []byte) (file.DeadLetter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := file.DeadLetter{ID: "id", Queue: queue, Reason: reason, Payload: payload}
	if cause != nil {
		rec.Error = cause.Error()
	}
	d.recs = append(d.recs, rec)
	return rec, nil
}

func (d *deadLetterRecorder) all() []file.DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]file.DeadLetter(nil), d.recs...)
}

type failingQueue struct{}

func (failingQueue) PushAll(context.Context, []redis.Message) error {
	return errors.New("connection refused")
}

func (failingQueue) Pop(context.Context, []string, time.Duration) (string, []byte, error) {
	return "", nil, redis.ErrEmpty
}

// flakyQueue forwards to a real queue but fails the batch push numbered
// failOn (1-based).
type flakyQueue struct {
	*redis.Queue
	failOn int
	calls  int
}

func (q *flakyQueue) PushAll(ctx context.Context, msgs []redis.Message) error {
	q.calls++
	if q.calls == q.failOn {
		return errors.New("connection reset by peer")
	}
	return q.Queue.PushAll(ctx, msgs)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

type fixture struct {
	mr      *miniredis.Miniredis
	queue   *redis.Queue
	codec   *jsoncodec.Codec
	dlq     *deadLetterRecorder
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	q := redis.New(redis.Config{Addr: mr.Addr()}, nil)
	t.Cleanup(func() { q.Close() })

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	return &fixture{
		mr:      mr,
		queue:   q,
		codec:   jsoncodec.New(jsoncodec.Config{}, nil),
		dlq:     &deadLetterRecorder{},
		metrics: m,
	}
}

func (f *fixture) config() runner.Config {
	return runner.Config{
		Instance:    "dc1",
		Consumes:    []models.Kind{models.KindTrigger},
		PollTimeout: time.Second,
		Queue:       f.queue,
		Codec:       f.codec,
		DeadLetters: f.dlq,
		Metrics:     f.metrics,
	}
}

func (f *fixture) encode(t *testing.T, a models.Action) []byte {
	t.Helper()
	data, err := f.codec.Encode(a)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func (f *fixture) decodeList(t *testing.T, key string) []models.Action {
	t.Helper()
	if !f.mr.Exists(key) {
		return nil
	}
	items, err := f.mr.List(key)
	if err != nil {
		t.Fatalf("List %s: %v", key, err)
	}
	out := make([]models.Action, 0, len(items))
	for _, it := range items {
		a, err := f.codec.Decode([]byte(it))
		if err != nil {
			t.Fatalf("Decode %q: %v", it, err)
		}
		out = append(out, a)
	}
	return out
}

const triggerQueue = "dhmon:snmp:dc1:Trigger"

// ─────────────────────────────────────────────────────────────────────────────
// New
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_UnsupportedKindFailsFast(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Consumes = []models.Kind{models.KindTrigger, models.KindSummary}

	stage := &fanoutStage{}
	_, err := runner.New(cfg, stage, nil)
	if !errors.Is(err, action.ErrUnsupportedAction) {
		t.Fatalf("err = %v, want ErrUnsupportedAction", err)
	}
	var ue *action.UnsupportedActionError
	if !errors.As(err, &ue) || ue.Kind != models.KindSummary {
		t.Errorf("err = %#v, want UnsupportedActionError for Summary", err)
	}
	if stage.calls.Load() != 0 {
		t.Error("handler invoked during validation")
	}
}

func TestNew_InvalidInstance(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Instance = "dc:1"
	if _, err := runner.New(cfg, &fanoutStage{}, nil); !errors.Is(err, action.ErrInvalidInstanceIdentifier) {
		t.Fatalf("err = %v, want ErrInvalidInstanceIdentifier", err)
	}
}

func TestNew_MissingDependencies(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		mutate func(*runner.Config)
	}{
		{"no queue", func(c *runner.Config) { c.Queue = nil }},
		{"no codec", func(c *runner.Config) { c.Codec = nil }},
		{"no kinds", func(c *runner.Config) { c.Consumes = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := f.config()
			tc.mutate(&cfg)
			if _, err := runner.New(cfg, &fanoutStage{}, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInbound_PriorityOrder(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Consumes = []models.Kind{models.KindSummary, models.KindAnnotatedResult}
	cfg.Namer = action.Namer{Namespace: "lab", Component: "poll"}

	r, err := runner.New(cfg, &summaryOnly{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := r.Inbound()
	want := []string{"lab:poll:dc1:Summary", "lab:poll:dc1:AnnotatedResult"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Inbound = %v, want %v", got, want)
	}
}

// summaryOnly handles Summary and, through OnResult, AnnotatedResult.
type summaryOnly struct{}

func (summaryOnly) OnSummary(context.Context, float64, int) ([]models.Action, error) { return nil, nil }
func (summaryOnly) OnResult(context.Context, string, models.ResultSet, models.Statistics) ([]models.Action, error) {
	return nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Process
// ─────────────────────────────────────────────────────────────────────────────

func TestProcess_ForwardsInOrderToKindQueues(t *testing.T) {
	f := newFixture(t)
	stage := &fanoutStage{out: []models.Action{
		models.SnmpWalk{Target: "a"},
		models.SnmpWalk{Target: "b"},
		models.Summary{Timestamp: 1000, Targets: 2},
	}}
	r, err := runner.New(f.config(), stage, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Process(context.Background(), triggerQueue, f.encode(t, models.Trigger{})); err != nil {
		t.Fatalf("Process: %v", err)
	}

	walks := f.decodeList(t, "dhmon:snmp:dc1:SnmpWalk")
	if len(walks) != 2 {
		t.Fatalf("SnmpWalk queue has %d items, want 2", len(walks))
	}
	if walks[0] != (models.SnmpWalk{Target: "a"}) || walks[1] != (models.SnmpWalk{Target: "b"}) {
		t.Errorf("walk order = %v", walks)
	}
	summaries := f.decodeList(t, "dhmon:snmp:dc1:Summary")
	if len(summaries) != 1 || summaries[0] != (models.Summary{Timestamp: 1000, Targets: 2}) {
		t.Errorf("summary queue = %v", summaries)
	}

	if got := testutil.ToFloat64(f.metrics.ActionsConsumed.WithLabelValues("Trigger")); got != 1 {
		t.Errorf("consumed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(f.metrics.ActionsEmitted.WithLabelValues("SnmpWalk")); got != 2 {
		t.Errorf("emitted SnmpWalk = %v, want 2", got)
	}
	if len(f.dlq.all()) != 0 {
		t.Errorf("unexpected dead letters: %v", f.dlq.all())
	}
}

func TestProcess_EmptyOutputPushesNothing(t *testing.T) {
	f := newFixture(t)
	r, err := runner.New(f.config(), &fanoutStage{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Process(context.Background(), triggerQueue, f.encode(t, models.Trigger{})); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if keys := f.mr.Keys(); len(keys) != 0 {
		t.Errorf("keys = %v, want none", keys)
	}
}

func TestProcess_RejectedMessages(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"unknown type", []byte(`{"type":"Walk","target":"x"}`), runner.ReasonUnknownType},
		{"garbage", []byte(`not json`), runner.ReasonMalformed},
		{"missing field", []byte(`{"type":"SnmpWalk"}`), runner.ReasonMalformed},
		{"kind without handler", []byte(`{"type":"Summary","timestamp":1,"targets":1}`), runner.ReasonUnsupported},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			stage := &fanoutStage{out: []models.Action{models.Trigger{}}}
			r, err := runner.New(f.config(), stage, nil)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			if err := r.Process(context.Background(), triggerQueue, tc.data); err != nil {
				t.Fatalf("Process: %v", err)
			}

			recs := f.dlq.all()
			if len(recs) != 1 {
				t.Fatalf("dead letters = %d, want 1", len(recs))
			}
			if recs[0].Reason != tc.reason {
				t.Errorf("reason = %q, want %q", recs[0].Reason, tc.reason)
			}
			if recs[0].Queue != triggerQueue || string(recs[0].Payload) != string(tc.data) {
				t.Errorf("record = %+v", recs[0])
			}
			if stage.calls.Load() != 0 {
				t.Error("handler should not run for a rejected message")
			}
			if keys := f.mr.Keys(); len(keys) != 0 {
				t.Errorf("keys = %v, want none", keys)
			}
			if got := testutil.ToFloat64(f.metrics.DeadLetters.WithLabelValues(tc.reason)); got != 1 {
				t.Errorf("dead letter counter = %v, want 1", got)
			}
		})
	}
}

func TestProcess_HandlerErrorDeadLetters(t *testing.T) {
	f := newFixture(t)
	stage := &fanoutStage{
		out: []models.Action{models.SnmpWalk{Target: "a"}},
		err: errors.New("config not loaded"),
	}
	r, err := runner.New(f.config(), stage, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Process(context.Background(), triggerQueue, f.encode(t, models.Trigger{})); err != nil {
		t.Fatalf("Process: %v", err)
	}

	recs := f.dlq.all()
	if len(recs) != 1 || recs[0].Reason != runner.ReasonHandler {
		t.Fatalf("dead letters = %+v", recs)
	}
	if recs[0].Error != "config not loaded" {
		t.Errorf("Error = %q", recs[0].Error)
	}
	if f.mr.Exists("dhmon:snmp:dc1:SnmpWalk") {
		t.Error("outputs of a failed handler must not be forwarded")
	}
	if got := testutil.ToFloat64(f.metrics.HandlerErrors.WithLabelValues("Trigger")); got != 1 {
		t.Errorf("handler errors = %v, want 1", got)
	}
}

func TestProcess_NilOutputDeadLettered(t *testing.T) {
	f := newFixture(t)
	stage := &fanoutStage{out: []models.Action{nil, models.SnmpWalk{Target: "a"}}}
	r, err := runner.New(f.config(), stage, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Process(context.Background(), triggerQueue, f.encode(t, models.Trigger{})); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if recs := f.dlq.all(); len(recs) != 1 || recs[0].Reason != runner.ReasonEncode {
		t.Errorf("dead letters = %+v", recs)
	}
	if walks := f.decodeList(t, "dhmon:snmp:dc1:SnmpWalk"); len(walks) != 1 {
		t.Errorf("walks = %v, want the valid action forwarded", walks)
	}
}

func TestProcess_PushFailureReturnsError(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Queue = failingQueue{}
	r, err := runner.New(cfg, &fanoutStage{out: []models.Action{models.SnmpWalk{Target: "a"}}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Process(context.Background(), triggerQueue, f.encode(t, models.Trigger{})); err == nil {
		t.Error("expected push error")
	}
}

func TestProcess_PushFailureForwardsNothingAndDeadLetters(t *testing.T) {
	f := newFixture(t)
	q := &flakyQueue{Queue: f.queue, failOn: 1}
	cfg := f.config()
	cfg.Queue = q
	stage := &fanoutStage{out: []models.Action{
		models.SnmpWalk{Target: "a"},
		models.SnmpWalk{Target: "b"},
		models.Summary{Timestamp: 1, Targets: 2},
	}}
	r, err := runner.New(cfg, stage, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	trigger := f.encode(t, models.Trigger{})
	if err := r.Process(context.Background(), triggerQueue, trigger); err == nil {
		t.Fatal("expected push error")
	}
	if walks := f.decodeList(t, "dhmon:snmp:dc1:SnmpWalk"); len(walks) != 0 {
		t.Errorf("walks = %v, want none forwarded from a failed round", walks)
	}
	if sums := f.decodeList(t, "dhmon:snmp:dc1:Summary"); len(sums) != 0 {
		t.Errorf("summaries = %v, want none", sums)
	}

	recs := f.dlq.all()
	if len(recs) != 1 {
		t.Fatalf("dead letters = %+v, want 1", recs)
	}
	if recs[0].Reason != runner.ReasonPush || recs[0].Queue != triggerQueue || string(recs[0].Payload) != string(trigger) {
		t.Errorf("dead letter = %+v, want the inbound Trigger with reason %s", recs[0], runner.ReasonPush)
	}
	if got := testutil.ToFloat64(f.metrics.DeadLetters.WithLabelValues(runner.ReasonPush)); got != 1 {
		t.Errorf("push dead letters = %v, want 1", got)
	}
	if got := testutil.ToFloat64(f.metrics.ActionsEmitted.WithLabelValues("SnmpWalk")); got != 0 {
		t.Errorf("emitted = %v, want 0", got)
	}

	// The next message goes through whole.
	if err := r.Process(context.Background(), triggerQueue, trigger); err != nil {
		t.Fatalf("Process: %v", err)
	}
	walks := f.decodeList(t, "dhmon:snmp:dc1:SnmpWalk")
	sums := f.decodeList(t, "dhmon:snmp:dc1:Summary")
	if len(walks) != 2 || len(sums) != 1 {
		t.Errorf("forwarded %d walks and %d summaries, want 2 and 1", len(walks), len(sums))
	}
}

func TestProcess_WithoutDeadLetterSink(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.DeadLetters = nil
	r, err := runner.New(cfg, &fanoutStage{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Process(context.Background(), triggerQueue, []byte("junk")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.DeadLetters.WithLabelValues(runner.ReasonMalformed)); got != 1 {
		t.Errorf("dead letter counter = %v, want 1", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Start / Stop
// ─────────────────────────────────────────────────────────────────────────────

func TestStartStop_ConsumesQueue(t *testing.T) {
	f := newFixture(t)
	cfg := f.config()
	cfg.Workers = 2
	stage := &fanoutStage{out: []models.Action{models.SnmpWalk{Target: "r1"}}}
	r, err := runner.New(cfg, stage, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := f.queue.Push(ctx, triggerQueue, f.encode(t, models.Trigger{})); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	r.Start(ctx)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := f.queue.Len(ctx, "dhmon:snmp:dc1:SnmpWalk")
		if err != nil {
			t.Fatalf("Len: %v", err)
		}
		if n == 3 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	r.Stop()

	if got := stage.calls.Load(); got != 3 {
		t.Errorf("handler calls = %d, want 3", got)
	}
	if n, _ := f.queue.Len(ctx, triggerQueue); n != 0 {
		t.Errorf("inbound queue still has %d items", n)
	}
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	f := newFixture(t)
	r, err := runner.New(f.config(), &fanoutStage{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
