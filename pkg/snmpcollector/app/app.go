// Package app wires one pipeline stage of the collector and manages its
// lifecycle.
//
// Stage path (one role per process):
//
//	Redis queue (BLPOP) → Codec.Decode → Runner → Stage handler →
//	Codec.Encode → Redis queue (RPUSH) for the next stage
//
// Side paths:
//
//	rejected messages → dead-letter sink (rotating file or stderr)
//	config watcher    → Stage.Reload
//	scheduler         → Trigger queue (supervisor role only)
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jsoncodec "github.com/dhmon/snmpcollector/format/json"
	msgpackcodec "github.com/dhmon/snmpcollector/format/msgpack"
	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/action"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/config"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/metrics"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/poller"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/runner"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/scheduler"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/stage"
	"github.com/dhmon/snmpcollector/transport/file"
	"github.com/dhmon/snmpcollector/transport/redis"
)

// ─────────────────────────────────────────────────────────────────────────────
// Roles
// ─────────────────────────────────────────────────────────────────────────────

// Role selects the stage a process runs.
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleWalker     Role = "walker"
	RoleAnnotator  Role = "annotator"
	RoleSummary    Role = "summary"
)

// Roles lists every role in pipeline order.
func Roles() []Role {
	return []Role{RoleSupervisor, RoleWalker, RoleAnnotator, RoleSummary}
}

// ParseRole validates s.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("app: unknown role %q", s)
}

// Consumes returns the action kinds popped by the role, in priority order.
func (r Role) Consumes() []models.Kind {
	switch r {
	case RoleSupervisor:
		return []models.Kind{models.KindTrigger}
	case RoleWalker:
		return []models.Kind{models.KindSnmpWalk}
	case RoleAnnotator:
		return []models.Kind{models.KindResult}
	case RoleSummary:
		return []models.Kind{models.KindSummary, models.KindAnnotatedResult}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for one stage process.
// Zero-value fields fall back to documented defaults.
type Config struct {
	// ConfigPaths are the directories for YAML configuration files.
	// Use config.PathsFromEnv() to populate from environment variables.
	ConfigPaths config.Paths

	Role Role

	// Instance is the pipeline instance shared by every stage process.
	// Default: "default".
	Instance string

	// Namespace and Component prefix every queue name.
	// Default: "dhmon" and "snmp".
	Namespace string
	Component string

	Redis redis.Config

	// Codec is "json" (default) or "msgpack".
	Codec string

	// Workers is the number of concurrent runner loops. Default: 1.
	Workers int

	// DeadLetterFile enables a rotating dead-letter file. When empty dead
	// letters go to DeadLetterWriter (os.Stderr when nil).
	DeadLetterFile       string
	DeadLetterMaxBytes   int64
	DeadLetterMaxBackups int
	DeadLetterWriter     io.Writer

	// MetricsListen is the address of the /metrics endpoint. Empty disables it.
	MetricsListen string

	// TriggerInterval makes a supervisor push its own Triggers. Zero leaves
	// round scheduling to an external producer.
	TriggerInterval time.Duration

	// WatchConfig reloads the stage when configuration files change.
	WatchConfig bool

	// Dialer overrides the SNMP session factory of the walker role.
	Dialer poller.Dialer
}

func (c *Config) withDefaults() {
	if c.Instance == "" {
		c.Instance = "default"
	}
	if c.Namespace == "" {
		c.Namespace = action.DefaultNamespace
	}
	if c.Component == "" {
		c.Component = action.DefaultComponent
	}
	if c.Codec == "" {
		c.Codec = jsoncodec.Name
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

// NewCodec returns the codec registered under name.
func NewCodec(name string, logger *slog.Logger) (action.Codec, error) {
	switch name {
	case jsoncodec.Name:
		return jsoncodec.New(jsoncodec.Config{}, logger), nil
	case msgpackcodec.Name:
		return msgpackcodec.New(logger), nil
	}
	return nil, fmt.Errorf("app: unknown codec %q (want %s or %s)", name, jsoncodec.Name, msgpackcodec.Name)
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App runs a single stage. Create one with New, start it with Start, and
// stop it with Stop (or cancel the context).
type App struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	loadedCfg *config.LoadedConfig

	namer       action.Namer
	queue       *redis.Queue
	codec       action.Codec
	deadLetters *file.DeadLetterSink
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	stage       any
	runner      *runner.Runner
	sched       *scheduler.Scheduler
	server      *http.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything; call Start for that.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{cfg: cfg, logger: logger}
}

// Start loads configuration, builds the stage and its runner, and launches
// the worker, metrics, watcher and scheduler goroutines. It fails when the
// role is unknown, configuration cannot be loaded, Redis is unreachable or
// the stage cannot handle the kinds of its role.
func (a *App) Start(ctx context.Context) error {
	if _, err := ParseRole(string(a.cfg.Role)); err != nil {
		return err
	}
	namer, err := action.NewNamer(a.cfg.Namespace, a.cfg.Component)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.namer = namer

	// ── 1. Load configuration ───────────────────────────────────────────
	a.logger.Info("app: loading configuration", "role", a.cfg.Role)
	loadedCfg, err := config.Load(a.cfg.ConfigPaths, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.setLoaded(loadedCfg)
	a.logger.Info("app: configuration loaded",
		"devices", len(loadedCfg.Devices),
		"object_defs", len(loadedCfg.ObjectDefs),
	)

	// ── 2. Transport and codec ──────────────────────────────────────────
	if a.codec, err = NewCodec(a.cfg.Codec, a.logger); err != nil {
		return err
	}
	a.queue = redis.New(a.cfg.Redis, a.logger)
	if err := a.queue.Ping(ctx); err != nil {
		a.release()
		return fmt.Errorf("app: %w", err)
	}
	if err := a.openDeadLetters(); err != nil {
		a.release()
		return err
	}

	// ── 3. Metrics ──────────────────────────────────────────────────────
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if a.metrics, err = metrics.New(a.registry); err != nil {
		a.release()
		return fmt.Errorf("app: %w", err)
	}

	// ── 4. Stage and runner ─────────────────────────────────────────────
	a.stage = a.buildStage(loadedCfg)
	a.runner, err = runner.New(runner.Config{
		Instance:    a.cfg.Instance,
		Namer:       namer,
		Consumes:    a.cfg.Role.Consumes(),
		Workers:     a.cfg.Workers,
		Queue:       a.queue,
		Codec:       a.codec,
		DeadLetters: a.deadLetters,
		Metrics:     a.metrics,
	}, a.stage, a.logger)
	if err != nil {
		a.release()
		return fmt.Errorf("app: %w", err)
	}
	if a.cfg.Role == RoleSupervisor && a.cfg.TriggerInterval > 0 {
		a.sched, err = scheduler.New(scheduler.Config{
			Instance: a.cfg.Instance,
			Namer:    namer,
			Interval: a.cfg.TriggerInterval,
			Codec:    a.codec,
		}, a.queue, a.logger)
		if err != nil {
			a.release()
			return fmt.Errorf("app: %w", err)
		}
	}

	// ── 5. Start goroutines ─────────────────────────────────────────────
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.runner.Start(runCtx)
	a.startMetricsServer()
	a.startWatcher(runCtx)
	if a.sched != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.sched.Start(runCtx)
		}()
	}

	a.logger.Info("app: stage running",
		"role", a.cfg.Role,
		"instance", a.cfg.Instance,
		"inbound", a.runner.Inbound(),
		"workers", a.cfg.Workers,
		"codec", a.codec.Name(),
	)
	return nil
}

// Stop performs a graceful shutdown.
//
// Shutdown order:
//  1. Cancel the run context (workers, watcher, scheduler).
//  2. Wait for in-flight messages to finish.
//  3. Shut the metrics endpoint down.
//  4. Close the Redis client and the dead-letter sink.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.runner != nil {
		a.runner.Stop()
	}
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("app: metrics server shutdown error", "error", err.Error())
		}
		cancel()
	}
	a.wg.Wait()
	a.release()

	a.logger.Info("app: shutdown complete")
}

// Reload loads the configuration again and hands it to the stage. Returns an
// error if the new configuration fails to load; the stage keeps the old one.
func (a *App) Reload() error {
	a.logger.Info("app: reloading configuration")
	newCfg, err := config.Load(a.cfg.ConfigPaths, a.logger)
	if err != nil {
		return fmt.Errorf("app: reload config: %w", err)
	}
	a.apply(newCfg)
	return nil
}

// Inbound returns the queues the stage pops. Valid after Start.
func (a *App) Inbound() []string {
	if a.runner == nil {
		return nil
	}
	return a.runner.Inbound()
}

// Stage returns the running stage. Valid after Start.
func (a *App) Stage() any { return a.stage }

// Loaded returns the configuration the stage currently runs with.
func (a *App) Loaded() *config.LoadedConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadedCfg
}

// Registry returns the Prometheus registry of the app. Valid after Start.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// ─────────────────────────────────────────────────────────────────────────────
// Wiring helpers
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) buildStage(cfg *config.LoadedConfig) any {
	switch a.cfg.Role {
	case RoleSupervisor:
		return stage.NewSupervisor(cfg, a.logger)
	case RoleWalker:
		return stage.NewWalker(poller.NewWalker(a.cfg.Dialer, a.logger), cfg, a.logger)
	case RoleAnnotator:
		return stage.NewAnnotator(cfg, a.logger)
	default:
		return stage.NewSummarizer(a.metrics, a.logger)
	}
}

func (a *App) openDeadLetters() error {
	w := a.cfg.DeadLetterWriter
	if a.cfg.DeadLetterFile != "" {
		rf, err := file.NewRotatingFile(file.RotateConfig{
			FilePath:   a.cfg.DeadLetterFile,
			MaxBytes:   a.cfg.DeadLetterMaxBytes,
			MaxBackups: a.cfg.DeadLetterMaxBackups,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("app: dead-letter file: %w", err)
		}
		w = rf
	}
	a.deadLetters = file.NewDeadLetterSink(file.New(file.Config{Writer: w}, a.logger))
	return nil
}

func (a *App) startMetricsServer() {
	if a.cfg.MetricsListen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	a.server = &http.Server{
		Addr:              a.cfg.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("app: metrics server failed", "addr", a.cfg.MetricsListen, "error", err.Error())
		}
	}()
	a.logger.Info("app: metrics endpoint listening", "addr", a.cfg.MetricsListen)
}

func (a *App) startWatcher(ctx context.Context) {
	if !a.cfg.WatchConfig {
		return
	}
	if _, ok := a.stage.(stage.Reloader); !ok {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := config.Watch(ctx, a.cfg.ConfigPaths, config.DefaultDebounce, a.logger, a.apply); err != nil {
			a.logger.Error("app: config watcher stopped", "error", err.Error())
		}
	}()
}

// apply installs a newly loaded configuration.
func (a *App) apply(cfg *config.LoadedConfig) {
	a.setLoaded(cfg)
	if r, ok := a.stage.(stage.Reloader); ok {
		r.Reload(cfg)
	}
	a.logger.Info("app: configuration reloaded",
		"devices", len(cfg.Devices),
		"object_defs", len(cfg.ObjectDefs),
	)
}

func (a *App) setLoaded(cfg *config.LoadedConfig) {
	a.mu.Lock()
	a.loadedCfg = cfg
	a.mu.Unlock()
}

func (a *App) release() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.logger.Error("app: queue close error", "error", err.Error())
		}
		a.queue = nil
	}
	if a.deadLetters != nil {
		if err := a.deadLetters.Close(); err != nil {
			a.logger.Error("app: dead-letter close error", "error", err.Error())
		}
		a.deadLetters = nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Queue inspection
// ─────────────────────────────────────────────────────────────────────────────

// QueueDepth is the length of one stage queue.
type QueueDepth struct {
	Kind  models.Kind
	Queue string
	Len   int64
}

// QueueLengther is the subset of transport/redis.Queue used by QueueDepths.
type QueueLengther interface {
	Len(ctx context.Context, queue string) (int64, error)
}

// QueueDepths reports every queue of instance in pipeline order.
func QueueDepths(ctx context.Context, q QueueLengther, namer action.Namer, instance string) ([]QueueDepth, error) {
	out := make([]QueueDepth, 0, len(models.Kinds()))
	for _, k := range models.Kinds() {
		name, err := namer.Queue(instance, k)
		if err != nil {
			return nil, err
		}
		n, err := q.Len(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, QueueDepth{Kind: k, Queue: name, Len: n})
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
