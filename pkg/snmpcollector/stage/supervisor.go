// Package stage holds the pipeline stages driven by the runner. Each stage
// implements only the handlers for the actions it consumes:
//
//	supervisor: Trigger                  → SnmpWalk × N, Summary
//	walker:     SnmpWalk                 → Result
//	annotator:  Result                   → AnnotatedResult
//	summary:    Summary, AnnotatedResult → (terminal)
//
// Stages that depend on configuration expose Reload so a config watcher can
// swap their view of the device fleet while they are running.
package stage

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/config"
)

// Reloader is implemented by stages that follow configuration changes.
type Reloader interface {
	Reload(cfg *config.LoadedConfig)
}

// ─────────────────────────────────────────────────────────────────────────────
// Supervisor
// ─────────────────────────────────────────────────────────────────────────────

// Supervisor fans a Trigger out into one SnmpWalk per target and closes the
// round with a Summary counting the walks it issued.
type Supervisor struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	targets []string
}

// NewSupervisor returns a Supervisor walking the devices of cfg.
func NewSupervisor(cfg *config.LoadedConfig, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	s := &Supervisor{logger: logger, now: time.Now}
	s.SetTargets(cfg.Hostnames())
	return s
}

// SetClock replaces the time source used for Summary timestamps.
func (s *Supervisor) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetTargets replaces the target set. Duplicates are removed and the result
// is sorted.
func (s *Supervisor) SetTargets(targets []string) {
	seen := make(map[string]bool, len(targets))
	next := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		next = append(next, t)
	}
	sort.Strings(next)

	s.mu.Lock()
	s.targets = next
	s.mu.Unlock()
}

// Targets returns a copy of the current target set.
func (s *Supervisor) Targets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.targets...)
}

// Reload takes the target set from cfg.
func (s *Supervisor) Reload(cfg *config.LoadedConfig) {
	s.SetTargets(cfg.Hostnames())
	s.logger.Info("supervisor: targets reloaded", "targets", len(s.Targets()))
}

// OnTrigger starts a round. The Summary is last and its Targets equals the
// number of SnmpWalk actions before it.
func (s *Supervisor) OnTrigger(ctx context.Context) ([]models.Action, error) {
	s.mu.RLock()
	targets := s.targets
	now := s.now()
	s.mu.RUnlock()

	out := make([]models.Action, 0, len(targets)+1)
	for _, t := range targets {
		out = append(out, models.SnmpWalk{Target: t})
	}
	out = append(out, models.Summary{
		Timestamp: float64(now.Unix()) + float64(now.Nanosecond())/1e9,
		Targets:   len(targets),
	})

	s.logger.Debug("supervisor: round started", "targets", len(targets))
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// noopWriter
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
