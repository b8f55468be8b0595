package stage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/config"
)

// TargetWalker walks one resolved target. *poller.Walker implements it.
type TargetWalker interface {
	Walk(ctx context.Context, target config.Target) (models.Readings, models.Statistics)
}

// Walker answers each SnmpWalk with the Result of walking that target.
type Walker struct {
	walker TargetWalker
	logger *slog.Logger

	mu      sync.RWMutex
	targets map[string]config.Target
}

// NewWalker returns a Walker resolving targets from cfg.
func NewWalker(w TargetWalker, cfg *config.LoadedConfig, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	s := &Walker{walker: w, logger: logger}
	s.targets = s.resolve(cfg)
	return s
}

// Reload re-resolves every target from cfg.
func (s *Walker) Reload(cfg *config.LoadedConfig) {
	targets := s.resolve(cfg)
	s.mu.Lock()
	s.targets = targets
	s.mu.Unlock()
	s.logger.Info("walker: targets reloaded", "targets", len(targets))
}

func (s *Walker) resolve(cfg *config.LoadedConfig) map[string]config.Target {
	resolved := cfg.ResolveTargets(s.logger)
	out := make(map[string]config.Target, len(resolved))
	for _, t := range resolved {
		out[t.Hostname] = t
	}
	return out
}

// OnSnmpWalk walks target. A target missing from the configuration yields a
// Result with no readings and one error.
func (s *Walker) OnSnmpWalk(ctx context.Context, target string) ([]models.Action, error) {
	s.mu.RLock()
	t, ok := s.targets[target]
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("walker: unknown target", "target", target)
		return []models.Action{models.Result{
			Target:  target,
			Results: models.Readings{},
			Stats:   models.Statistics{Errors: 1},
		}}, nil
	}

	readings, stats := s.walker.Walk(ctx, t)
	return []models.Action{models.Result{
		Target:  target,
		Results: readings,
		Stats:   stats,
	}}, nil
}
