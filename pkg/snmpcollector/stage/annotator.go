package stage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/config"
	"github.com/dhmon/snmpcollector/snmp/decoder"
)

// Annotator turns each Result into an AnnotatedResult using the configured
// object definitions.
type Annotator struct {
	logger *slog.Logger

	mu        sync.RWMutex
	annotator *decoder.Annotator
}

// NewAnnotator returns an Annotator over the object definitions of cfg.
func NewAnnotator(cfg *config.LoadedConfig, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Annotator{
		logger:    logger,
		annotator: decoder.NewAnnotator(cfg.ObjectList(), logger),
	}
}

// Reload rebuilds the OID index from cfg.
func (a *Annotator) Reload(cfg *config.LoadedConfig) {
	next := decoder.NewAnnotator(cfg.ObjectList(), a.logger)
	a.mu.Lock()
	a.annotator = next
	a.mu.Unlock()
	a.logger.Info("annotator: object definitions reloaded", "columns", next.Columns())
}

// OnResult annotates raw readings. Statistics are forwarded unchanged.
func (a *Annotator) OnResult(ctx context.Context, target string, results models.ResultSet, stats models.Statistics) ([]models.Action, error) {
	var readings models.Readings
	switch r := results.(type) {
	case models.Readings:
		readings = r
	case nil:
	default:
		return nil, fmt.Errorf("annotator: result for %s is already annotated", target)
	}

	a.mu.RLock()
	an := a.annotator
	a.mu.RUnlock()

	entries := an.Annotate(readings)
	a.logger.Debug("annotator: result annotated",
		"target", target,
		"readings", len(readings),
		"entries", len(entries),
	)
	return []models.Action{models.AnnotatedResult{
		Target:  target,
		Results: entries,
		Stats:   stats,
	}}, nil
}
