package stage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/metrics"
)

// Summarizer is the terminal stage. It handles Summary and, through its
// Result handler, AnnotatedResult. It records per-target walk statistics and
// tracks whether every walk of a round came back.
//
// Results do not name their round. When a round is superseded its missing
// walks are booked as lost and become owed: until the next Summary, the
// first result from a target that had not reported in the superseded round
// is taken as the late one and is not credited to the open round. If that
// target then sends no second result, the absorbed one is credited back to
// the open round when the round closes.
type Summarizer struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	round  *round
	early  []string // results seen while no round was waiting for them
	owed   int      // late results still expected from the superseded round
	paid   map[string]bool
	totals SummaryStats
}

// round is one polling round opened by a Summary.
type round struct {
	timestamp float64
	expected  int
	seen      int
	opened    time.Time
	done      bool

	reported map[string]bool // targets credited to this round
	absorbed map[string]bool // targets whose result was taken as owed
}

// SummaryStats are the running totals of a Summarizer.
type SummaryStats struct {
	Results int // results received
	Rounds  int // rounds that saw all their results
	Lost    int // walks whose result never arrived before the next round
	Late    int // results that arrived after their round was superseded
}

// NewSummarizer returns a Summarizer recording into m (which may be nil).
func NewSummarizer(m *metrics.Metrics, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Summarizer{metrics: m, logger: logger, now: time.Now}
}

// SetClock replaces the time source used to measure round duration.
func (s *Summarizer) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Stats returns the running totals.
func (s *Summarizer) Stats() SummaryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// OnSummary opens a round expecting targets results. An unfinished previous
// round is closed and its missing results are counted as lost. Results that
// arrived ahead of this Summary are credited to the new round.
func (s *Summarizer) OnSummary(ctx context.Context, timestamp float64, targets int) ([]models.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.owed, s.paid = 0, nil
	if r := s.round; r != nil {
		s.settle(r)
		if !r.done {
			lost := r.expected - r.seen
			s.totals.Lost += lost
			s.metrics.LostWalks(lost)
			s.owed = lost
			s.paid = r.reported
			s.logger.Warn("summary: round superseded before completion",
				"timestamp", r.timestamp,
				"expected", r.expected,
				"seen", r.seen,
				"lost", lost,
			)
		}
	}

	s.round = &round{
		timestamp: timestamp,
		expected:  targets,
		opened:    s.now(),
		reported:  make(map[string]bool),
		absorbed:  make(map[string]bool),
	}
	n := min(len(s.early), targets)
	for _, t := range s.early[:n] {
		s.round.seen++
		s.round.reported[t] = true
	}
	s.early = s.early[n:]
	s.checkDone()
	return nil, nil
}

// OnResult accounts one walk result. It is called for AnnotatedResult as
// well as for Result.
func (s *Summarizer) OnResult(ctx context.Context, target string, results models.ResultSet, stats models.Statistics) ([]models.Action, error) {
	s.metrics.SetWalkStats(target, stats.Timeouts, stats.Errors)

	n := 0
	if results != nil {
		n = results.Len()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals.Results++
	r := s.round
	switch {
	case r != nil && s.owed > 0 && !s.paid[target] && !r.absorbed[target]:
		s.owed--
		r.absorbed[target] = true
	case r == nil || r.done:
		s.early = append(s.early, target)
	default:
		s.credit(r, target)
	}

	s.logger.Debug("summary: result received",
		"target", target,
		"entries", n,
		"timeouts", stats.Timeouts,
		"errors", stats.Errors,
	)
	return nil, nil
}

// credit counts target towards r. The caller holds s.mu.
func (s *Summarizer) credit(r *round, target string) {
	r.seen++
	r.reported[target] = true
	if r.absorbed[target] {
		s.totals.Late++
		s.metrics.LateResult()
	}
	s.checkDone()
}

// settle resolves the results r absorbed as owed. A target that reported
// again was late; one that did not was this round's own result. The caller
// holds s.mu.
func (s *Summarizer) settle(r *round) {
	for target := range r.absorbed {
		if r.reported[target] {
			continue
		}
		if r.done {
			// Complete without it, so the absorbed result was late after all.
			s.totals.Late++
			s.metrics.LateResult()
			continue
		}
		r.seen++
		r.reported[target] = true
		if r.seen >= r.expected {
			r.done = true
			s.totals.Rounds++
			s.metrics.RoundCompleted(-1)
			s.logger.Info("summary: round complete",
				"timestamp", r.timestamp,
				"targets", r.expected,
			)
		}
	}
}

// checkDone closes the current round when all its results are in. The
// caller holds s.mu.
func (s *Summarizer) checkDone() {
	r := s.round
	if r.done || r.seen < r.expected {
		return
	}
	r.done = true
	s.totals.Rounds++
	d := s.now().Sub(r.opened)
	s.metrics.RoundCompleted(d)
	s.logger.Info("summary: round complete",
		"timestamp", r.timestamp,
		"targets", r.expected,
		"duration_ms", d.Milliseconds(),
	)
}
