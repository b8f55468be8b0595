package action

import (
	"context"

	"github.com/dhmon/snmpcollector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stage capabilities
// ─────────────────────────────────────────────────────────────────────────────
//
// A stage implements one or more of the handler interfaces below. Each handler
// returns the follow-up actions in the order they must be routed; an empty or
// nil slice means the action was terminal.

// TriggerHandler starts a polling round.
type TriggerHandler interface {
	OnTrigger(ctx context.Context) ([]models.Action, error)
}

// SnmpWalkHandler walks one target.
type SnmpWalkHandler interface {
	OnSnmpWalk(ctx context.Context, target string) ([]models.Action, error)
}

// SummaryHandler receives the boundary of a polling round.
type SummaryHandler interface {
	OnSummary(ctx context.Context, timestamp float64, targets int) ([]models.Action, error)
}

// ResultHandler receives walk output. results is models.Readings for a Result
// and models.AnnotatedEntries for an AnnotatedResult delivered to a stage that
// does not implement AnnotatedResultHandler.
type ResultHandler interface {
	OnResult(ctx context.Context, target string, results models.ResultSet, stats models.Statistics) ([]models.Action, error)
}

// AnnotatedResultHandler is optional. When present it takes precedence over
// ResultHandler for AnnotatedResult actions.
type AnnotatedResultHandler interface {
	OnAnnotatedResult(ctx context.Context, target string, results models.AnnotatedEntries, stats models.Statistics) ([]models.Action, error)
}

// Stage is a stage that handles every action kind.
type Stage interface {
	TriggerHandler
	SnmpWalkHandler
	SummaryHandler
	ResultHandler
}
