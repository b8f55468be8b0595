// Package action implements the action dispatch protocol of the pipeline:
// routing an action to the stage handler that understands it, naming the
// queue each action kind travels on, and the wire schema shared by the codecs.
//
// Dispatch and Namer.Queue are pure functions of their arguments and are safe
// for concurrent use without synchronisation.
package action

import (
	"context"
	"fmt"

	"github.com/dhmon/snmpcollector/models"
)

// Dispatch invokes the one handler of stage that corresponds to a's kind,
// forwarding a's fields, and returns the handler's result unchanged.
//
// If stage lacks the handler an *UnsupportedActionError is returned and no
// handler is called. stage may implement any subset of the handler
// interfaces in this package.
func Dispatch(ctx context.Context, a models.Action, stage any) ([]models.Action, error) {
	switch a := a.(type) {
	case models.Trigger:
		h, ok := stage.(TriggerHandler)
		if !ok {
			return nil, unsupported(a.Kind(), "OnTrigger")
		}
		return h.OnTrigger(ctx)

	case models.SnmpWalk:
		h, ok := stage.(SnmpWalkHandler)
		if !ok {
			return nil, unsupported(a.Kind(), "OnSnmpWalk")
		}
		return h.OnSnmpWalk(ctx, a.Target)

	case models.Summary:
		h, ok := stage.(SummaryHandler)
		if !ok {
			return nil, unsupported(a.Kind(), "OnSummary")
		}
		return h.OnSummary(ctx, a.Timestamp, a.Targets)

	case models.Result:
		h, ok := stage.(ResultHandler)
		if !ok {
			return nil, unsupported(a.Kind(), "OnResult")
		}
		return h.OnResult(ctx, a.Target, a.Results, a.Stats)

	case models.AnnotatedResult:
		if h, ok := stage.(AnnotatedResultHandler); ok {
			return h.OnAnnotatedResult(ctx, a.Target, a.Results, a.Stats)
		}
		h, ok := stage.(ResultHandler)
		if !ok {
			return nil, unsupported(a.Kind(), "OnResult")
		}
		return h.OnResult(ctx, a.Target, a.Results, a.Stats)

	case nil:
		return nil, fmt.Errorf("action: dispatch nil action: %w", ErrUnknownActionType)

	default:
		return nil, fmt.Errorf("action: dispatch %T: %w", a, ErrUnknownActionType)
	}
}

// Supports reports whether stage can handle actions of kind k.
func Supports(stage any, k models.Kind) bool {
	switch k {
	case models.KindTrigger:
		_, ok := stage.(TriggerHandler)
		return ok
	case models.KindSnmpWalk:
		_, ok := stage.(SnmpWalkHandler)
		return ok
	case models.KindSummary:
		_, ok := stage.(SummaryHandler)
		return ok
	case models.KindResult:
		_, ok := stage.(ResultHandler)
		return ok
	case models.KindAnnotatedResult:
		if _, ok := stage.(AnnotatedResultHandler); ok {
			return true
		}
		_, ok := stage.(ResultHandler)
		return ok
	default:
		return false
	}
}

// Capability returns the handler method name that serves kind k.
func Capability(k models.Kind) string {
	switch k {
	case models.KindTrigger:
		return "OnTrigger"
	case models.KindSnmpWalk:
		return "OnSnmpWalk"
	case models.KindSummary:
		return "OnSummary"
	case models.KindResult, models.KindAnnotatedResult:
		return "OnResult"
	default:
		return ""
	}
}

func unsupported(k models.Kind, capability string) error {
	return &UnsupportedActionError{Kind: k, Capability: capability}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dispatcher
// ─────────────────────────────────────────────────────────────────────────────

// Dispatcher binds a stage at construction so callers only pass actions.
type Dispatcher struct {
	stage any
}

// NewDispatcher returns a Dispatcher for stage. It fails with
// ErrUnsupportedAction when stage cannot handle one of the required kinds.
func NewDispatcher(stage any, required ...models.Kind) (*Dispatcher, error) {
	if stage == nil {
		return nil, fmt.Errorf("action: stage must not be nil")
	}
	for _, k := range required {
		if !k.Valid() {
			return nil, fmt.Errorf("action: required kind %q: %w", k, ErrUnknownActionType)
		}
		if !Supports(stage, k) {
			return nil, unsupported(k, Capability(k))
		}
	}
	return &Dispatcher{stage: stage}, nil
}

// Dispatch calls Dispatch with the bound stage.
func (d *Dispatcher) Dispatch(ctx context.Context, a models.Action) ([]models.Action, error) {
	return Dispatch(ctx, a, d.stage)
}

// Supports reports whether the bound stage handles kind k.
func (d *Dispatcher) Supports(k models.Kind) bool {
	return Supports(d.stage, k)
}
