package action

import (
	"fmt"

	"github.com/dhmon/snmpcollector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Codec
// ─────────────────────────────────────────────────────────────────────────────

// Codec serialises actions for a queue. Implementations live under format/ and
// must round-trip every variant losslessly.
type Codec interface {
	// Name identifies the encoding, e.g. "json".
	Name() string
	Encode(a models.Action) ([]byte, error)
	Decode(data []byte) (models.Action, error)
}

// MarshalFunc and UnmarshalFunc match json.Marshal / msgpack.Marshal and
// json.Unmarshal / msgpack.Unmarshal.
type (
	MarshalFunc   func(v interface{}) ([]byte, error)
	UnmarshalFunc func(data []byte, v interface{}) error
)

// ─────────────────────────────────────────────────────────────────────────────
// Wire schema
// ─────────────────────────────────────────────────────────────────────────────
//
// An encoded action is one flat object: a "type" tag plus the variant's
// fields.
//
//	{"type":"Summary","timestamp":1000,"targets":5}
//	{"type":"Result","target":"sw1","results":[…],"stats":{"timeouts":0,"errors":2}}
//
// Pointer fields detect missing keys on decode. Unknown keys are ignored.

type wireHeader struct {
	Type string `json:"type" msgpack:"type"`
}

type wireTrigger struct {
	Type string `json:"type" msgpack:"type"`
}

type wireSnmpWalk struct {
	Type   string  `json:"type" msgpack:"type"`
	Target *string `json:"target" msgpack:"target"`
}

type wireSummary struct {
	Type      string   `json:"type" msgpack:"type"`
	Timestamp *float64 `json:"timestamp" msgpack:"timestamp"`
	Targets   *int     `json:"targets" msgpack:"targets"`
}

type wireResult[T models.Readings | models.AnnotatedEntries] struct {
	Type    string             `json:"type" msgpack:"type"`
	Target  *string            `json:"target" msgpack:"target"`
	Results *T                 `json:"results" msgpack:"results"`
	Stats   *models.Statistics `json:"stats" msgpack:"stats"`
}

// Marshal encodes a with marshal using the shared wire schema. A nil result
// slice is encoded as an empty list.
func Marshal(marshal MarshalFunc, a models.Action) ([]byte, error) {
	var v interface{}
	switch a := a.(type) {
	case models.Trigger:
		v = wireTrigger{Type: string(a.Kind())}
	case models.SnmpWalk:
		v = wireSnmpWalk{Type: string(a.Kind()), Target: &a.Target}
	case models.Summary:
		v = wireSummary{Type: string(a.Kind()), Timestamp: &a.Timestamp, Targets: &a.Targets}
	case models.Result:
		results := a.Results
		if results == nil {
			results = models.Readings{}
		}
		v = wireResult[models.Readings]{Type: string(a.Kind()), Target: &a.Target, Results: &results, Stats: &a.Stats}
	case models.AnnotatedResult:
		results := a.Results
		if results == nil {
			results = models.AnnotatedEntries{}
		}
		v = wireResult[models.AnnotatedEntries]{Type: string(a.Kind()), Target: &a.Target, Results: &results, Stats: &a.Stats}
	default:
		return nil, fmt.Errorf("action: encode %T: %w", a, ErrUnknownActionType)
	}
	data, err := marshal(v)
	if err != nil {
		return nil, fmt.Errorf("action: encode %s: %w", a.Kind(), err)
	}
	return data, nil
}

// Unmarshal decodes data with unmarshal using the shared wire schema.
//
// An unrecognised type tag fails with ErrUnknownActionType; a missing type tag,
// a missing field or unparseable data fails with ErrMalformedAction.
func Unmarshal(unmarshal UnmarshalFunc, data []byte) (models.Action, error) {
	var h wireHeader
	if err := unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("action: decode header: %v: %w", err, ErrMalformedAction)
	}
	if h.Type == "" {
		return nil, fmt.Errorf("action: decode: missing field \"type\": %w", ErrMalformedAction)
	}
	k, ok := models.ParseKind(h.Type)
	if !ok {
		return nil, fmt.Errorf("action: decode type %q: %w", h.Type, ErrUnknownActionType)
	}

	switch k {
	case models.KindTrigger:
		return models.Trigger{}, nil

	case models.KindSnmpWalk:
		var w wireSnmpWalk
		if err := unmarshal(data, &w); err != nil {
			return nil, malformed(k, err)
		}
		if w.Target == nil {
			return nil, missing(k, "target")
		}
		return models.SnmpWalk{Target: *w.Target}, nil

	case models.KindSummary:
		var w wireSummary
		if err := unmarshal(data, &w); err != nil {
			return nil, malformed(k, err)
		}
		if w.Timestamp == nil {
			return nil, missing(k, "timestamp")
		}
		if w.Targets == nil {
			return nil, missing(k, "targets")
		}
		return models.Summary{Timestamp: *w.Timestamp, Targets: *w.Targets}, nil

	case models.KindResult:
		target, results, stats, err := decodeResult[models.Readings](unmarshal, k, data)
		if err != nil {
			return nil, err
		}
		return models.Result{Target: target, Results: results, Stats: stats}, nil

	default: // models.KindAnnotatedResult
		target, results, stats, err := decodeResult[models.AnnotatedEntries](unmarshal, k, data)
		if err != nil {
			return nil, err
		}
		return models.AnnotatedResult{Target: target, Results: results, Stats: stats}, nil
	}
}

func decodeResult[T models.Readings | models.AnnotatedEntries](unmarshal UnmarshalFunc, k models.Kind, data []byte) (string, T, models.Statistics, error) {
	var w wireResult[T]
	if err := unmarshal(data, &w); err != nil {
		return "", nil, models.Statistics{}, malformed(k, err)
	}
	switch {
	case w.Target == nil:
		return "", nil, models.Statistics{}, missing(k, "target")
	case w.Results == nil:
		return "", nil, models.Statistics{}, missing(k, "results")
	case w.Stats == nil:
		return "", nil, models.Statistics{}, missing(k, "stats")
	}
	return *w.Target, *w.Results, *w.Stats, nil
}

func malformed(k models.Kind, err error) error {
	return fmt.Errorf("action: decode %s: %v: %w", k, err, ErrMalformedAction)
}

func missing(k models.Kind, field string) error {
	return fmt.Errorf("action: decode %s: missing field %q: %w", k, field, ErrMalformedAction)
}
