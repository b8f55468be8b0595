// Package json implements the JSON action codec for the pipeline queues.
//
// Pipeline position:
//
//	stage handler → format/json (Encode) → transport/redis → format/json (Decode) → next stage
//
// The wire schema itself is defined once in pkg/snmpcollector/action; this
// package only supplies encoding/json as the marshaller.
package json

import (
	"encoding/json"
	"log/slog"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/action"
)

// Name is the codec name used by the --codec flag.
const Name = "json"

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config controls Codec behaviour.
type Config struct {
	// PrettyPrint emits indented JSON when true. Use false (default) on the
	// queues to minimise byte count; pretty output is meant for dead letters
	// read by humans.
	PrettyPrint bool

	// Indent is the indent string used when PrettyPrint=true.
	// Defaults to two spaces when empty and PrettyPrint=true.
	Indent string
}

// ─────────────────────────────────────────────────────────────────────────────
// Codec
// ─────────────────────────────────────────────────────────────────────────────

// Codec implements action.Codec with encoding/json. It is safe for concurrent
// use; all fields are immutable after construction.
type Codec struct {
	cfg    Config
	logger *slog.Logger
}

var _ action.Codec = (*Codec)(nil)

// New constructs a Codec. If logger is nil, a no-op logger is substituted.
func New(cfg Config, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.PrettyPrint && cfg.Indent == "" {
		cfg.Indent = "  "
	}
	return &Codec{cfg: cfg, logger: logger}
}

// Name implements action.Codec.
func (c *Codec) Name() string { return Name }

// Encode serialises a to JSON, e.g.
//
//	{"type":"SnmpWalk","target":"sw1.example.com"}
func (c *Codec) Encode(a models.Action) ([]byte, error) {
	marshal := json.Marshal
	if c.cfg.PrettyPrint {
		marshal = func(v interface{}) ([]byte, error) {
			return json.MarshalIndent(v, "", c.cfg.Indent)
		}
	}
	data, err := action.Marshal(marshal, a)
	if err != nil {
		c.logger.Error("format/json: encode failed", "error", err.Error())
		return nil, err
	}
	c.logger.Debug("format/json: encoded action", "kind", a.Kind().String(), "bytes", len(data))
	return data, nil
}

// Decode parses one JSON action. Errors match action.ErrUnknownActionType or
// action.ErrMalformedAction.
func (c *Codec) Decode(data []byte) (models.Action, error) {
	return action.Unmarshal(json.Unmarshal, data)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

// noopWriter discards all log output when no logger is provided.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
