// Package msgpack implements the MessagePack action codec. It produces the
// same wire schema as format/json in a compact binary form.
package msgpack

import (
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/action"
)

// Name is the codec name used by the --codec flag.
const Name = "msgpack"

// Codec implements action.Codec with vmihailenco/msgpack. Struct fields are
// encoded by their msgpack tags, so keys match the JSON encoding.
type Codec struct {
	logger *slog.Logger
}

var _ action.Codec = (*Codec)(nil)

// New constructs a Codec. If logger is nil, a no-op logger is substituted.
func New(logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Codec{logger: logger}
}

// Name implements action.Codec.
func (c *Codec) Name() string { return Name }

// Encode serialises a to MessagePack.
func (c *Codec) Encode(a models.Action) ([]byte, error) {
	data, err := action.Marshal(msgpack.Marshal, a)
	if err != nil {
		c.logger.Error("format/msgpack: encode failed", "error", err.Error())
		return nil, err
	}
	return data, nil
}

// Decode parses one MessagePack action.
func (c *Codec) Decode(data []byte) (models.Action, error) {
	return action.Unmarshal(msgpack.Unmarshal, data)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
