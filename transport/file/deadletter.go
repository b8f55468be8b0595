package file

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeadLetter is one rejected queue message as written to the sink, e.g.
//
//	{"id":"5b1c…","queue":"dhmon:snmp:dc1:Result","reason":"unknown_type",
//	 "error":"action: decode type \"Walk\": unknown action type",
//	 "payload":"eyJ0eXBlIjoi…","at":"2026-10-18T10:30:00Z"}
type DeadLetter struct {
	ID      string    `json:"id"`
	Queue   string    `json:"queue"`
	Reason  string    `json:"reason"`
	Error   string    `json:"error"`
	Payload []byte    `json:"payload"`
	At      time.Time `json:"at"`
}

// DeadLetterSink formats DeadLetter records as JSON lines on a Transport.
type DeadLetterSink struct {
	t   Transport
	now func() time.Time
}

// NewDeadLetterSink wraps t.
func NewDeadLetterSink(t Transport) *DeadLetterSink {
	return &DeadLetterSink{t: t, now: time.Now}
}

// Write records payload, received on queue, as rejected for reason. The
// returned record carries the generated ID for log correlation.
func (s *DeadLetterSink) Write(queue, reason string, cause error, payload []byte) (DeadLetter, error) {
	rec := DeadLetter{
		ID:      uuid.NewString(),
		Queue:   queue,
		Reason:  reason,
		Payload: payload,
		At:      s.now().UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("transport/file: marshal dead letter: %w", err)
	}
	if err := s.t.Send(data); err != nil {
		return rec, err
	}
	return rec, nil
}

// Close closes the underlying transport.
func (s *DeadLetterSink) Close() error {
	return s.t.Close()
}
