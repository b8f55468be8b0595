package file_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dhmon/snmpcollector/transport/file"
)

func TestDeadLetterSink_Write(t *testing.T) {
	var buf bytes.Buffer
	sink := file.NewDeadLetterSink(file.New(file.Config{Writer: &buf}, nil))

	payload := []byte(`{"type":"Walk"}`)
	rec, err := sink.Write("dhmon:snmp:dc1:SnmpWalk", "unknown_type", errors.New("unknown action type"), payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", rec.ID, err)
	}

	var got file.DeadLetter
	if err := json.Unmarshal(bytes.TrimRight(buf.Bytes(), "\n"), &got); err != nil {
		t.Fatalf("unmarshal record: %v (%s)", err, buf.String())
	}
	if got.ID != rec.ID || got.Queue != "dhmon:snmp:dc1:SnmpWalk" || got.Reason != "unknown_type" {
		t.Errorf("record = %+v", got)
	}
	if got.Error != "unknown action type" {
		t.Errorf("Error = %q", got.Error)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("Payload = %q, want %q", got.Payload, payload)
	}
	if got.At.IsZero() {
		t.Error("At is zero")
	}
}

func TestDeadLetterSink_NilCause(t *testing.T) {
	var buf bytes.Buffer
	sink := file.NewDeadLetterSink(file.New(file.Config{Writer: &buf}, nil))
	rec, err := sink.Write("q", "handler_error", nil, nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rec.Error != "" {
		t.Errorf("Error = %q, want empty", rec.Error)
	}
}

func TestDeadLetterSink_TransportError(t *testing.T) {
	sink := file.NewDeadLetterSink(file.New(file.Config{Writer: errWriter{}}, nil))
	if _, err := sink.Write("q", "malformed", nil, []byte("x")); err == nil {
		t.Error("expected error")
	}
}
