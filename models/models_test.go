package models_test

import (
	"reflect"
	"testing"

	"github.com/dhmon/snmpcollector/models"
)

func TestKinds_ValidAndParse(t *testing.T) {
	for _, k := range models.Kinds() {
		if !k.Valid() {
			t.Errorf("%s not valid", k)
		}
		got, ok := models.ParseKind(string(k))
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, ok)
		}
	}
	for _, s := range []string{"", "trigger", "Walk", "ResultSet"} {
		if _, ok := models.ParseKind(s); ok {
			t.Errorf("ParseKind(%q) accepted", s)
		}
	}
}

func TestAction_Kinds(t *testing.T) {
	tests := []struct {
		a    models.Action
		want models.Kind
	}{
		{models.Trigger{}, models.KindTrigger},
		{models.SnmpWalk{Target: "sw1"}, models.KindSnmpWalk},
		{models.Summary{Timestamp: 1, Targets: 2}, models.KindSummary},
		{models.Result{}, models.KindResult},
		{models.AnnotatedResult{}, models.KindAnnotatedResult},
	}
	for _, tt := range tests {
		if got := tt.a.Kind(); got != tt.want {
			t.Errorf("%T.Kind() = %s, want %s", tt.a, got, tt.want)
		}
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want models.Value
	}{
		{"nil", nil, models.NullValue()},
		{"int", 7, models.IntValue(7)},
		{"int32", int32(-3), models.IntValue(-3)},
		{"uint32", uint32(9), models.UintValue(9)},
		{"uint64", uint64(1 << 40), models.UintValue(1 << 40)},
		{"float32", float32(0.5), models.FloatValue(0.5)},
		{"string", "up", models.StringValue("up")},
		{"bytes", []byte{0xde, 0xad}, models.BytesValue([]byte{0xde, 0xad})},
		{"empty bytes", []byte{}, models.Value{Kind: models.ValueBytes}},
		{"bool", true, models.BoolValue(true)},
		{"value", models.IntValue(1), models.IntValue(1)},
		{"other", struct{ A int }{1}, models.StringValue("{1}")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := models.ValueOf(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValueOf(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBytesValue_Copies(t *testing.T) {
	b := []byte{1, 2}
	v := models.BytesValue(b)
	b[0] = 9
	if v.Bytes[0] != 1 {
		t.Error("BytesValue shares the caller's slice")
	}
}

func TestStringValue_InvalidUTF8BecomesBytes(t *testing.T) {
	if v := models.StringValue("Gi0/1"); v.Kind != models.ValueString || v.Str != "Gi0/1" {
		t.Errorf("valid string: got %#v", v)
	}
	v := models.StringValue("\x07\xe8\x0a\x13")
	if v.Kind != models.ValueBytes {
		t.Fatalf("Kind = %v, want bytes", v.Kind)
	}
	if string(v.Bytes) != "\x07\xe8\x0a\x13" {
		t.Errorf("Bytes = %x", v.Bytes)
	}
}

func TestValue_Accessors(t *testing.T) {
	tests := []struct {
		v       models.Value
		str     string
		f       float64
		numeric bool
	}{
		{models.IntValue(-2), "-2", -2, true},
		{models.UintValue(3), "3", 3, true},
		{models.FloatValue(1.5), "1.5", 1.5, true},
		{models.StringValue("eth0"), "eth0", 0, false},
		{models.BytesValue([]byte{0x0a, 0xff}), "0aff", 0, false},
		{models.BoolValue(false), "false", 0, false},
		{models.NullValue(), "null", 0, false},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		f, ok := tt.v.Float64()
		if ok != tt.numeric || f != tt.f {
			t.Errorf("%s: Float64() = %v, %v; want %v, %v", tt.str, f, ok, tt.f, tt.numeric)
		}
	}
}

func TestValue_IsNull(t *testing.T) {
	if !(models.Value{}).IsNull() || !models.NullValue().IsNull() {
		t.Error("zero and null values must be null")
	}
	if models.IntValue(0).IsNull() {
		t.Error("IntValue(0) reported null")
	}
	if models.NullValue().Interface() != nil {
		t.Error("null Interface() not nil")
	}
}

func TestResultSet_Len(t *testing.T) {
	var rs models.ResultSet = models.Readings{{OID: "1.3.6.1.2.1.1.3.0"}}
	if rs.Len() != 1 {
		t.Errorf("Readings.Len() = %d", rs.Len())
	}
	rs = models.AnnotatedEntries{}
	if rs.Len() != 0 {
		t.Errorf("AnnotatedEntries.Len() = %d", rs.Len())
	}
}

func TestObjectDefinition_IsScalar(t *testing.T) {
	if !(models.ObjectDefinition{}).IsScalar() {
		t.Error("object without index should be scalar")
	}
	table := models.ObjectDefinition{Index: []models.IndexDefinition{{Type: "Integer", Name: "netif"}}}
	if table.IsScalar() {
		t.Error("indexed object reported scalar")
	}
}
