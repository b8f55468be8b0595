// Package models defines the data carried between the stages of the SNMP
// pipeline. Every other package depends on this package and nothing here
// depends on any other internal package.
//
// An Action is one message travelling on a stage queue. The set of actions is
// closed: Trigger, SnmpWalk, Summary, Result and AnnotatedResult are the only
// implementations of the Action interface.
package models

// Kind is the stable type tag of an Action. It is used both on the wire and as
// the last component of a queue name, so the values below must never change.
type Kind string

const (
	KindTrigger         Kind = "Trigger"
	KindSnmpWalk        Kind = "SnmpWalk"
	KindSummary         Kind = "Summary"
	KindResult          Kind = "Result"
	KindAnnotatedResult Kind = "AnnotatedResult"
)

// Kinds returns every action kind in pipeline order.
func Kinds() []Kind {
	return []Kind{KindTrigger, KindSnmpWalk, KindSummary, KindResult, KindAnnotatedResult}
}

// Valid reports whether k is one of the known action kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTrigger, KindSnmpWalk, KindSummary, KindResult, KindAnnotatedResult:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// ParseKind converts a wire tag into a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, k.Valid()
}

// ─────────────────────────────────────────────────────────────────────────────
// Action variants
// ─────────────────────────────────────────────────────────────────────────────

// Action is an immutable unit of work or result moving between stages.
// The unexported method seals the interface to the variants in this file.
type Action interface {
	Kind() Kind
	action()
}

// Trigger asks the supervisor to start a new polling round.
type Trigger struct{}

// SnmpWalk asks a walker to walk one device.
type SnmpWalk struct {
	// Target is the device hostname as configured.
	Target string
}

// Summary closes a polling round. Targets equals the number of SnmpWalk
// actions the supervisor issued for the round identified by Timestamp.
type Summary struct {
	// Timestamp is the unix time, in seconds, used to group the round.
	Timestamp float64

	// Targets is the number of targets walked in this round.
	Targets int
}

// Result is the raw walk output for one target.
type Result struct {
	Target  string
	Results Readings
	Stats   Statistics
}

// AnnotatedResult is a Result whose readings have been resolved to MIB
// objects. It has the same shape as Result and is handled by a Result
// handler when a stage has no dedicated one.
type AnnotatedResult struct {
	Target  string
	Results AnnotatedEntries
	Stats   Statistics
}

func (Trigger) Kind() Kind { return KindTrigger }
func (SnmpWalk) Kind() Kind { return KindSnmpWalk }
func (Summary) Kind() Kind { return KindSummary }
func (Result) Kind() Kind { return KindResult }
func (AnnotatedResult) Kind() Kind { return KindAnnotatedResult }

func (Trigger) action() {}
func (SnmpWalk) action() {}
func (Summary) action() {}
func (Result) action() {}
func (AnnotatedResult) action() {}

// ─────────────────────────────────────────────────────────────────────────────
// Payload records
// ─────────────────────────────────────────────────────────────────────────────

// Statistics counts the failures of one walk attempt.
type Statistics struct {
	Timeouts int `json:"timeouts" msgpack:"timeouts"`
	Errors   int `json:"errors" msgpack:"errors"`
}

// Reading is one raw variable binding returned by a walk, with its value
// already converted from the PDU encoding.
type Reading struct {
	// OID is the full numeric OID without a leading dot.
	OID string `json:"oid" msgpack:"oid"`

	// Type is the SNMP PDU type, e.g. "Counter64".
	Type string `json:"type" msgpack:"type"`

	Value Value `json:"value" msgpack:"value"`
}

// AnnotatedResultEntry is a reading resolved to the MIB object it belongs to.
type AnnotatedResultEntry struct {
	Data  Value  `json:"data" msgpack:"data"`
	MIB   string `json:"mib" msgpack:"mib"`
	Obj   string `json:"obj" msgpack:"obj"`
	Index Value  `json:"index" msgpack:"index"` // integer or string

	// Interface and VLAN are empty / zero when not applicable. VLAN 0 is
	// reserved by 802.1Q, so zero never names a real VLAN.
	Interface string `json:"interface,omitempty" msgpack:"interface,omitempty"`
	VLAN      int    `json:"vlan,omitempty" msgpack:"vlan,omitempty"`
}

// ResultSet is the ordered payload of a Result or an AnnotatedResult.
// Handlers that accept both type-switch on Readings / AnnotatedEntries.
type ResultSet interface {
	Len() int
	resultSet()
}

// Readings is the payload of a Result.
type Readings []Reading

// AnnotatedEntries is the payload of an AnnotatedResult.
type AnnotatedEntries []AnnotatedResultEntry

func (r Readings) Len() int { return len(r) }
func (r AnnotatedEntries) Len() int { return len(r) }

func (Readings) resultSet() {}
func (AnnotatedEntries) resultSet() {}
