package models

// ObjectDefinition is the parsed form of one object YAML entry
// (e.g. IF-MIB::ifEntry). The walker derives the OID subtree to walk from it
// and the annotator uses it to map a raw OID back to its MIB object.
type ObjectDefinition struct {
	// Key is the object identifier, e.g. "IF-MIB::ifEntry".
	Key string

	// MIB is the MIB module name, e.g. "IF-MIB".
	MIB string

	// Object is the object name within the MIB, e.g. "ifEntry".
	Object string

	// Index describes the table index components in declaration order.
	// Scalar objects have an empty slice.
	Index []IndexDefinition

	// Attributes is the set of columns (or scalar fields) keyed by the SNMP
	// attribute name, e.g. "ifInOctets".
	Attributes map[string]AttributeDefinition
}

// IndexDefinition describes a single component of a table's OID index.
type IndexDefinition struct {
	// Type is the OID index encoding, e.g. "Integer", "IpAddress", "OctetString".
	Type string

	// OID is the numeric OID of the index object, e.g. "1.3.6.1.2.1.2.2.1.1".
	OID string

	// Name is the semantic name of the index, e.g. "netif" or "vlan".
	Name string
}

// AttributeDefinition describes a single column within an SNMP table or a
// scalar field.
type AttributeDefinition struct {
	// OID is the full numeric OID of the attribute without a leading dot.
	OID string

	// Name is the attribute name reported in annotated entries, e.g. "ifInOctets".
	Name string

	// Syntax is the config syntax hint, e.g. "Counter64" or "DisplayString".
	Syntax string

	// IsTag marks a label column (e.g. ifDescr). Its value names the interface
	// of the sibling readings in the same table row.
	IsTag bool
}

// IsScalar reports whether the object has no table index.
func (d ObjectDefinition) IsScalar() bool {
	return len(d.Index) == 0
}
