package decoder

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/dhmon/snmpcollector/models"
)

// interfaceTags are the tag attributes that name a row's interface, most
// preferred first.
var interfaceTags = []string{"ifDescr", "ifName", "ifAlias"}

// ─────────────────────────────────────────────────────────────────────────────
// Annotator
// ─────────────────────────────────────────────────────────────────────────────

// column is one attribute of one object definition, keyed by its OID.
type column struct {
	object *models.ObjectDefinition
	key    string // attribute key in the YAML, e.g. "ifInOctets"
	attr   models.AttributeDefinition
}

// Annotator maps raw readings back to the MIB objects they belong to. It is
// immutable after construction and safe for concurrent use.
type Annotator struct {
	columns map[string]column
	logger  *slog.Logger
}

// NewAnnotator indexes the attribute OIDs of defs. When two attributes share
// an OID the one from the lexically first object key wins.
func NewAnnotator(defs []models.ObjectDefinition, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	sorted := make([]models.ObjectDefinition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	a := &Annotator{columns: make(map[string]column), logger: logger}
	for i := range sorted {
		def := &sorted[i]
		for key, attr := range def.Attributes {
			oid := NormaliseOID(attr.OID)
			if oid == "" {
				logger.Warn("decoder: attribute without OID", "object", def.Key, "attribute", key)
				continue
			}
			if _, dup := a.columns[oid]; dup {
				continue
			}
			a.columns[oid] = column{object: def, key: key, attr: attr}
		}
	}
	return a
}

// Columns returns the number of indexed attribute OIDs.
func (a *Annotator) Columns() int { return len(a.columns) }

// match finds the attribute whose OID is the longest prefix of oid and
// returns the remaining index suffix. A reading equal to the attribute OID
// has the scalar index "0".
func (a *Annotator) match(oid string) (column, string, bool) {
	if c, ok := a.columns[oid]; ok {
		return c, "0", true
	}
	for prefix := oid; ; {
		dot := strings.LastIndexByte(prefix, '.')
		if dot < 0 {
			return column{}, "", false
		}
		prefix = prefix[:dot]
		if c, ok := a.columns[prefix]; ok {
			return c, oid[len(prefix)+1:], true
		}
	}
}

// Annotate resolves readings in order. Readings that match no attribute are
// dropped. Interface is taken from the row's ifDescr/ifName tag column, and
// VLAN from an index component named "vlan".
func (a *Annotator) Annotate(readings models.Readings) models.AnnotatedEntries {
	type matched struct {
		r      models.Reading
		col    column
		suffix string
	}
	rows := make([]matched, 0, len(readings))
	labels := make(map[string]string) // row key → interface label
	labelRank := make(map[string]int) // row key → rank of the label's tag

	for _, r := range readings {
		col, suffix, ok := a.match(NormaliseOID(r.OID))
		if !ok {
			continue
		}
		rows = append(rows, matched{r: r, col: col, suffix: suffix})

		if !col.attr.IsTag {
			continue
		}
		rank := tagRank(col)
		if rank < 0 {
			continue
		}
		rk := rowKey(col.object, suffix)
		if prev, seen := labelRank[rk]; seen && prev <= rank {
			continue
		}
		labels[rk] = label(a.convert(r.Value, col))
		labelRank[rk] = rank
	}

	out := make(models.AnnotatedEntries, 0, len(rows))
	for _, m := range rows {
		e := models.AnnotatedResultEntry{
			Data:  a.convert(m.r.Value, m.col),
			MIB:   m.col.object.MIB,
			Obj:   m.col.attr.Name,
			Index: indexValue(m.suffix),
		}
		if e.Obj == "" {
			e.Obj = m.col.key
		}
		e.Interface = labels[rowKey(m.col.object, m.suffix)]
		e.VLAN = vlanOf(m.col.object, m.suffix)
		out = append(out, e)
	}

	if dropped := len(readings) - len(rows); dropped > 0 {
		a.logger.Debug("decoder: readings outside configured objects dropped",
			"dropped", dropped,
			"annotated", len(out),
		)
	}
	return out
}

// convert applies the column syntax, keeping the raw value when it does not
// fit.
func (a *Annotator) convert(v models.Value, col column) models.Value {
	out, err := ConvertValue(v, col.attr.Syntax)
	if err != nil {
		a.logger.Debug("decoder: value kept unconverted",
			"object", col.object.Key,
			"attribute", col.key,
			"syntax", col.attr.Syntax,
			"error", err.Error(),
		)
		return v
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// tagRank orders interface-naming tags; -1 means the tag does not name one.
func tagRank(c column) int {
	for i, name := range interfaceTags {
		if c.key == name || c.attr.Name == name {
			return i
		}
	}
	return -1
}

// rowKey groups readings of one table row. Tables indexed by the same named
// index (e.g. ifEntry and ifXEntry on "netif") share rows.
func rowKey(def *models.ObjectDefinition, suffix string) string {
	if len(def.Index) > 0 && def.Index[0].Name != "" {
		return def.Index[0].Name + "|" + suffix
	}
	return def.Key + "|" + suffix
}

// indexValue returns an integer index for a single numeric component and the
// raw suffix string otherwise.
func indexValue(suffix string) models.Value {
	if !strings.Contains(suffix, ".") {
		if n, err := strconv.ParseInt(suffix, 10, 64); err == nil {
			return models.IntValue(n)
		}
	}
	return models.StringValue(suffix)
}

// vlanOf extracts the index component named "vlan". Components before it
// must be single-component integers for the position to be known.
func vlanOf(def *models.ObjectDefinition, suffix string) int {
	parts := strings.Split(suffix, ".")
	for i, idx := range def.Index {
		if i >= len(parts) {
			return 0
		}
		if strings.EqualFold(idx.Name, "vlan") {
			n, err := strconv.Atoi(parts[i])
			if err != nil {
				return 0
			}
			return n
		}
		if !singleComponent(idx.Type) {
			return 0
		}
	}
	return 0
}

func singleComponent(indexType string) bool {
	switch indexType {
	case "", "Integer", "Integer32", "InterfaceIndex", "Unsigned32", "Gauge32":
		return true
	}
	return false
}

func label(v models.Value) string {
	switch v.Kind {
	case models.ValueString:
		return v.Str
	case models.ValueBytes:
		return strings.TrimRight(string(v.Bytes), "\x00")
	default:
		return v.String()
	}
}

// NormaliseOID strips whitespace and a leading dot.
func NormaliseOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

// ─────────────────────────────────────────────────────────────────────────────
// noopWriter: discard all log output when no logger is provided
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
