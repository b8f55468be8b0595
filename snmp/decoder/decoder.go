// Package decoder turns gosnmp responses into the readings carried by Result
// actions and resolves those readings against the object definitions to
// produce annotated entries.
//
//	walker:    []gosnmp.SnmpPDU → Decode → models.Readings
//	annotator: models.Readings → Annotator.Annotate → models.AnnotatedEntries
package decoder

import (
	"github.com/gosnmp/gosnmp"

	"github.com/dhmon/snmpcollector/models"
)

// DecodePDU converts one PDU. It reports false for the error sentinels
// (NoSuchObject, NoSuchInstance, EndOfMibView, Null), which carry no data.
func DecodePDU(pdu gosnmp.SnmpPDU) (models.Reading, bool) {
	if IsErrorType(pdu.Type) {
		return models.Reading{}, false
	}
	return models.Reading{
		OID:   NormaliseOID(pdu.Name),
		Type:  PDUTypeString(pdu.Type),
		Value: PDUValue(pdu.Type, pdu.Value),
	}, true
}

// Decode converts pdus in order, skipping error sentinels.
func Decode(pdus []gosnmp.SnmpPDU) models.Readings {
	out := make(models.Readings, 0, len(pdus))
	for i := range pdus {
		if r, ok := DecodePDU(pdus[i]); ok {
			out = append(out, r)
		}
	}
	return out
}
