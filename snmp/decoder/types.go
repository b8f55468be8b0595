package decoder

import (
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/dhmon/snmpcollector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// SNMP PDU type names
// ─────────────────────────────────────────────────────────────────────────────

var pduTypeNames = map[gosnmp.Asn1BER]string{
	gosnmp.Integer:           "Integer",
	gosnmp.BitString:         "BitString",
	gosnmp.OctetString:       "OctetString",
	gosnmp.Null:              "Null",
	gosnmp.ObjectIdentifier:  "ObjectIdentifier",
	gosnmp.ObjectDescription: "ObjectDescription",
	gosnmp.IPAddress:         "IpAddress",
	gosnmp.Counter32:         "Counter32",
	gosnmp.Gauge32:           "Gauge32",
	gosnmp.TimeTicks:         "TimeTicks",
	gosnmp.Opaque:            "Opaque",
	gosnmp.NsapAddress:       "NsapAddress",
	gosnmp.Counter64:         "Counter64",
	gosnmp.Uinteger32:        "Unsigned32",
	gosnmp.OpaqueFloat:       "OpaqueFloat",
	gosnmp.OpaqueDouble:      "OpaqueDouble",
	gosnmp.NoSuchObject:      "NoSuchObject",
	gosnmp.NoSuchInstance:    "NoSuchInstance",
	gosnmp.EndOfMibView:      "EndOfMibView",
}

// PDUTypeString returns the name carried in models.Reading.Type for t.
func PDUTypeString(t gosnmp.Asn1BER) string {
	if name, ok := pduTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
}

// IsErrorType reports whether t signals a missing value rather than data.
func IsErrorType(t gosnmp.Asn1BER) bool {
	return t == gosnmp.NoSuchObject || t == gosnmp.NoSuchInstance || t == gosnmp.EndOfMibView || t == gosnmp.Null
}

// ─────────────────────────────────────────────────────────────────────────────
// PDU → Value
// ─────────────────────────────────────────────────────────────────────────────

// PDUValue converts a gosnmp value to a models.Value without interpreting it:
// signed types stay int, unsigned types stay uint and octet strings keep
// their raw bytes.
func PDUValue(t gosnmp.Asn1BER, v interface{}) models.Value {
	switch t {
	case gosnmp.Integer:
		if i, err := toInt64(v); err == nil {
			return models.IntValue(i)
		}
	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32, gosnmp.Counter64:
		if u, err := toUint64(v); err == nil {
			return models.UintValue(u)
		}
	case gosnmp.OctetString, gosnmp.BitString, gosnmp.Opaque, gosnmp.NsapAddress:
		switch x := v.(type) {
		case []byte:
			return models.BytesValue(x)
		case string:
			return models.BytesValue([]byte(x))
		}
	case gosnmp.ObjectIdentifier:
		if s, ok := v.(string); ok {
			return models.StringValue(strings.TrimPrefix(s, "."))
		}
	case gosnmp.IPAddress, gosnmp.ObjectDescription:
		if s, ok := v.(string); ok {
			return models.StringValue(s)
		}
	case gosnmp.OpaqueFloat, gosnmp.OpaqueDouble:
		if f, err := toFloat64(v); err == nil {
			return models.FloatValue(f)
		}
	case gosnmp.Null, gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return models.NullValue()
	}
	return models.ValueOf(v)
}

// ─────────────────────────────────────────────────────────────────────────────
// Syntax conversion
// ─────────────────────────────────────────────────────────────────────────────

// unitScale maps unit-bearing syntaxes to the factor that normalises them to
// the base unit (bits/s, bytes, °C, W, A, V, Hz).
var unitScale = map[string]float64{
	"BandwidthBits": 1, "BandwidthKBits": 1e3, "BandwidthMBits": 1e6, "BandwidthGBits": 1e9,
	"BytesKB": 1e3, "BytesMB": 1e6, "BytesGB": 1e9, "BytesTB": 1e12,
	"BytesKiB": 1 << 10, "BytesMiB": 1 << 20, "BytesGiB": 1 << 30,
	"TemperatureC": 1, "TemperatureDeciC": 0.1, "TemperatureCentiC": 0.01,
	"PowerWatt": 1, "PowerMilliWatt": 1e-3, "PowerKiloWatt": 1e3,
	"CurrentAmp": 1, "CurrentMilliAmp": 1e-3, "CurrentMicroAmp": 1e-6,
	"VoltageVolt": 1, "VoltageMilliVolt": 1e-3, "VoltageMicroVolt": 1e-6,
	"FreqHz": 1, "FreqKHz": 1e3, "FreqMHz": 1e6, "FreqGHz": 1e9,
	"Percent1": 1, "Percent100": 1, "PercentDeci100": 1,
}

// ConvertValue reinterprets a raw reading value according to the configured
// attribute syntax. An empty or unknown syntax returns v unchanged.
func ConvertValue(v models.Value, syntax string) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	raw := v.Interface()

	if scale, ok := unitScale[syntax]; ok {
		f, err := toFloat64(raw)
		if err != nil {
			return v, err
		}
		return models.FloatValue(f * scale), nil
	}

	switch syntax {
	case "Integer", "Integer32", "InterfaceIndex", "InterfaceIndexOrZero",
		"TruthValue", "RowStatus", "TimeStamp", "TimeInterval",
		"EnumInteger", "EnumIntegerKeepID", "EnumBitmap":
		i, err := toInt64(raw)
		if err != nil {
			return v, err
		}
		return models.IntValue(i), nil

	case "Unsigned32", "Gauge32", "Counter32", "Counter64", "TimeTicks",
		"BytesB", "TicksSec", "TicksMilliSec", "TicksMicroSec":
		u, err := toUint64(raw)
		if err != nil {
			return v, err
		}
		return models.UintValue(u), nil

	case "DisplayString", "OctetString":
		return models.StringValue(strings.TrimRight(asString(raw), "\x00")), nil

	case "DateAndTime":
		if s, ok := dateAndTime(asBytes(raw)); ok {
			return models.StringValue(s), nil
		}
		return models.BytesValue(asBytes(raw)), nil

	case "PhysAddress", "MacAddress":
		return models.StringValue(macString(asBytes(raw))), nil

	case "ObjectIdentifier", "EnumObjectIdentifier", "EnumObjectIdentifierKeepOID":
		return models.StringValue(strings.TrimPrefix(asString(raw), ".")), nil

	case "IpAddress", "IpAddressNoSuffix":
		return models.StringValue(ipString(raw)), nil
	}
	return v, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Low-level conversion helpers
// ─────────────────────────────────────────────────────────────────────────────

// toInt64 converts an integer of any width to int64.
func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return toInt64(uint64(x))
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("uint64 value %d overflows int64", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

// toUint64 converts a non-negative integer of any width to uint64.
func toUint64(v interface{}) (uint64, error) {
	switch x := v.(type) {
	case uint:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to uint64", v)
	}
	if i < 0 {
		return 0, fmt.Errorf("negative value %d cannot be converted to uint64", i)
	}
	return uint64(i), nil
}

// toFloat64 widens any numeric type to float64.
func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case uint:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
	return float64(i), nil
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asBytes(v interface{}) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}

// dateAndTime formats an RFC 2579 DateAndTime octet string (8 or 11 bytes),
// e.g. "2024-10-19T10:30:00.5+02:00".
func dateAndTime(b []byte) (string, bool) {
	if len(b) != 8 && len(b) != 11 {
		return "", false
	}
	year := int(b[0])<<8 | int(b[1])
	month, day, hour, minute, sec, deci := b[2], b[3], b[4], b[5], b[6], b[7]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 60 || deci > 9 {
		return "", false
	}
	s := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%d", year, month, day, hour, minute, sec, deci)
	if len(b) == 11 {
		dir, zh, zm := b[8], b[9], b[10]
		if (dir != '+' && dir != '-') || zh > 14 || zm > 59 {
			return "", false
		}
		s += fmt.Sprintf("%c%02d:%02d", dir, zh, zm)
	}
	return s, true
}

// macString formats b as colon-separated hex, e.g. "00:1a:2b:3c:4d:5e".
func macString(b []byte) string {
	if len(b) == 6 {
		return net.HardwareAddr(b).String()
	}
	parts := make([]string, len(b))
	for i, octet := range b {
		parts[i] = hex.EncodeToString([]byte{octet})
	}
	return strings.Join(parts, ":")
}

// ipString renders 4- and 16-byte addresses in textual form and returns
// anything already textual unchanged.
func ipString(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		if len(x) == net.IPv4len || len(x) == net.IPv6len {
			return net.IP(x).String()
		}
		return hex.EncodeToString(x)
	case string:
		if len(x) == net.IPv4len && net.ParseIP(x) == nil {
			return net.IP([]byte(x)).String()
		}
		return x
	default:
		return fmt.Sprintf("%v", v)
	}
}
