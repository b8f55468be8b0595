package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/dhmon/snmpcollector/models"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/config"
	"github.com/dhmon/snmpcollector/snmp/decoder"
)

// ─────────────────────────────────────────────────────────────────────────────
// Walker
// ─────────────────────────────────────────────────────────────────────────────

// Walker walks every object resolved for a target over one session.
type Walker struct {
	dial   Dialer
	logger *slog.Logger
}

// NewWalker returns a Walker that opens sessions with dial (Dial when nil).
func NewWalker(dial Dialer, logger *slog.Logger) *Walker {
	if dial == nil {
		dial = Dial
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Walker{dial: dial, logger: logger}
}

// Walk collects the readings of every object of target, in object order and
// in the order the device returned them. Each failed object walk counts once
// in the returned statistics, as a timeout or as an error. Readings gathered
// before a failure are kept.
//
// Operation selection:
//   - Scalar object (no Index) → Get all attribute OIDs appended with ".0"
//   - Table object + SNMPv1    → Walk the lowest-common-prefix OID
//   - Table object + v2c / v3  → BulkWalk the lowest-common-prefix OID
func (w *Walker) Walk(ctx context.Context, target config.Target) (models.Readings, models.Statistics) {
	readings := models.Readings{}
	var stats models.Statistics
	if len(target.Objects) == 0 {
		return readings, stats
	}

	start := time.Now()
	sess, err := w.dial(ctx, target.Device)
	if err != nil {
		count(&stats, err)
		w.logger.Warn("poller: dial failed",
			"target", target.Hostname,
			"error", err.Error(),
		)
		return readings, stats
	}
	defer sess.Close()

	for _, obj := range target.Objects {
		if ctx.Err() != nil {
			count(&stats, ctx.Err())
			break
		}
		var pdus []gosnmp.SnmpPDU
		switch {
		case obj.IsScalar():
			pdus, err = doGet(sess, obj)
		case target.Device.Version == "1":
			pdus, err = doWalk(sess.WalkAll, obj)
		default:
			pdus, err = doWalk(sess.BulkWalkAll, obj)
		}
		readings = append(readings, decoder.Decode(pdus)...)
		if err != nil {
			count(&stats, err)
			w.logger.Warn("poller: object walk failed",
				"target", target.Hostname,
				"object", obj.Key,
				"pdu_count", len(pdus),
				"error", err.Error(),
			)
		}
	}

	w.logger.Debug("poller: walk completed",
		"target", target.Hostname,
		"objects", len(target.Objects),
		"readings", len(readings),
		"timeouts", stats.Timeouts,
		"errors", stats.Errors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return readings, stats
}

// count records err as a timeout or an error.
func count(stats *models.Statistics, err error) {
	if isTimeout(err) {
		stats.Timeouts++
		return
	}
	stats.Errors++
}

// isTimeout reports whether err means the device did not answer in time.
// gosnmp reports exhausted retries as a plain "request timeout" error.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMP operation helpers
// ─────────────────────────────────────────────────────────────────────────────

// doGet performs an SNMP Get for a scalar object. Each attribute OID gets
// ".0" appended. Requests are split into batches of defaultMaxOids.
func doGet(sess Session, obj models.ObjectDefinition) ([]gosnmp.SnmpPDU, error) {
	oids := make([]string, 0, len(obj.Attributes))
	for _, attr := range obj.Attributes {
		oid := config.NormaliseOID(attr.OID)
		if oid == "" {
			continue
		}
		if !strings.HasSuffix(oid, ".0") {
			oid += ".0"
		}
		oids = append(oids, "."+oid)
	}
	if len(oids) == 0 {
		return nil, fmt.Errorf("no attribute OIDs in object %s", obj.Key)
	}
	sort.Strings(oids)

	var all []gosnmp.SnmpPDU
	for i := 0; i < len(oids); i += defaultMaxOids {
		end := min(i+defaultMaxOids, len(oids))
		pkt, err := sess.Get(oids[i:end])
		if err != nil {
			return all, fmt.Errorf("get %s: %w", obj.Key, err)
		}
		if pkt.Error != gosnmp.NoError {
			return all, fmt.Errorf("get %s: agent error %v at index %d", obj.Key, pkt.Error, pkt.ErrorIndex)
		}
		all = append(all, pkt.Variables...)
	}
	return all, nil
}

// doWalk walks the lowest common OID prefix of obj with walk (WalkAll for
// SNMPv1, BulkWalkAll otherwise).
func doWalk(walk func(string) ([]gosnmp.SnmpPDU, error), obj models.ObjectDefinition) ([]gosnmp.SnmpPDU, error) {
	root := LowestCommonOID(obj)
	if root == "" {
		return nil, fmt.Errorf("no attribute OIDs in object %s", obj.Key)
	}
	pdus, err := walk("." + root)
	if err != nil {
		return pdus, fmt.Errorf("walk %s %s: %w", obj.Key, root, err)
	}
	return pdus, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// OID analysis
// ─────────────────────────────────────────────────────────────────────────────

// LowestCommonOID finds the longest OID prefix shared by all attribute OIDs
// of obj, without a leading dot. For example, given:
//
//	.1.3.6.1.2.1.2.2.1.10 (ifInOctets)
//	.1.3.6.1.2.1.2.2.1.16 (ifOutOctets)
//
// the lowest common prefix is "1.3.6.1.2.1.2.2.1".
func LowestCommonOID(obj models.ObjectDefinition) string {
	var parts []string
	first := true
	for _, attr := range obj.Attributes {
		oid := config.NormaliseOID(attr.OID)
		if oid == "" {
			continue
		}
		other := strings.Split(oid, ".")
		if first {
			parts, first = other, false
			continue
		}
		match := 0
		for match < len(parts) && match < len(other) && parts[match] == other[match] {
			match++
		}
		parts = parts[:match]
	}
	return strings.Join(parts, ".")
}

// ─────────────────────────────────────────────────────────────────────────────
// noopWriter
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
