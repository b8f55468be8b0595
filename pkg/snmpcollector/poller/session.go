// Package poller walks SNMP devices with gosnmp. It turns a resolved
// config.Target into a session, walks every configured object root and
// returns the readings together with the failure statistics of the walk.
package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/dhmon/snmpcollector/pkg/snmpcollector/config"
)

// defaultMaxOids bounds the number of OIDs per Get request.
const defaultMaxOids = 60

// ─────────────────────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────────────────────

// Session is the part of a gosnmp client a walk needs.
type Session interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	WalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
	BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
	Close() error
}

// Dialer opens a session to one device.
type Dialer func(ctx context.Context, cfg config.DeviceConfig) (Session, error)

// gosnmpSession adapts *gosnmp.GoSNMP to Session.
type gosnmpSession struct {
	g *gosnmp.GoSNMP
}

func (s gosnmpSession) Get(oids []string) (*gosnmp.SnmpPacket, error) { return s.g.Get(oids) }

func (s gosnmpSession) WalkAll(root string) ([]gosnmp.SnmpPDU, error) { return s.g.WalkAll(root) }

func (s gosnmpSession) BulkWalkAll(root string) ([]gosnmp.SnmpPDU, error) {
	return s.g.BulkWalkAll(root)
}

func (s gosnmpSession) Close() error {
	if s.g.Conn == nil {
		return nil
	}
	return s.g.Conn.Close()
}

// Dial is the production Dialer: it connects a gosnmp client bound to ctx.
func Dial(ctx context.Context, cfg config.DeviceConfig) (Session, error) {
	g, err := NewSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return gosnmpSession{g: g}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session factory: DeviceConfig → *gosnmp.GoSNMP
// ─────────────────────────────────────────────────────────────────────────────

// NewSession configures and connects a gosnmp client for cfg. Requests made
// on it are abandoned when ctx is cancelled. The caller closes g.Conn.
func NewSession(ctx context.Context, cfg config.DeviceConfig) (*gosnmp.GoSNMP, error) {
	g, err := Configure(cfg)
	if err != nil {
		return nil, err
	}
	g.Context = ctx
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s:%d: %w", cfg.IP, cfg.Port, err)
	}
	return g, nil
}

// Configure builds an unconnected gosnmp client from cfg.
func Configure(cfg config.DeviceConfig) (*gosnmp.GoSNMP, error) {
	if cfg.IP == "" {
		return nil, fmt.Errorf("snmp: device has no ip")
	}
	g := &gosnmp.GoSNMP{
		Target:             cfg.IP,
		Port:               uint16(cfg.Port),
		Timeout:            time.Duration(cfg.Timeout) * time.Millisecond,
		Retries:            cfg.Retries,
		ExponentialTimeout: cfg.ExponentialTimeout,
		MaxOids:            defaultMaxOids,
	}

	switch cfg.Version {
	case "1", "2c":
		g.Version = gosnmp.Version2c
		if cfg.Version == "1" {
			g.Version = gosnmp.Version1
		}
		if len(cfg.Communities) > 0 {
			g.Community = cfg.Communities[0]
		}
	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		if len(cfg.V3Credentials) == 0 {
			return nil, fmt.Errorf("snmp: version 3 device %s has no v3_credentials", cfg.IP)
		}
		cred := cfg.V3Credentials[0]
		g.MsgFlags = snmpv3MsgFlags(cred)
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.Username,
			AuthenticationProtocol:   mapAuthProto(cred.AuthenticationProtocol),
			AuthenticationPassphrase: cred.AuthenticationPassphrase,
			PrivacyProtocol:          mapPrivProto(cred.PrivacyProtocol),
			PrivacyPassphrase:        cred.PrivacyPassphrase,
		}
	default:
		return nil, fmt.Errorf("snmp: unsupported version %q", cfg.Version)
	}
	return g, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPv3 helpers
// ─────────────────────────────────────────────────────────────────────────────

func snmpv3MsgFlags(cred config.V3Credentials) gosnmp.SnmpV3MsgFlags {
	hasAuth := cred.AuthenticationProtocol != "" &&
		!strings.EqualFold(cred.AuthenticationProtocol, "noauth")
	hasPriv := cred.PrivacyProtocol != "" &&
		!strings.EqualFold(cred.PrivacyProtocol, "nopriv")

	switch {
	case hasAuth && hasPriv:
		return gosnmp.AuthPriv
	case hasAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

var authProtocols = map[string]gosnmp.SnmpV3AuthProtocol{
	"md5":    gosnmp.MD5,
	"sha":    gosnmp.SHA,
	"sha224": gosnmp.SHA224,
	"sha256": gosnmp.SHA256,
	"sha384": gosnmp.SHA384,
	"sha512": gosnmp.SHA512,
}

var privProtocols = map[string]gosnmp.SnmpV3PrivProtocol{
	"des":     gosnmp.DES,
	"aes":     gosnmp.AES,
	"aes192":  gosnmp.AES192,
	"aes256":  gosnmp.AES256,
	"aes192c": gosnmp.AES192C,
	"aes256c": gosnmp.AES256C,
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	if p, ok := authProtocols[strings.ToLower(s)]; ok {
		return p
	}
	return gosnmp.NoAuth
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	if p, ok := privProtocols[strings.ToLower(s)]; ok {
		return p
	}
	return gosnmp.NoPriv
}
