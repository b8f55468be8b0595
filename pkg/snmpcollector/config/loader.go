// Package config loads the YAML configuration trees of the collector.
//
// Five directory trees are read, each located by an environment variable:
//
//	INPUT_SNMP_DEVICE_DEFINITIONS_DIRECTORY_PATH       → Devices
//	INPUT_SNMP_DEFAULTS_DIRECTORY_PATH                 → DeviceDefault
//	INPUT_SNMP_DEVICE_GROUP_DEFINITIONS_DIRECTORY_PATH → DeviceGroups
//	INPUT_SNMP_OBJECT_GROUP_DEFINITIONS_DIRECTORY_PATH → ObjectGroups
//	INPUT_SNMP_OBJECT_DEFINITIONS_DIRECTORY_PATH       → ObjectDefs
//
// Device → device groups → object groups → object definitions resolves the
// set of objects walked on each target (see ResolveTargets).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dhmon/snmpcollector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Paths
// ─────────────────────────────────────────────────────────────────────────────

// Paths holds the directory locations for every configuration tree.
type Paths struct {
	Devices      string // INPUT_SNMP_DEVICE_DEFINITIONS_DIRECTORY_PATH
	Defaults     string // INPUT_SNMP_DEFAULTS_DIRECTORY_PATH
	DeviceGroups string // INPUT_SNMP_DEVICE_GROUP_DEFINITIONS_DIRECTORY_PATH
	ObjectGroups string // INPUT_SNMP_OBJECT_GROUP_DEFINITIONS_DIRECTORY_PATH
	Objects      string // INPUT_SNMP_OBJECT_DEFINITIONS_DIRECTORY_PATH
}

// PathsFromEnv reads each path from its environment variable, falling back to
// the documented default under /etc/dhmon/snmp.
func PathsFromEnv() Paths {
	return Paths{
		Devices:      envOr("INPUT_SNMP_DEVICE_DEFINITIONS_DIRECTORY_PATH", "/etc/dhmon/snmp/devices"),
		Defaults:     envOr("INPUT_SNMP_DEFAULTS_DIRECTORY_PATH", "/etc/dhmon/snmp/defaults"),
		DeviceGroups: envOr("INPUT_SNMP_DEVICE_GROUP_DEFINITIONS_DIRECTORY_PATH", "/etc/dhmon/snmp/device_groups"),
		ObjectGroups: envOr("INPUT_SNMP_OBJECT_GROUP_DEFINITIONS_DIRECTORY_PATH", "/etc/dhmon/snmp/object_groups"),
		Objects:      envOr("INPUT_SNMP_OBJECT_DEFINITIONS_DIRECTORY_PATH", "/etc/dhmon/snmp/objects"),
	}
}

// Dirs lists the non-empty directories in load order.
func (p Paths) Dirs() []string {
	var out []string
	for _, d := range []string{p.Defaults, p.Devices, p.DeviceGroups, p.ObjectGroups, p.Objects} {
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ─────────────────────────────────────────────────────────────────────────────
// LoadedConfig
// ─────────────────────────────────────────────────────────────────────────────

// LoadedConfig is the parsed form of all configuration trees. It is treated
// as immutable once returned; reloads build a new value.
type LoadedConfig struct {
	// Devices maps hostname → resolved DeviceConfig (defaults merged in).
	Devices map[string]DeviceConfig

	DeviceDefault DeviceDefaults
	DeviceGroups  map[string]DeviceGroup
	ObjectGroups  map[string]ObjectGroup

	// ObjectDefs maps object key (e.g. "IF-MIB::ifEntry") → definition.
	ObjectDefs map[string]models.ObjectDefinition
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads every tree in paths. Malformed files are logged and skipped;
// directory access errors are accumulated and returned together so operators
// see every problem at once. A directory that does not exist yields an empty
// section.
func Load(paths Paths, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	cfg := &LoadedConfig{
		Devices:      make(map[string]DeviceConfig),
		DeviceGroups: make(map[string]DeviceGroup),
		ObjectGroups: make(map[string]ObjectGroup),
		ObjectDefs:   make(map[string]models.ObjectDefinition),
	}
	var errs []error

	// Defaults must be complete before devices are resolved against them.
	errs = appendErr(errs, loadTree(paths.Defaults, "defaults", logger, func(f struct {
		Default rawDevice `yaml:"default"`
	}) int {
		cfg.DeviceDefault = cfg.DeviceDefault.merge(f.Default)
		return 1
	}))

	errs = appendErr(errs, loadTree(paths.Devices, "devices", logger, func(f map[string]rawDevice) int {
		for hostname, e := range f {
			cfg.Devices[hostname] = e.resolve(cfg.DeviceDefault)
		}
		return len(f)
	}))

	errs = appendErr(errs, loadTree(paths.DeviceGroups, "device_groups", logger, func(f map[string]struct {
		ObjectGroups []string `yaml:"object_groups"`
	}) int {
		for name, g := range f {
			cfg.DeviceGroups[name] = DeviceGroup{ObjectGroups: g.ObjectGroups}
		}
		return len(f)
	}))

	errs = appendErr(errs, loadTree(paths.ObjectGroups, "object_groups", logger, func(f map[string]struct {
		Objects []string `yaml:"objects"`
	}) int {
		for name, g := range f {
			cfg.ObjectGroups[name] = ObjectGroup{Objects: g.Objects}
		}
		return len(f)
	}))

	errs = appendErr(errs, loadTree(paths.Objects, "objects", logger, func(f map[string]rawObject) int {
		for key, body := range f {
			cfg.ObjectDefs[key] = body.definition(key)
		}
		return len(f)
	}))

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %d error(s): %w", len(errs), errors.Join(errs...))
	}
	return cfg, nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}

// loadTree decodes every YAML file under dir into a fresh T and hands it to
// add, which returns the number of entries it took.
func loadTree[T any](dir, section string, logger *slog.Logger, add func(T) int) error {
	if dir == "" {
		return nil
	}
	files, err := yamlFiles(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("config: directory missing, section empty", "section", section, "dir", dir)
			return nil
		}
		return fmt.Errorf("list %s dir %q: %w", section, dir, err)
	}
	for _, path := range files {
		var body T
		if err := decodeFile(path, &body); err != nil {
			logger.Warn("config: skip malformed file", "section", section, "file", path, "error", err.Error())
			continue
		}
		n := add(body)
		logger.Debug("config: loaded file", "section", section, "file", path, "count", n)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Object definitions
// ─────────────────────────────────────────────────────────────────────────────

type rawObject struct {
	MIB        string                  `yaml:"mib"`
	Object     string                  `yaml:"object"`
	Index      []rawIndex              `yaml:"index"`
	Attributes map[string]rawAttribute `yaml:"attributes"`
}

type rawIndex struct {
	Type string `yaml:"type"`
	OID  string `yaml:"oid"`
	Name string `yaml:"name"`
}

type rawAttribute struct {
	OID    string `yaml:"oid"`
	Name   string `yaml:"name"`
	Syntax string `yaml:"syntax"`
	Tag    bool   `yaml:"tag"`
}

func (b rawObject) definition(key string) models.ObjectDefinition {
	def := models.ObjectDefinition{
		Key:        key,
		MIB:        b.MIB,
		Object:     b.Object,
		Index:      make([]models.IndexDefinition, len(b.Index)),
		Attributes: make(map[string]models.AttributeDefinition, len(b.Attributes)),
	}
	// "IF-MIB::ifEntry" carries both names when the explicit fields are absent.
	if mib, obj, ok := strings.Cut(key, "::"); ok {
		if def.MIB == "" {
			def.MIB = mib
		}
		if def.Object == "" {
			def.Object = obj
		}
	}
	for i, idx := range b.Index {
		def.Index[i] = models.IndexDefinition{Type: idx.Type, OID: NormaliseOID(idx.OID), Name: idx.Name}
	}
	for attr, a := range b.Attributes {
		name := a.Name
		if name == "" {
			name = attr
		}
		def.Attributes[attr] = models.AttributeDefinition{
			OID:    NormaliseOID(a.OID),
			Name:   name,
			Syntax: a.Syntax,
			IsTag:  a.Tag,
		}
	}
	return def
}

// NormaliseOID strips whitespace and a leading dot so OIDs compare in
// canonical form.
func NormaliseOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// yamlFiles returns all *.yml / *.yaml files under dir, sorted by path.
func yamlFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAML(p) {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

func isYAML(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".yml" || ext == ".yaml"
}

// decodeFile unmarshals the YAML content of path into out. Unknown keys are
// accepted.
func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yaml.NewDecoder(f).Decode(out)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
