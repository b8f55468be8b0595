package config

import (
	"log/slog"
	"sort"

	"github.com/dhmon/snmpcollector/models"
)

// Target is one device together with the objects walked on it.
type Target struct {
	Hostname string
	Device   DeviceConfig

	// Objects are deduplicated and ordered by first appearance through
	// device groups → object groups.
	Objects []models.ObjectDefinition
}

// Hostnames returns every configured device name, sorted.
func (c *LoadedConfig) Hostnames() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Devices))
	for h := range c.Devices {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// ObjectList returns every object definition, sorted by key.
func (c *LoadedConfig) ObjectList() []models.ObjectDefinition {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.ObjectDefs))
	for k := range c.ObjectDefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.ObjectDefinition, len(keys))
	for i, k := range keys {
		out[i] = c.ObjectDefs[k]
	}
	return out
}

// ResolveTarget walks the config hierarchy for hostname. Unknown group or
// object references are logged and skipped.
func (c *LoadedConfig) ResolveTarget(hostname string, logger *slog.Logger) (Target, bool) {
	if c == nil {
		return Target{}, false
	}
	dev, ok := c.Devices[hostname]
	if !ok {
		return Target{}, false
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	t := Target{Hostname: hostname, Device: dev}
	seen := make(map[string]bool)
	for _, dgName := range dev.DeviceGroups {
		dg, ok := c.DeviceGroups[dgName]
		if !ok {
			logger.Warn("config: unknown device group", "hostname", hostname, "group", dgName)
			continue
		}
		for _, ogName := range dg.ObjectGroups {
			og, ok := c.ObjectGroups[ogName]
			if !ok {
				logger.Warn("config: unknown object group", "hostname", hostname, "object_group", ogName)
				continue
			}
			for _, key := range og.Objects {
				if seen[key] {
					continue
				}
				seen[key] = true
				def, ok := c.ObjectDefs[key]
				if !ok {
					logger.Warn("config: unknown object definition", "hostname", hostname, "object", key)
					continue
				}
				t.Objects = append(t.Objects, def)
			}
		}
	}
	return t, true
}

// ResolveTargets resolves every device, sorted by hostname.
func (c *LoadedConfig) ResolveTargets(logger *slog.Logger) []Target {
	hosts := c.Hostnames()
	out := make([]Target, 0, len(hosts))
	for _, h := range hosts {
		if t, ok := c.ResolveTarget(h, logger); ok {
			out = append(out, t)
		}
	}
	return out
}
