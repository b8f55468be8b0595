package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhmon/snmpcollector/pkg/snmpcollector/action"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/config"
	"github.com/dhmon/snmpcollector/transport/redis"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel string
	logFmt   string

	instance  string
	namespace string
	component string
	codec     string

	redisAddr     string
	redisPassword string
	redisDB       int

	cfgDevices      string
	cfgDefaults     string
	cfgDeviceGroups string
	cfgObjectGroups string
	cfgObjects      string
}

var global globalFlags

var rootCmd = &cobra.Command{
	Use:   "snmpcollector",
	Short: "Queue-driven SNMP collection pipeline",
	Long: `snmpcollector walks SNMP devices in rounds. A supervisor fans each round out
into per-device walks, walkers poll the devices, annotators attach interface
and VLAN context, and a summary stage accounts for completed rounds.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "snmpcollector: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&global.logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&global.logFmt, "log.fmt", "json", "Log format: json, text")

	f.StringVar(&global.instance, "instance", "default", "Pipeline instance shared by all stages")
	f.StringVar(&global.namespace, "namespace", action.DefaultNamespace, "Queue name namespace")
	f.StringVar(&global.component, "component", action.DefaultComponent, "Queue name component")
	f.StringVar(&global.codec, "codec", "json", "Wire codec: json, msgpack")

	f.StringVar(&global.redisAddr, "redis.addr", "localhost:6379", "Redis address")
	f.StringVar(&global.redisPassword, "redis.password", "", "Redis password")
	f.IntVar(&global.redisDB, "redis.db", 0, "Redis database number")

	f.StringVar(&global.cfgDevices, "config.devices", "", "Override INPUT_SNMP_DEVICE_DEFINITIONS_DIRECTORY_PATH")
	f.StringVar(&global.cfgDefaults, "config.defaults", "", "Override INPUT_SNMP_DEFAULTS_DIRECTORY_PATH")
	f.StringVar(&global.cfgDeviceGroups, "config.device.groups", "", "Override INPUT_SNMP_DEVICE_GROUP_DEFINITIONS_DIRECTORY_PATH")
	f.StringVar(&global.cfgObjectGroups, "config.object.groups", "", "Override INPUT_SNMP_OBJECT_GROUP_DEFINITIONS_DIRECTORY_PATH")
	f.StringVar(&global.cfgObjects, "config.objects", "", "Override INPUT_SNMP_OBJECT_DEFINITIONS_DIRECTORY_PATH")
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (g globalFlags) logger() (*slog.Logger, error) {
	return buildLogger(g.logLevel, g.logFmt)
}

func (g globalFlags) namer() (action.Namer, error) {
	return action.NewNamer(g.namespace, g.component)
}

func (g globalFlags) redisConfig() redis.Config {
	return redis.Config{Addr: g.redisAddr, Password: g.redisPassword, DB: g.redisDB}
}

func (g globalFlags) paths() config.Paths {
	p := config.PathsFromEnv()
	applyPathOverrides(&p, g.cfgDevices, g.cfgDefaults, g.cfgDeviceGroups, g.cfgObjectGroups, g.cfgObjects)
	return p
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}
	return slog.New(handler), nil
}

func applyPathOverrides(p *config.Paths, devices, defaults, dgroups, ogroups, objects string) {
	if devices != "" {
		p.Devices = devices
	}
	if defaults != "" {
		p.Defaults = defaults
	}
	if dgroups != "" {
		p.DeviceGroups = dgroups
	}
	if ogroups != "" {
		p.ObjectGroups = ogroups
	}
	if objects != "" {
		p.Objects = objects
	}
}
