package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhmon/snmpcollector/pkg/snmpcollector/app"
)

var stageFlags struct {
	workers          int
	metricsListen    string
	deadLetterFile   string
	deadLetterBytes  int64
	deadLetterBackup int
	triggerInterval  time.Duration
	watchConfig      bool
}

var stageCmd = &cobra.Command{
	Use:       "stage <role>",
	Short:     "Run one pipeline stage until interrupted",
	Long:      "Run one pipeline stage. Roles: " + roleList() + ".",
	Args:      cobra.ExactArgs(1),
	ValidArgs: roleNames(),
	RunE:      runStage,
}

func init() {
	f := stageCmd.Flags()
	f.IntVar(&stageFlags.workers, "workers", 1, "Concurrent runner loops")
	f.StringVar(&stageFlags.metricsListen, "metrics.listen", "", "Address for the Prometheus /metrics endpoint (empty disables)")
	f.StringVar(&stageFlags.deadLetterFile, "deadletter.file", "", "Dead-letter file (default stderr)")
	f.Int64Var(&stageFlags.deadLetterBytes, "deadletter.max.bytes", 0, "Max dead-letter file size before rotation (0=disabled)")
	f.IntVar(&stageFlags.deadLetterBackup, "deadletter.max.backups", 5, "Max rotated dead-letter files to keep (0=unlimited)")
	f.DurationVar(&stageFlags.triggerInterval, "trigger.interval", 0, "Supervisor only: push a Trigger at this interval (0=disabled)")
	f.BoolVar(&stageFlags.watchConfig, "config.watch", false, "Reload configuration when files change")
	rootCmd.AddCommand(stageCmd)
}

func runStage(cmd *cobra.Command, args []string) error {
	logger, err := global.logger()
	if err != nil {
		return err
	}
	role, err := app.ParseRole(args[0])
	if err != nil {
		return err
	}

	cfg := app.Config{
		ConfigPaths:          global.paths(),
		Role:                 role,
		Instance:             global.instance,
		Namespace:            global.namespace,
		Component:            global.component,
		Redis:                global.redisConfig(),
		Codec:                global.codec,
		Workers:              stageFlags.workers,
		DeadLetterFile:       stageFlags.deadLetterFile,
		DeadLetterMaxBytes:   stageFlags.deadLetterBytes,
		DeadLetterMaxBackups: stageFlags.deadLetterBackup,
		MetricsListen:        stageFlags.metricsListen,
		TriggerInterval:      stageFlags.triggerInterval,
		WatchConfig:          stageFlags.watchConfig,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", role, err)
	}
	logger.Info("snmpcollector: running, press Ctrl-C to stop",
		"role", string(role),
		"queues", strings.Join(application.Inbound(), ","),
	)

	<-ctx.Done()
	logger.Info("snmpcollector: received shutdown signal")
	application.Stop()
	return nil
}

func roleNames() []string {
	roles := app.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func roleList() string { return strings.Join(roleNames(), ", ") }
