package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhmon/snmpcollector/pkg/snmpcollector/app"
	"github.com/dhmon/snmpcollector/pkg/snmpcollector/scheduler"
	"github.com/dhmon/snmpcollector/transport/redis"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Enqueue one Trigger to start a polling round",
	Args:  cobra.NoArgs,
	RunE:  runTrigger,
}

func init() {
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, _ []string) error {
	logger, err := global.logger()
	if err != nil {
		return err
	}
	namer, err := global.namer()
	if err != nil {
		return err
	}
	codec, err := app.NewCodec(global.codec, logger)
	if err != nil {
		return err
	}

	q := redis.New(global.redisConfig(), logger)
	defer q.Close()

	s, err := scheduler.New(scheduler.Config{
		Instance: global.instance,
		Namer:    namer,
		Codec:    codec,
	}, q, logger)
	if err != nil {
		return err
	}
	if err := s.Fire(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), s.Queue())
	return nil
}
