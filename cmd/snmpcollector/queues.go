package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dhmon/snmpcollector/pkg/snmpcollector/app"
	"github.com/dhmon/snmpcollector/transport/redis"
)

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Print every queue of the instance and its depth",
	Args:  cobra.NoArgs,
	RunE:  runQueues,
}

func init() {
	rootCmd.AddCommand(queuesCmd)
}

func runQueues(cmd *cobra.Command, _ []string) error {
	logger, err := global.logger()
	if err != nil {
		return err
	}
	namer, err := global.namer()
	if err != nil {
		return err
	}

	q := redis.New(global.redisConfig(), logger)
	defer q.Close()

	depths, err := app.QueueDepths(cmd.Context(), q, namer, global.instance)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUEUE\tLENGTH")
	for _, d := range depths {
		fmt.Fprintf(w, "%s\t%d\n", d.Queue, d.Len)
	}
	return w.Flush()
}
