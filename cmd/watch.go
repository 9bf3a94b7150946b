package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitovidale/yapper-shorts-service/config"
	"github.com/vitovidale/yapper-shorts-service/domain"
	"github.com/vitovidale/yapper-shorts-service/watch"
)

var watchServer string

var watchCmd = &cobra.Command{
	Use:   "watch <job_id>",
	Short: "Follow a generation job's progress live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		status, err := watch.Run(ctx, watchServer, args[0], os.Stdin, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if status == domain.JobStatusError {
			return fmt.Errorf("job %s failed", args[0])
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:"+defaultWatchPort(), "Base URL of the yapper API")
}

func defaultWatchPort() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return config.DefaultPort
}
