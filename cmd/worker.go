package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/pipeline"
	"github.com/sells-group/geo-cli/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run analyses from the SQS start queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		client, err := queue.NewClient(ctx, cfg.Queue.Region)
		if err != nil {
			return err
		}

		consumer := queue.NewConsumer(client, cfg.Queue.URL, runHandler(env.Pipeline),
			queue.WithWaitSeconds(cfg.Queue.WaitSeconds),
		)
		return consumer.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runHandler runs the analysis named by each message. Terminal outcomes,
// including a run that marked its analysis failed, consume the message;
// anything else leaves it for redelivery.
func runHandler(r runner) queue.Handler {
	return func(ctx context.Context, msg queue.Message) error {
		result, err := r.Run(ctx, msg.AnalysisID)
		switch {
		case err == nil:
			zap.L().Info("analysis complete",
				zap.String("analysis_id", msg.AnalysisID),
				zap.Int("score", result.Score),
			)
			return nil
		case pipeline.IsTerminal(err):
			zap.L().Warn("analysis not retried", zap.String("analysis_id", msg.AnalysisID), zap.Error(err))
			return nil
		default:
			return err
		}
	}
}
