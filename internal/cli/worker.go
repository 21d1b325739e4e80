package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/financeos/fos/pkg/email"
	"github.com/spf13/cobra"
)

var emailWorkerCmd = &cobra.Command{
	Use:   "email-worker",
	Short: "Send queued budget alert emails",
	Long: `Consume budget alert emails published by the amqp email transport and
send them through Resend.`,
	RunE: runEmailWorker,
}

func init() {
	rootCmd.AddCommand(emailWorkerCmd)
}

func runEmailWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	q, err := email.DialQueue(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, logger)
	if err != nil {
		return fmt.Errorf("connect to queue: %w", err)
	}
	defer q.Close()

	sender := initSender(cfg, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = q.Consume(ctx, func(ctx context.Context, req email.Request) error {
		result, err := sender.Send(ctx, req)
		if err != nil {
			return err
		}
		if !result.Sent {
			logger.Warn("alert email not sent", "email", req.Email, "reason", result.Reason)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
