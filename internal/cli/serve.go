package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/financeos/fos/internal/scheduler"
	"github.com/financeos/fos/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the email function",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}

	a, err := initApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(ctx, a.sessions, a.tracker, a.logger)
		if err := sched.Register(cfg.Scheduler.RolloverCron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	api := server.NewServer(server.Deps{
		Tracker:     a.tracker,
		Sessions:    a.sessions,
		Profiles:    a.store,
		Sender:      initSender(cfg, a.logger),
		FunctionKey: cfg.Email.FunctionKey,
	}, a.logger)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server started", "listen", cfg.Server.Listen, "email_transport", cfg.Email.Transport)
		fmt.Fprintf(os.Stderr, "FinanceOS listening on %s\n", cfg.Server.Listen)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info("server stopped")
	return nil
}
