package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/financeos/fos/internal/config"
	"github.com/financeos/fos/pkg/alerts"
	"github.com/financeos/fos/pkg/currency"
	"github.com/financeos/fos/pkg/email"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/notify"
	"github.com/financeos/fos/pkg/session"
	"github.com/financeos/fos/pkg/storage"
	"github.com/financeos/fos/pkg/tracker"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	cfgFile string
	userID  string
)

var rootCmd = &cobra.Command{
	Use:   "fos",
	Short: "FinanceOS - personal finance tracking with budget alerts",
	Long: `FinanceOS records expenses and incomes, keeps monthly budgets and
alerts once when spending crosses a limit: as a toast, an inbox
notification, an optional email and optional Slack or webhook messages.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.fos/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", envOr("FOS_USER", "local"), "user id to act as")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initCategories loads the expense category set, falling back to the
// built-in one.
func initCategories(cfg *config.Config) (*model.CategorySet, error) {
	if cfg.Categories.File == "" {
		return model.DefaultCategorySet(), nil
	}
	return model.LoadCategories(cfg.Categories.File)
}

// initMailer creates the email transport the sink hands alert emails to.
// The returned closer is nil when the transport holds no connection.
func initMailer(cfg *config.Config, logger *slog.Logger) (email.Dispatcher, io.Closer, error) {
	switch cfg.Email.Transport {
	case config.TransportFunction:
		return email.NewFunctionClient(cfg.Email.FunctionURL, cfg.Email.FunctionKey), nil, nil
	case config.TransportAMQP:
		q, err := email.DialQueue(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, logger)
		if err != nil {
			return nil, nil, err
		}
		return q, q, nil
	default:
		return email.Nop{}, nil, nil
	}
}

// initSender creates the Resend sender behind the email function.
func initSender(cfg *config.Config, logger *slog.Logger) *email.Sender {
	return email.NewSender(email.SenderConfig{
		APIKey: cfg.Email.ResendAPIKey,
		URL:    cfg.Email.ResendURL,
		From:   cfg.Email.From,
		AppURL: cfg.Email.AppURL,
	}, logger)
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config, cur currency.Currency) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
			cur,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// app is the fully wired set of services a command runs against.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Storage
	currency currency.Currency
	sessions *session.Manager
	tracker  *tracker.Tracker
	mailer   io.Closer
}

// initApp wires storage, sessions and the tracker from config.
func initApp(cfg *config.Config) (*app, error) {
	logger := newLogger(cfg)

	cur, err := currency.Lookup(cfg.Currency.Default)
	if err != nil {
		return nil, err
	}

	categories, err := initCategories(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	mailer, closer, err := initMailer(cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init email transport: %w", err)
	}

	sessions := session.NewManager(session.Config{
		Store:     store,
		Currency:  cur,
		Mailer:    mailer,
		Notifiers: initNotifiers(cfg, cur),
		Tasks:     notify.NewDetached(cfg.Server.WriteTimeout, logger),
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		currency: cur,
		sessions: sessions,
		tracker:  tracker.NewTracker(store, categories, sessions, logger),
		mailer:   closer,
	}, nil
}

// Close waits for detached deliveries, then releases connections.
func (a *app) Close() error {
	a.sessions.Wait()
	if a.mailer != nil {
		if err := a.mailer.Close(); err != nil {
			a.logger.Warn("close email transport", "error", err)
		}
	}
	return a.store.Close()
}

// runAsUser runs fn inside a fresh session for the --user user, then
// prints the toasts the command raised.
func runAsUser(cmd *cobra.Command, fn func(ctx context.Context, a *app, sess *session.Session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := initApp(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess, err := a.sessions.Open(ctx, userID)
	if err != nil {
		a.Close()
		return err
	}

	runErr := fn(ctx, a, sess)
	closeErr := a.Close()

	for _, t := range sess.Toasts.Drain() {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", t.Severity, t.Message)
	}

	if runErr != nil {
		return runErr
	}
	return closeErr
}
