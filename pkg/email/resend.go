package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultResendURL is the Resend send-email endpoint.
	DefaultResendURL = "https://api.resend.com/emails"

	// DefaultFrom is the sender address used when none is configured.
	DefaultFrom = "noreply@aura-finance.app"

	// ReasonNoAPIKey marks a request skipped because no Resend key is set.
	ReasonNoAPIKey = "no_api_key"
)

// SenderConfig configures a Sender.
type SenderConfig struct {
	APIKey string
	URL    string
	From   string
	AppURL string
}

// Sender renders alert emails and sends them through Resend.
type Sender struct {
	cfg    SenderConfig
	client *http.Client
	logger *slog.Logger
}

// NewSender creates a Sender, filling unset fields with defaults.
func NewSender(cfg SenderConfig, logger *slog.Logger) *Sender {
	if cfg.URL == "" {
		cfg.URL = DefaultResendURL
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.AppURL == "" {
		cfg.AppURL = DefaultAppURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// ProviderError is returned when Resend rejects a message.
type ProviderError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("resend returned status %d: %s", e.StatusCode, e.Body)
}

// Send delivers req. Without an API key nothing is sent and the result
// carries ReasonNoAPIKey.
func (s *Sender) Send(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.cfg.APIKey == "" {
		s.logger.Warn("resend api key not set, skipping email send", "email", req.Email)
		return &Result{Sent: false, Reason: ReasonNoAPIKey}, nil
	}

	html, err := RenderHTML(req, s.cfg.AppURL)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(resendPayload{
		From:    fmt.Sprintf("FinanceOS <%s>", s.cfg.From),
		To:      []string{req.Email},
		Subject: Subject,
		HTML:    html,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal resend payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create resend request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send resend request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read resend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if !json.Valid(data) {
			data, _ = json.Marshal(string(data))
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: data}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode resend response: %w", err)
	}

	s.logger.Info("budget alert email sent", "email", req.Email, "id", out.ID)
	return &Result{Sent: true, ID: out.ID}, nil
}

// Dispatch sends req directly, for setups without a separate function.
func (s *Sender) Dispatch(ctx context.Context, req Request) error {
	_, err := s.Send(ctx, req)
	return err
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}
