package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/financeos/fos/pkg/currency"
)

// SlackNotifier posts fired alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	currency   currency.Currency
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string, cur currency.Currency) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		currency:   cur,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	color := "#ff9900" // orange
	if alert.Scope == ScopeOverall {
		color = "#cc0000" // dark red
	}

	budget := "Monthly"
	if alert.Scope == ScopeCategory {
		budget = alert.Category
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color: color,
				Title: "FinanceOS: Budget exceeded",
				Text:  alert.Message,
				Fields: []slackField{
					{Title: "Budget", Value: budget, Short: true},
					{Title: "User", Value: alert.UserID, Short: true},
					{Title: "Spent", Value: s.currency.Format(alert.Spent), Short: true},
					{Title: "Limit", Value: s.currency.Format(alert.Limit), Short: true},
					{Title: "Usage", Value: fmt.Sprintf("%.1f%%", alert.UsagePct()), Short: true},
				},
				Footer: "FinanceOS",
				Ts:     alert.FiredAt.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
