package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Subject is the subject line of every alert email.
const Subject = "⚠️ Budget Limit Exceeded — FinanceOS Alert"

// DefaultAppURL is linked from the email when no app URL is configured.
const DefaultAppURL = "https://aura-finance.app"

var alertTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #f8fafc; margin: 0; padding: 20px; }
    .container { max-width: 520px; margin: 0 auto; background: white; border-radius: 16px; overflow: hidden; }
    .header { background: linear-gradient(135deg, #6366f1, #8b5cf6); padding: 32px 32px 24px; color: white; }
    .header h1 { margin: 0; font-size: 22px; font-weight: 800; }
    .header p { margin: 6px 0 0; opacity: 0.8; font-size: 14px; }
    .body { padding: 28px 32px; }
    .alert-box { background: #fef2f2; border: 1px solid #fecaca; border-radius: 12px; padding: 16px 20px; margin: 20px 0; }
    .alert-box p { margin: 0; color: #dc2626; font-size: 14px; line-height: 1.6; }
    .cta { display: inline-block; margin-top: 20px; padding: 12px 24px; background: #6366f1; color: white; text-decoration: none; border-radius: 10px; font-weight: 600; font-size: 14px; }
    .footer { padding: 16px 32px; text-align: center; font-size: 12px; color: #94a3b8; border-top: 1px solid #f1f5f9; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>⚠️ Budget Alert</h1>
      <p>FinanceOS · Your personal finance assistant</p>
    </div>
    <div class="body">
      <p>Hi <strong>{{.Name}}</strong>,</p>
      <div class="alert-box">
        <p>{{.Message}}</p>
        {{- if .BudgetInfo}}
        <p style="margin-top:8px; font-size:13px; color:#7f1d1d;">{{.BudgetInfo}}</p>
        {{- end}}
      </div>
      <p style="font-size:14px; color:#64748b; line-height:1.6;">
        Review your spending and adjust your budget limits to stay on track.
      </p>
      <a href="{{.AppURL}}/budget" class="cta">View Budget →</a>
    </div>
    <div class="footer">
      You're receiving this because you enabled budget alerts in FinanceOS.<br>
      You can disable them in <a href="{{.AppURL}}/profile" style="color:#6366f1;">Profile Settings</a>.
    </div>
  </div>
</body>
</html>
`))

type alertView struct {
	Name       string
	Message    string
	BudgetInfo string
	AppURL     string
}

// RenderHTML renders the alert email body for req.
func RenderHTML(req Request, appURL string) (string, error) {
	if appURL == "" {
		appURL = DefaultAppURL
	}
	var buf bytes.Buffer
	err := alertTemplate.Execute(&buf, alertView{
		Name:       req.Name(),
		Message:    req.Message,
		BudgetInfo: req.BudgetInfo,
		AppURL:     strings.TrimRight(appURL, "/"),
	})
	if err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}
	return buf.String(), nil
}
