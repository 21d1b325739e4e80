package alerts

import (
	"context"
	"time"

	"github.com/financeos/fos/pkg/model"
	"github.com/shopspring/decimal"
)

// OverallKey identifies the monthly budget threshold.
const OverallKey = "overall"

// Scope tells which threshold an alert belongs to.
type Scope string

const (
	ScopeOverall  Scope = "overall"  // Monthly limit
	ScopeCategory Scope = "category" // Per-category limit
)

// CategoryKey returns the alert key for a category threshold.
func CategoryKey(category string) string {
	return "category:" + category
}

// Alert is a fired budget threshold.
type Alert struct {
	Key      string                 `json:"key"`
	Scope    Scope                  `json:"scope"`
	Type     model.NotificationType `json:"type"`
	UserID   string                 `json:"user_id,omitempty"`
	Category string                 `json:"category,omitempty"`
	Spent    decimal.Decimal        `json:"spent"`
	Limit    decimal.Decimal        `json:"limit"`
	Message  string                 `json:"message"`
	FiredAt  time.Time              `json:"fired_at"`
}

// UsagePct returns spend as a percentage of the limit.
func (a Alert) UsagePct() float64 {
	if !a.Limit.IsPositive() {
		return 0
	}
	pct, _ := a.Spent.Div(a.Limit).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// Sink receives fired alerts. Fire must not report failure to the caller:
// delivery problems are handled, and logged, inside the sink.
type Sink interface {
	Fire(ctx context.Context, alert Alert)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, alert Alert)

func (f SinkFunc) Fire(ctx context.Context, alert Alert) { f(ctx, alert) }

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
