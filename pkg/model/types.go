package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidMonth    = errors.New("month must be formatted as YYYY-MM")
	ErrInvalidDate     = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidLimit    = errors.New("limit must not be negative")
	ErrDuplicateLimit  = errors.New("category limit set more than once")
	ErrPersonRequired  = errors.New("person name is required")
	ErrInvalidIOUType  = errors.New("iou type must be owes_me or i_owe")
)

// DateLayout is the storage format of expense and income dates.
const DateLayout = "2006-01-02"

// MonthLayout is the storage format of budget months.
const MonthLayout = "2006-01"

// Expense is a single spending entry.
type Expense struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Category    string          `json:"category" db:"category"`
	Description string          `json:"description,omitempty" db:"description"`
	Date        string          `json:"date" db:"date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Income is a single earning entry.
type Income struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Source      string          `json:"source" db:"source"`
	Description string          `json:"description,omitempty" db:"description"`
	Date        string          `json:"date" db:"date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// IOUType says which way an IOU runs.
type IOUType string

const (
	IOUOwesMe IOUType = "owes_me"
	IOUIOwe   IOUType = "i_owe"
)

// IOU is money lent to or borrowed from someone. It is tracked apart from
// expenses and never counts toward a budget.
type IOU struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	PersonName  string          `json:"person_name" db:"person_name"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Type        IOUType         `json:"type" db:"type"`
	Description string          `json:"description,omitempty" db:"description"`
	IsSettled   bool            `json:"is_settled" db:"is_settled"`
	SettledAt   *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// CategoryLimit caps spending for one category. A zero limit means no limit.
type CategoryLimit struct {
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
}

// Budget holds the limits a user configured for one month.
type Budget struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	Month          string          `json:"month" db:"month"`
	MonthlyLimit   decimal.Decimal `json:"monthly_limit" db:"monthly_limit"`
	CategoryLimits []CategoryLimit `json:"category_limits" db:"category_limits"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Profile carries the per-user preferences read by the alert sink.
type Profile struct {
	UserID             string    `json:"user_id" db:"user_id"`
	Email              string    `json:"email" db:"email"`
	DisplayName        string    `json:"display_name,omitempty" db:"display_name"`
	Currency           string    `json:"currency" db:"currency"`
	EmailNotifications bool      `json:"email_notifications" db:"email_notifications"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// NotificationType tags persisted notifications.
type NotificationType string

const NotificationBudgetAlert NotificationType = "budget_alert"

// Notification is a persisted in-app notification.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Message   string           `json:"message" db:"message"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// Snapshot is the current spend compared against configured limits.
// CategoryLimits keeps the order in which limits were configured.
type Snapshot struct {
	TotalSpent       decimal.Decimal
	MonthlyLimit     decimal.Decimal
	CategorySpending map[string]decimal.Decimal
	CategoryLimits   []CategoryLimit
}

// Validate checks an expense before it is stored.
func (e *Expense) Validate(categories *CategorySet) error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if categories != nil && !categories.Contains(e.Category) {
		return ErrUnknownCategory
	}
	if _, err := time.Parse(DateLayout, e.Date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks an income before it is stored.
func (i *Income) Validate() error {
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := time.Parse(DateLayout, i.Date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks an IOU before it is stored.
func (o *IOU) Validate() error {
	if strings.TrimSpace(o.PersonName) == "" {
		return ErrPersonRequired
	}
	if !o.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	switch o.Type {
	case IOUOwesMe, IOUIOwe:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIOUType, o.Type)
	}
	return nil
}

// Settle marks the IOU settled at t, or reopens it when settled is false.
func (o *IOU) Settle(settled bool, t time.Time) {
	o.IsSettled = settled
	if settled {
		at := t.UTC()
		o.SettledAt = &at
		return
	}
	o.SettledAt = nil
}

// Validate checks a budget before it is stored.
func (b *Budget) Validate(categories *CategorySet) error {
	if _, _, err := MonthBounds(b.Month); err != nil {
		return err
	}
	if b.MonthlyLimit.IsNegative() {
		return ErrInvalidLimit
	}
	seen := make(map[string]struct{}, len(b.CategoryLimits))
	for _, cl := range b.CategoryLimits {
		if categories != nil && !categories.Contains(cl.Category) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, cl.Category)
		}
		if cl.Limit.IsNegative() {
			return fmt.Errorf("%w: %q", ErrInvalidLimit, cl.Category)
		}
		if _, ok := seen[cl.Category]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateLimit, cl.Category)
		}
		seen[cl.Category] = struct{}{}
	}
	return nil
}

// LimitFor returns the configured limit for a category, or zero.
func (b *Budget) LimitFor(category string) decimal.Decimal {
	for _, cl := range b.CategoryLimits {
		if cl.Category == category {
			return cl.Limit
		}
	}
	return decimal.Zero
}

// ParseLimit converts a loosely typed limit value into a decimal.
// Values that are not numeric yield zero, which means no limit.
func ParseLimit(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case float64:
		return decimal.NewFromFloat(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		return ParseLimit(string(x))
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// MonthOf returns the YYYY-MM month of t in UTC.
func MonthOf(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// CurrentMonth returns the current UTC month as YYYY-MM.
func CurrentMonth() string {
	return MonthOf(time.Now())
}

// MonthBounds returns the first day of month and the first day of the next month.
func MonthBounds(month string) (start, end time.Time, err error) {
	start, err = time.Parse(MonthLayout, month)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidMonth
	}
	return start, start.AddDate(0, 1, 0), nil
}

// InMonth reports whether a YYYY-MM-DD date falls in month.
func InMonth(date, month string) bool {
	return len(date) >= len(MonthLayout) && date[:len(MonthLayout)] == month
}

// PreviousMonths returns n months ending with month, oldest first.
func PreviousMonths(month string, n int) ([]string, error) {
	start, _, err := MonthBounds(month)
	if err != nil {
		return nil, err
	}
	months := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		months = append(months, start.AddDate(0, -i, 0).Format(MonthLayout))
	}
	return months, nil
}
