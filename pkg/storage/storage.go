package storage

import (
	"context"
	"errors"

	"github.com/financeos/fos/pkg/model"
)

// ErrNotFound is returned when a requested row does not exist for the user.
var ErrNotFound = errors.New("not found")

// RecentNotificationLimit caps how many notifications RecentNotifications returns.
const RecentNotificationLimit = 50

// NotificationStore persists in-app notifications. Every call is scoped to one user.
type NotificationStore interface {
	// RecentNotifications returns the newest notifications for the user, read or not.
	RecentNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)

	// CreateNotification inserts an unread notification and returns it with its id.
	CreateNotification(ctx context.Context, userID string, typ model.NotificationType, message string) (*model.Notification, error)

	// MarkAllNotificationsRead flips every unread notification of the user to read.
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// ExpenseStore persists expenses.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e *model.Expense) error
	UpdateExpense(ctx context.Context, e *model.Expense) error
	DeleteExpense(ctx context.Context, userID, id string) error
	GetExpense(ctx context.Context, userID, id string) (*model.Expense, error)

	// ListExpenses returns the user's expenses, newest date first.
	ListExpenses(ctx context.Context, userID string) ([]model.Expense, error)
}

// IncomeStore persists incomes.
type IncomeStore interface {
	CreateIncome(ctx context.Context, i *model.Income) error
	UpdateIncome(ctx context.Context, i *model.Income) error
	DeleteIncome(ctx context.Context, userID, id string) error
	GetIncome(ctx context.Context, userID, id string) (*model.Income, error)
	ListIncomes(ctx context.Context, userID string) ([]model.Income, error)
}

// IOUStore persists money lent and borrowed.
type IOUStore interface {
	CreateIOU(ctx context.Context, o *model.IOU) error

	// UpdateIOU replaces every mutable field, settlement included.
	UpdateIOU(ctx context.Context, o *model.IOU) error
	DeleteIOU(ctx context.Context, userID, id string) error
	GetIOU(ctx context.Context, userID, id string) (*model.IOU, error)

	// ListIOUs returns open IOUs before settled ones, newest first within each.
	ListIOUs(ctx context.Context, userID string) ([]model.IOU, error)
}

// BudgetStore persists monthly budgets.
type BudgetStore interface {
	// GetBudget returns the user's budget for month, or ErrNotFound.
	GetBudget(ctx context.Context, userID, month string) (*model.Budget, error)

	// UpsertBudget creates or replaces the budget for (user, month).
	UpsertBudget(ctx context.Context, b *model.Budget) error
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	// GetProfile returns the profile, or ErrNotFound.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error
}

// Storage is the full persistence layer.
type Storage interface {
	NotificationStore
	ExpenseStore
	IncomeStore
	IOUStore
	BudgetStore
	ProfileStore

	// Close releases resources.
	Close() error
}
