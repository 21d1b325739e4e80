package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/financeos/fos/pkg/model"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Notifications

func (s *SQLite) RecentNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = RecentNotificationLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, message, is_read, created_at
		 FROM notification_logs WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateNotification(ctx context.Context, userID string, typ model.NotificationType, message string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_logs (id, user_id, type, message, is_read, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		n.ID, n.UserID, string(n.Type), n.Message, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func (s *SQLite) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notification_logs SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// Expenses

func (s *SQLite) CreateExpense(ctx context.Context, e *model.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, amount, category, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount, e.Category, e.Description, e.Date, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateExpense(ctx context.Context, e *model.Expense) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, category = ?, description = ?, date = ?
		 WHERE id = ? AND user_id = ?`,
		e.Amount, e.Category, e.Description, e.Date, e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return expectOneRow(result, "expense", e.ID)
}

func (s *SQLite) DeleteExpense(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return expectOneRow(result, "expense", id)
}

func (s *SQLite) GetExpense(ctx context.Context, userID, id string) (*model.Expense, error) {
	var e model.Expense
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, category, description, date, created_at
		 FROM expenses WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Description, &e.Date, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return &e, nil
}

func (s *SQLite) ListExpenses(ctx context.Context, userID string) ([]model.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, category, description, date, created_at
		 FROM expenses WHERE user_id = ? ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []model.Expense
	for rows.Next() {
		var e model.Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Description, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Incomes

func (s *SQLite) CreateIncome(ctx context.Context, i *model.Income) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incomes (id, user_id, amount, source, description, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.UserID, i.Amount, i.Source, i.Description, i.Date, i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateIncome(ctx context.Context, i *model.Income) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE incomes SET amount = ?, source = ?, description = ?, date = ?
		 WHERE id = ? AND user_id = ?`,
		i.Amount, i.Source, i.Description, i.Date, i.ID, i.UserID,
	)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return expectOneRow(result, "income", i.ID)
}

func (s *SQLite) GetIncome(ctx context.Context, userID, id string) (*model.Income, error) {
	var i model.Income
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, source, description, date, created_at
		 FROM incomes WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&i.ID, &i.UserID, &i.Amount, &i.Source, &i.Description, &i.Date, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("income %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get income: %w", err)
	}
	return &i, nil
}

func (s *SQLite) DeleteIncome(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM incomes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return expectOneRow(result, "income", id)
}

func (s *SQLite) ListIncomes(ctx context.Context, userID string) ([]model.Income, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, source, description, date, created_at
		 FROM incomes WHERE user_id = ? ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []model.Income
	for rows.Next() {
		var i model.Income
		if err := rows.Scan(&i.ID, &i.UserID, &i.Amount, &i.Source, &i.Description, &i.Date, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan income row: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// IOUs

const iouColumns = `id, user_id, person_name, amount, type, description, is_settled, settled_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIOU(row rowScanner) (model.IOU, error) {
	var (
		o         model.IOU
		settledAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.UserID, &o.PersonName, &o.Amount, &o.Type,
		&o.Description, &o.IsSettled, &settledAt, &o.CreatedAt)
	if settledAt.Valid {
		o.SettledAt = &settledAt.Time
	}
	return o, err
}

func settledAtValue(o *model.IOU) sql.NullTime {
	if o.SettledAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *o.SettledAt, Valid: true}
}

func (s *SQLite) CreateIOU(ctx context.Context, o *model.IOU) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ious (`+iouColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.PersonName, o.Amount, string(o.Type), o.Description,
		o.IsSettled, settledAtValue(o), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert iou: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateIOU(ctx context.Context, o *model.IOU) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE ious SET person_name = ?, amount = ?, type = ?, description = ?,
		   is_settled = ?, settled_at = ?
		 WHERE id = ? AND user_id = ?`,
		o.PersonName, o.Amount, string(o.Type), o.Description,
		o.IsSettled, settledAtValue(o), o.ID, o.UserID,
	)
	if err != nil {
		return fmt.Errorf("update iou: %w", err)
	}
	return expectOneRow(result, "iou", o.ID)
}

func (s *SQLite) DeleteIOU(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ious WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete iou: %w", err)
	}
	return expectOneRow(result, "iou", id)
}

func (s *SQLite) GetIOU(ctx context.Context, userID, id string) (*model.IOU, error) {
	o, err := scanIOU(s.db.QueryRowContext(ctx,
		`SELECT `+iouColumns+` FROM ious WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("iou %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get iou: %w", err)
	}
	return &o, nil
}

func (s *SQLite) ListIOUs(ctx context.Context, userID string) ([]model.IOU, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+iouColumns+` FROM ious WHERE user_id = ?
		 ORDER BY is_settled ASC, created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list ious: %w", err)
	}
	defer rows.Close()

	var out []model.IOU
	for rows.Next() {
		o, err := scanIOU(rows)
		if err != nil {
			return nil, fmt.Errorf("scan iou row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Budgets

func (s *SQLite) GetBudget(ctx context.Context, userID, month string) (*model.Budget, error) {
	var (
		b      model.Budget
		limits string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, month, monthly_limit, category_limits, created_at, updated_at
		 FROM budgets WHERE user_id = ? AND month = ?`, userID, month,
	).Scan(&b.ID, &b.UserID, &b.Month, &b.MonthlyLimit, &limits, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget for %s: %w", month, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	if err := json.Unmarshal([]byte(limits), &b.CategoryLimits); err != nil {
		return nil, fmt.Errorf("decode category limits: %w", err)
	}
	return &b, nil
}

func (s *SQLite) UpsertBudget(ctx context.Context, b *model.Budget) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	limits := b.CategoryLimits
	if limits == nil {
		limits = []model.CategoryLimit{}
	}
	encoded, err := json.Marshal(limits)
	if err != nil {
		return fmt.Errorf("encode category limits: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, month, monthly_limit, category_limits, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, month) DO UPDATE SET
		   monthly_limit = excluded.monthly_limit,
		   category_limits = excluded.category_limits,
		   updated_at = excluded.updated_at`,
		b.ID, b.UserID, b.Month, b.MonthlyLimit, string(encoded), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

// Profiles

func (s *SQLite) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, display_name, currency, email_notifications, updated_at
		 FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Email, &p.DisplayName, &p.Currency, &p.EmailNotifications, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *SQLite) UpsertProfile(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	if p.Currency == "" {
		p.Currency = "INR"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, email, display_name, currency, email_notifications, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   email = excluded.email,
		   display_name = excluded.display_name,
		   currency = excluded.currency,
		   email_notifications = excluded.email_notifications,
		   updated_at = excluded.updated_at`,
		p.UserID, p.Email, p.DisplayName, p.Currency, p.EmailNotifications, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func expectOneRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	return nil
}
