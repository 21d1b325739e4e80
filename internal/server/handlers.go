package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/financeos/fos/pkg/alerts"
	"github.com/financeos/fos/pkg/currency"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/session"
	"github.com/financeos/fos/pkg/storage"
	"github.com/shopspring/decimal"
)

// changeResponse is returned by every write that re-evaluates the budget.
type changeResponse struct {
	Expense *model.Expense `json:"expense,omitempty"`
	Budget  *model.Budget  `json:"budget,omitempty"`
	Alerts  []alerts.Alert `json:"alerts"`
}

func firedOrEmpty(a []alerts.Alert) []alerts.Alert {
	if a == nil {
		return []alerts.Alert{}
	}
	return a
}

type expenseRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
}

func (req expenseRequest) apply(e *model.Expense) {
	if req.Amount != nil {
		e.Amount = *req.Amount
	}
	if req.Category != nil {
		e.Category = *req.Category
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Date != nil {
		e.Date = *req.Date
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	expenses, err := s.deps.Tracker.Expenses(r.Context(), sess.UserID)
	if err != nil {
		s.fail(w, "list expenses", err)
		return
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e := &model.Expense{UserID: sess.UserID}
	req.apply(e)

	fired, err := s.deps.Tracker.AddExpense(r.Context(), e)
	if err != nil {
		s.fail(w, "create expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, changeResponse{Expense: e, Alerts: firedOrEmpty(fired)})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := s.deps.Tracker.Expense(r.Context(), sess.UserID, r.PathValue("id"))
	if err != nil {
		s.fail(w, "get expense", err)
		return
	}
	req.apply(e)

	fired, err := s.deps.Tracker.UpdateExpense(r.Context(), e)
	if err != nil {
		s.fail(w, "update expense", err)
		return
	}
	writeJSON(w, http.StatusOK, changeResponse{Expense: e, Alerts: firedOrEmpty(fired)})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	fired, err := s.deps.Tracker.DeleteExpense(r.Context(), sess.UserID, r.PathValue("id"))
	if err != nil {
		s.fail(w, "delete expense", err)
		return
	}
	writeJSON(w, http.StatusOK, changeResponse{Alerts: firedOrEmpty(fired)})
}

type incomeRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Source      *string          `json:"source"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
}

func (req incomeRequest) apply(i *model.Income) {
	if req.Amount != nil {
		i.Amount = *req.Amount
	}
	if req.Source != nil {
		i.Source = *req.Source
	}
	if req.Description != nil {
		i.Description = *req.Description
	}
	if req.Date != nil {
		i.Date = *req.Date
	}
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	incomes, err := s.deps.Tracker.Incomes(r.Context(), sess.UserID)
	if err != nil {
		s.fail(w, "list incomes", err)
		return
	}
	if incomes == nil {
		incomes = []model.Income{}
	}
	writeJSON(w, http.StatusOK, incomes)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req incomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	i := &model.Income{UserID: sess.UserID}
	req.apply(i)
	if err := s.deps.Tracker.AddIncome(r.Context(), i); err != nil {
		s.fail(w, "create income", err)
		return
	}
	writeJSON(w, http.StatusCreated, i)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req incomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	i, err := s.deps.Tracker.Income(r.Context(), sess.UserID, r.PathValue("id"))
	if err != nil {
		s.fail(w, "get income", err)
		return
	}
	req.apply(i)

	if err := s.deps.Tracker.UpdateIncome(r.Context(), i); err != nil {
		s.fail(w, "update income", err)
		return
	}
	writeJSON(w, http.StatusOK, i)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := s.deps.Tracker.DeleteIncome(r.Context(), sess.UserID, r.PathValue("id")); err != nil {
		s.fail(w, "delete income", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type iouRequest struct {
	PersonName  *string          `json:"person_name"`
	Amount      *decimal.Decimal `json:"amount"`
	Type        *model.IOUType   `json:"type"`
	Description *string          `json:"description"`
}

func (req iouRequest) apply(o *model.IOU) {
	if req.PersonName != nil {
		o.PersonName = strings.TrimSpace(*req.PersonName)
	}
	if req.Amount != nil {
		o.Amount = *req.Amount
	}
	if req.Type != nil {
		o.Type = *req.Type
	}
	if req.Description != nil {
		o.Description = *req.Description
	}
}

func (s *Server) handleListIOUs(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ious, err := s.deps.Tracker.IOUs(r.Context(), sess.UserID)
	if err != nil {
		s.fail(w, "list ious", err)
		return
	}
	if ious == nil {
		ious = []model.IOU{}
	}
	writeJSON(w, http.StatusOK, ious)
}

func (s *Server) handleCreateIOU(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req iouRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o := &model.IOU{UserID: sess.UserID}
	req.apply(o)
	if err := s.deps.Tracker.AddIOU(r.Context(), o); err != nil {
		s.fail(w, "create iou", err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleUpdateIOU(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req iouRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := s.deps.Tracker.IOU(r.Context(), sess.UserID, r.PathValue("id"))
	if err != nil {
		s.fail(w, "get iou", err)
		return
	}
	req.apply(o)

	if err := s.deps.Tracker.UpdateIOU(r.Context(), o); err != nil {
		s.fail(w, "update iou", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleSettleIOU(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Settled *bool `json:"settled"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Settled == nil {
		writeError(w, http.StatusBadRequest, "settled is required")
		return
	}

	o, err := s.deps.Tracker.SettleIOU(r.Context(), sess.UserID, r.PathValue("id"), *req.Settled)
	if err != nil {
		s.fail(w, "settle iou", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDeleteIOU(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := s.deps.Tracker.DeleteIOU(r.Context(), sess.UserID, r.PathValue("id")); err != nil {
		s.fail(w, "delete iou", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// budgetRequest accepts limits as numbers or numeric strings. Anything
// else counts as no limit.
type budgetRequest struct {
	Month          string `json:"month"`
	MonthlyLimit   any    `json:"monthly_limit"`
	CategoryLimits []struct {
		Category string `json:"category"`
		Limit    any    `json:"limit"`
	} `json:"category_limits"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	b, err := s.deps.Tracker.Budget(r.Context(), sess.UserID, r.URL.Query().Get("month"))
	if err != nil {
		s.fail(w, "get budget", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handlePutBudget(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b := &model.Budget{
		UserID:         sess.UserID,
		Month:          req.Month,
		MonthlyLimit:   model.ParseLimit(req.MonthlyLimit),
		CategoryLimits: make([]model.CategoryLimit, 0, len(req.CategoryLimits)),
	}
	for _, cl := range req.CategoryLimits {
		b.CategoryLimits = append(b.CategoryLimits, model.CategoryLimit{
			Category: cl.Category,
			Limit:    model.ParseLimit(cl.Limit),
		})
	}

	fired, err := s.deps.Tracker.SaveBudget(r.Context(), b)
	if err != nil {
		s.fail(w, "save budget", err)
		return
	}
	writeJSON(w, http.StatusOK, changeResponse{Budget: b, Alerts: firedOrEmpty(fired)})
}

type profileRequest struct {
	Email              string `json:"email"`
	DisplayName        string `json:"display_name"`
	Currency           string `json:"currency"`
	EmailNotifications bool   `json:"email_notifications"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	p, err := s.deps.Profiles.GetProfile(r.Context(), sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		p = &model.Profile{UserID: sess.UserID, Currency: currency.Default().Code}
	} else if err != nil {
		s.fail(w, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cur := currency.Default()
	if req.Currency != "" {
		c, err := currency.Lookup(req.Currency)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cur = c
	}

	p := &model.Profile{
		UserID:             sess.UserID,
		Email:              strings.TrimSpace(req.Email),
		DisplayName:        req.DisplayName,
		Currency:           cur.Code,
		EmailNotifications: req.EmailNotifications,
	}
	if err := s.deps.Profiles.UpsertProfile(r.Context(), p); err != nil {
		s.fail(w, "save profile", err)
		return
	}
	s.deps.Sessions.SetCurrency(sess.UserID, cur)
	writeJSON(w, http.StatusOK, p)
}

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

// handleListNotifications returns the session's inbox. ?refresh=true
// reloads it from the store first.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := sess.Inbox.Refresh(r.Context()); err != nil {
			s.fail(w, "refresh notifications", err)
			return
		}
	}
	items := sess.Inbox.Items()
	if items == nil {
		items = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: items, Unread: sess.Inbox.Unread()})
}

func (s *Server) handleReadAllNotifications(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Inbox.MarkAllRead(r.Context()); err != nil {
		s.fail(w, "mark notifications read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": sess.Inbox.Unread()})
}

func (s *Server) handleDrainToasts(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	toasts := sess.Toasts.Drain()
	if toasts == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, toasts)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	summary, err := s.deps.Tracker.Summary(r.Context(), sess.UserID, r.URL.Query().Get("month"))
	if err != nil {
		s.fail(w, "summarize", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
