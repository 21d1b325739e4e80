package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/financeos/fos/pkg/email"
	"github.com/financeos/fos/pkg/model"
	"github.com/financeos/fos/pkg/session"
	"github.com/financeos/fos/pkg/storage"
	"github.com/financeos/fos/pkg/tracker"
)

// UserHeader carries the id of the authenticated user.
const UserHeader = "X-User-ID"

const requestTimeout = 10 * time.Second

// Deps are the collaborators the API serves.
type Deps struct {
	Tracker  *tracker.Tracker
	Sessions *session.Manager
	Profiles storage.ProfileStore

	// Sender backs the email function endpoint. FunctionKey, when set,
	// must be presented as a bearer token by callers of that endpoint.
	Sender      *email.Sender
	FunctionKey string
}

// Server provides the FinanceOS JSON API and the email function endpoint.
type Server struct {
	deps   Deps
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates an API server.
func NewServer(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		deps:   deps,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/sessions", s.withUser(s.handleOpenSession))
	s.mux.HandleFunc("DELETE /api/v1/sessions", s.withUser(s.handleCloseSession))

	s.mux.HandleFunc("GET /api/v1/expenses", s.withSession(s.handleListExpenses))
	s.mux.HandleFunc("POST /api/v1/expenses", s.withSession(s.handleCreateExpense))
	s.mux.HandleFunc("PUT /api/v1/expenses/{id}", s.withSession(s.handleUpdateExpense))
	s.mux.HandleFunc("DELETE /api/v1/expenses/{id}", s.withSession(s.handleDeleteExpense))

	s.mux.HandleFunc("GET /api/v1/incomes", s.withSession(s.handleListIncomes))
	s.mux.HandleFunc("POST /api/v1/incomes", s.withSession(s.handleCreateIncome))
	s.mux.HandleFunc("PUT /api/v1/incomes/{id}", s.withSession(s.handleUpdateIncome))
	s.mux.HandleFunc("DELETE /api/v1/incomes/{id}", s.withSession(s.handleDeleteIncome))

	s.mux.HandleFunc("GET /api/v1/ious", s.withSession(s.handleListIOUs))
	s.mux.HandleFunc("POST /api/v1/ious", s.withSession(s.handleCreateIOU))
	s.mux.HandleFunc("PUT /api/v1/ious/{id}", s.withSession(s.handleUpdateIOU))
	s.mux.HandleFunc("POST /api/v1/ious/{id}/settle", s.withSession(s.handleSettleIOU))
	s.mux.HandleFunc("DELETE /api/v1/ious/{id}", s.withSession(s.handleDeleteIOU))

	s.mux.HandleFunc("GET /api/v1/budget", s.withSession(s.handleGetBudget))
	s.mux.HandleFunc("PUT /api/v1/budget", s.withSession(s.handlePutBudget))

	s.mux.HandleFunc("GET /api/v1/profile", s.withSession(s.handleGetProfile))
	s.mux.HandleFunc("PUT /api/v1/profile", s.withSession(s.handlePutProfile))

	s.mux.HandleFunc("GET /api/v1/notifications", s.withSession(s.handleListNotifications))
	s.mux.HandleFunc("POST /api/v1/notifications/read-all", s.withSession(s.handleReadAllNotifications))
	s.mux.HandleFunc("GET /api/v1/toasts", s.withSession(s.handleDrainToasts))

	s.mux.HandleFunc("GET /api/v1/summary", s.withSession(s.handleSummary))

	s.mux.HandleFunc("OPTIONS /functions/v1/send-budget-alert", s.handleFunctionPreflight)
	s.mux.HandleFunc("POST /functions/v1/send-budget-alert", s.handleSendBudgetAlert)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withUser rejects requests without an authenticated user id.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		next(w, r.WithContext(ctx), userID)
	}
}

// withSession additionally requires the user to have logged in.
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
		sess, ok := s.deps.Sessions.Get(userID)
		if !ok {
			writeError(w, http.StatusUnauthorized, "no open session")
			return
		}
		next(w, r, sess)
	})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request, userID string) {
	sess, err := s.deps.Sessions.Open(r.Context(), userID)
	if err != nil {
		s.fail(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id": sess.UserID,
		"unread":  sess.Inbox.Unread(),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, _ *http.Request, userID string) {
	if !s.deps.Sessions.Close(userID) {
		writeError(w, http.StatusNotFound, "no open session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps err onto a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case isValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		model.ErrInvalidAmount,
		model.ErrUnknownCategory,
		model.ErrInvalidMonth,
		model.ErrInvalidDate,
		model.ErrInvalidLimit,
		model.ErrDuplicateLimit,
		model.ErrPersonRequired,
		model.ErrInvalidIOUType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
