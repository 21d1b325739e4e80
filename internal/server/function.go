package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/financeos/fos/pkg/email"
)

func setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

func (s *Server) handleFunctionPreflight(w http.ResponseWriter, _ *http.Request) {
	setCORS(w)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleSendBudgetAlert is the email function: it renders and sends one
// budget alert email through Resend.
func (s *Server) handleSendBudgetAlert(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if s.deps.FunctionKey != "" && r.Header.Get("Authorization") != "Bearer "+s.deps.FunctionKey {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req email.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := s.deps.Sender.Send(ctx, req)
	var perr *email.ProviderError
	switch {
	case errors.As(err, &perr):
		s.logger.Error("resend rejected email", "email", req.Email, "status", perr.StatusCode)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"sent": false, "error": perr.Body})
	case err != nil:
		s.logger.Error("send budget alert email", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, result)
	}
}
