// Package email delivers budget alert emails. A Dispatcher hands a Request
// to some transport (the email function over HTTP, or an AMQP queue); the
// Sender at the end of the line renders the message and calls Resend.
package email

import (
	"context"
	"errors"
	"strings"
)

// ErrEmailRequired is returned when a request carries no recipient.
var ErrEmailRequired = errors.New("email is required")

// Request is the payload of a budget alert email.
type Request struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Message     string `json:"message"`
	BudgetInfo  string `json:"budgetInfo,omitempty"`
}

// Validate checks the request has a recipient.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return ErrEmailRequired
	}
	return nil
}

// Name returns the greeting name: the display name, or the local part of
// the email address when no display name is set.
func (r Request) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	local, _, _ := strings.Cut(r.Email, "@")
	return local
}

// Result reports what the email function did with a request.
type Result struct {
	Sent   bool   `json:"sent"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Dispatcher hands an alert email off for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, req Request) error

func (f DispatcherFunc) Dispatch(ctx context.Context, req Request) error { return f(ctx, req) }

// Nop drops every request.
type Nop struct{}

func (Nop) Dispatch(context.Context, Request) error { return nil }
