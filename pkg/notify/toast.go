// Package notify turns fired budget alerts into user-facing notifications:
// transient toasts, the persisted notification inbox and outbound channels.
package notify

import (
	"sync"
	"time"
)

// Severity is the style of a toast.
type Severity string

const (
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

// Toaster shows a transient message to the user. It never fails.
type Toaster interface {
	Notify(message string, severity Severity)
}

// Toast is one queued transient message.
type Toast struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// ToastQueue buffers toasts until a client drains them. When full, the
// oldest toast is dropped.
type ToastQueue struct {
	mu     sync.Mutex
	toasts []Toast
	max    int
}

// NewToastQueue creates a queue holding at most max toasts.
func NewToastQueue(max int) *ToastQueue {
	if max <= 0 {
		max = 20
	}
	return &ToastQueue{max: max}
}

func (q *ToastQueue) Notify(message string, severity Severity) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.toasts = append(q.toasts, Toast{Message: message, Severity: severity, CreatedAt: time.Now().UTC()})
	if over := len(q.toasts) - q.max; over > 0 {
		q.toasts = q.toasts[over:]
	}
}

// Drain returns the queued toasts, oldest first, and empties the queue.
func (q *ToastQueue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.toasts
	q.toasts = nil
	return out
}
