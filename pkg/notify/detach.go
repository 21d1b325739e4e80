package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

// Detached runs fire-and-forget tasks. A task's error or panic is logged
// and passed to the error hook; it never reaches whoever started the task.
type Detached struct {
	wg      conc.WaitGroup
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	onError func(task string, err error)
}

// NewDetached creates a task group. Each task gets its own context bounded
// by timeout and detached from the caller's cancellation.
func NewDetached(timeout time.Duration, logger *slog.Logger) *Detached {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detached{timeout: timeout, logger: logger}
}

// OnError registers a hook called with each failed task. It may be called
// while tasks are running; a task failing afterwards sees the new hook.
func (d *Detached) OnError(fn func(task string, err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

func (d *Detached) errorHook() func(task string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.onError
}

// Go starts fn in the background.
func (d *Detached) Go(ctx context.Context, task string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.logger.Warn("detached task failed", "task", task, "error", err)
			if hook := d.errorHook(); hook != nil {
				hook(task, err)
			}
		}
	})
}

// Wait blocks until every started task has finished. Panics raised by
// tasks are logged rather than re-raised.
func (d *Detached) Wait() {
	if r := d.wg.WaitAndRecover(); r != nil {
		d.logger.Error("detached task panicked", "panic", r.String())
	}
}
