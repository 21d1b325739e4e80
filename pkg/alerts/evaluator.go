package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/financeos/fos/pkg/currency"
	"github.com/financeos/fos/pkg/model"
	"github.com/shopspring/decimal"
)

// Evaluator decides which budget thresholds have just been crossed.
// It remembers the keys of thresholds that are currently exceeded and
// fires each one once per exceeded episode. One Evaluator belongs to
// one user session.
type Evaluator struct {
	mu       sync.Mutex
	fired    map[string]struct{}
	sink     Sink
	currency currency.Currency
	logger   *slog.Logger
	now      func() time.Time
}

// NewEvaluator creates an Evaluator with an empty fired set.
// Messages are formatted in cur.
func NewEvaluator(sink Sink, cur currency.Currency, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		fired:    make(map[string]struct{}),
		sink:     sink,
		currency: cur,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate compares snap against its limits and fires every threshold that
// is exceeded and not already fired. Thresholds back at or under their
// limit are cleared silently. The overall threshold goes first, then the
// category limits in the order they appear in the snapshot.
//
// Calls are serialized: a pass, including the sink calls it makes, finishes
// before the next pass starts. The returned alerts are the ones fired by
// this pass, in firing order.
func (e *Evaluator) Evaluate(ctx context.Context, snap model.Snapshot) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluate(ctx, snap)
}

// EvaluateFunc loads a snapshot with load and evaluates it within the same
// serialized pass. Spend read by one pass is never evaluated after a later
// pass has run. A load error ends the pass with the fired set untouched.
func (e *Evaluator) EvaluateFunc(ctx context.Context, load func(context.Context) (model.Snapshot, error)) ([]Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := load(ctx)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, snap), nil
}

// SetCurrency changes the currency later messages are formatted in.
func (e *Evaluator) SetCurrency(cur currency.Currency) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currency = cur
}

func (e *Evaluator) evaluate(ctx context.Context, snap model.Snapshot) []Alert {
	var out []Alert

	if snap.MonthlyLimit.IsPositive() && snap.TotalSpent.GreaterThan(snap.MonthlyLimit) {
		if a, ok := e.arm(OverallKey, ScopeOverall, "", snap.TotalSpent, snap.MonthlyLimit); ok {
			out = append(out, e.fire(ctx, a))
		}
	} else {
		e.clear(OverallKey)
	}

	for _, cl := range snap.CategoryLimits {
		if !cl.Limit.IsPositive() {
			continue
		}
		key := CategoryKey(cl.Category)
		spent := snap.CategorySpending[cl.Category]
		if spent.GreaterThan(cl.Limit) {
			if a, ok := e.arm(key, ScopeCategory, cl.Category, spent, cl.Limit); ok {
				out = append(out, e.fire(ctx, a))
			}
			continue
		}
		e.clear(key)
	}

	return out
}

// Fired returns the keys of thresholds currently considered exceeded, sorted.
func (e *Evaluator) Fired() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]string, 0, len(e.fired))
	for k := range e.fired {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset forgets every fired threshold.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fired = make(map[string]struct{})
}

// arm records key as fired and builds its alert. It reports false when the
// key was already fired.
func (e *Evaluator) arm(key string, scope Scope, category string, spent, limit decimal.Decimal) (Alert, bool) {
	if _, ok := e.fired[key]; ok {
		return Alert{}, false
	}
	e.fired[key] = struct{}{}

	return Alert{
		Key:      key,
		Scope:    scope,
		Type:     model.NotificationBudgetAlert,
		Category: category,
		Spent:    spent,
		Limit:    limit,
		Message:  e.message(scope, category, spent, limit),
		FiredAt:  e.now().UTC(),
	}, true
}

func (e *Evaluator) clear(key string) {
	if _, ok := e.fired[key]; ok {
		delete(e.fired, key)
		e.logger.Debug("budget threshold recovered", "key", key)
	}
}

func (e *Evaluator) fire(ctx context.Context, a Alert) Alert {
	e.logger.Info("budget threshold exceeded",
		"key", a.Key,
		"spent", a.Spent.String(),
		"limit", a.Limit.String(),
	)
	if e.sink != nil {
		e.sink.Fire(ctx, a)
	}
	return a
}

func (e *Evaluator) message(scope Scope, category string, spent, limit decimal.Decimal) string {
	if scope == ScopeOverall {
		return fmt.Sprintf("⚠️ Monthly budget exceeded! Spent %s of %s limit.",
			e.currency.Format(spent), e.currency.Format(limit))
	}
	return fmt.Sprintf("⚠️ \"%s\" budget exceeded! Spent %s of %s limit.",
		category, e.currency.Format(spent), e.currency.Format(limit))
}
