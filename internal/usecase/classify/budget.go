package classify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/domain"
)

// BudgetAction defines behavior when the token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore is the persistence interface for budget counters.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// window is one rolling budget period (a UTC day or month).
type window struct {
	name     string
	layout   string
	truncate func(time.Time) time.Time
	limit    int64
	used     int64
	start    time.Time
}

func (w *window) roll(now time.Time) {
	if cur := w.truncate(now); cur.After(w.start) {
		w.used = 0
		w.start = cur
	}
}

func (w *window) exceeded() bool {
	return w.limit > 0 && w.used >= w.limit
}

func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1 // unlimited
	}
	return max(w.limit-w.used, 0)
}

// BudgetTracker enforces daily and monthly classifier token limits.
// Check reads in-memory counters only; Record writes behind to the store.
type BudgetTracker struct {
	mu        sync.Mutex
	daily     window
	monthly   window
	action    BudgetAction
	keyPrefix string
	now       func() time.Time
	store     BudgetStore
	logger    *zap.Logger
}

// NewBudgetTracker creates a budget tracker. A zero limit means unlimited.
// keyPrefix namespaces the persisted counters (e.g. "stockmarks:").
func NewBudgetTracker(
	keyPrefix string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		daily: window{
			name: "daily", layout: "2006-01-02", truncate: truncateToDay, limit: dailyLimit,
		},
		monthly: window{
			name: "monthly", layout: "2006-01", truncate: truncateToMonth, limit: monthlyLimit,
		},
		action:    action,
		keyPrefix: keyPrefix,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	now := b.now()
	b.daily.start = truncateToDay(now)
	b.monthly.start = truncateToMonth(now)
	return b
}

// WithStore attaches a persistence store and loads the current counters.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	for _, w := range []*window{&b.daily, &b.monthly} {
		val, err := store.Get(ctx, b.key(w, now))
		if err != nil {
			b.logger.Warn("Failed to load classifier budget from store",
				zap.String("window", w.name), zap.Error(err))
			continue
		}
		w.used = val
	}

	b.logger.Info("Classifier budget loaded from store",
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("monthly_used", b.monthly.used),
	)
	return b
}

func (b *BudgetTracker) key(w *window, t time.Time) string {
	return fmt.Sprintf("%sbudget:classifier:%s:%s", b.keyPrefix, w.name, t.Format(w.layout))
}

// Check verifies the budget allows a new request.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollLocked()
	if !b.daily.exceeded() && !b.monthly.exceeded() {
		return nil
	}

	if b.action == BudgetActionReject {
		return domain.ErrClassifierQuotaExceeded
	}

	b.logger.Warn("Classifier token budget exceeded",
		zap.Int64("daily_used", b.daily.used),
		zap.Int64("daily_limit", b.daily.limit),
		zap.Int64("monthly_used", b.monthly.used),
		zap.Int64("monthly_limit", b.monthly.limit),
	)
	return nil
}

// Record registers consumed tokens after a request.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.rollLocked()
	b.daily.used += tokens
	b.monthly.used += tokens
	store := b.store
	now := b.now()
	keys := []string{b.key(&b.daily, now), b.key(&b.monthly, now)}
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Write-behind on a detached context.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, key := range keys {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist classifier budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left in the daily budget (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.daily.remaining()
}

// RemainingMonthly returns tokens left in the monthly budget (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.monthly.remaining()
}

// DailyLimit returns the daily token cap.
func (b *BudgetTracker) DailyLimit() int64 { return b.daily.limit }

// MonthlyLimit returns the monthly token cap.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.monthly.limit }

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.daily.used
}

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	return b.monthly.used
}

func (b *BudgetTracker) rollLocked() {
	now := b.now()
	b.daily.roll(now)
	b.monthly.roll(now)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
