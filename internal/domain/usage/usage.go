// Package usage describes classifier token consumption for a reporting period.
package usage

import (
	"fmt"

	"github.com/kailas-cloud/stockmarks/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod validates a period name. Empty means PeriodDay.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q (want day, month or total): %w", s, domain.ErrInvalidRequest)
	}
}

// Budget is the token budget state for a period. A zero limit means unlimited.
type Budget struct {
	limit     int64
	remaining int64
	resetsAt  int64 // unix millis, 0 when the period has no end
}

// NewBudget creates a budget snapshot.
func NewBudget(limit, remaining, resetsAt int64) Budget {
	if remaining < 0 {
		remaining = 0
	}
	return Budget{limit: limit, remaining: remaining, resetsAt: resetsAt}
}

// Limit returns the token limit.
func (b Budget) Limit() int64 { return b.limit }

// Remaining returns the tokens left in the period.
func (b Budget) Remaining() int64 { return b.remaining }

// Exhausted reports whether a limited budget has no tokens left.
func (b Budget) Exhausted() bool { return b.limit > 0 && b.remaining == 0 }

// ResetsAt returns when the budget resets (unix millis).
func (b Budget) ResetsAt() int64 { return b.resetsAt }

// Report is classifier usage for one period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	model       string
	tokens      int64
	budget      Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, model string, tokens int64, b Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		model:       model,
		tokens:      tokens,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r Report) PeriodEnd() int64 { return r.periodEnd }

// Model returns the classifier model the report covers.
func (r Report) Model() string { return r.model }

// Tokens returns the tokens consumed in the period.
func (r Report) Tokens() int64 { return r.tokens }

// Budget returns the budget status.
func (r Report) Budget() Budget { return r.budget }
