package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/stockmarks/internal/domain/usage"
)

// Service handles classifier usage reporting.
type Service struct {
	br    BudgetReader
	model string
	now   func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader, model string) *Service {
	return &Service{br: br, model: model, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()
	var start, end int64
	var limit, used, remaining int64

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start = dayStart.UnixMilli()
		end = dayStart.AddDate(0, 0, 1).UnixMilli()
		if s.br != nil {
			limit, used, remaining = s.br.DailyLimit(), s.br.DailyUsed(), s.br.RemainingDaily()
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start = monthStart.UnixMilli()
		end = monthStart.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			limit, used, remaining = s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly()
		}
	default:
		// total has no boundaries; the monthly window is the widest one tracked
		if s.br != nil {
			limit, used, remaining = s.br.MonthlyLimit(), s.br.MonthlyUsed(), s.br.RemainingMonthly()
		}
	}

	return domusage.NewReport(period, start, end, s.model, used, domusage.NewBudget(limit, remaining, end))
}
