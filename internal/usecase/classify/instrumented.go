package classify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	"github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
	"github.com/kailas-cloud/stockmarks/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedClassifier wraps a Classifier with budget enforcement and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedClassifier struct {
	inner  analysis.Classifier
	model  string
	budget BudgetChecker
	logger *zap.Logger
}

// NewInstrumentedClassifier wraps a classifier with budget and observability.
// budget can be nil (unlimited).
func NewInstrumentedClassifier(
	inner analysis.Classifier, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedClassifier {
	return &InstrumentedClassifier{
		inner:  inner,
		model:  model,
		budget: budget,
		logger: logger,
	}
}

// Classify checks the budget, delegates to the inner classifier and records usage.
func (p *InstrumentedClassifier) Classify(
	ctx context.Context, query string, products []catalog.Hit,
) (analysis.Classification, error) {
	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			p.logger.Error("Classifier budget exceeded",
				zap.String("model", p.model),
				zap.String("query", query),
				zap.Error(err),
			)
			return analysis.Classification{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()

	result, err := p.inner.Classify(ctx, query, products)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Classification request failed",
			zap.String("model", p.model),
			zap.String("query", query),
			zap.Int("products", len(products)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return analysis.Classification{}, fmt.Errorf("classify: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)

	if p.budget != nil && result.TotalTokens > 0 {
		p.budget.Record(int64(result.TotalTokens))
		remaining := metrics.ClassifierBudgetTokensRemaining
		remaining.WithLabelValues("daily").Set(float64(p.budget.RemainingDaily()))
		remaining.WithLabelValues("monthly").Set(float64(p.budget.RemainingMonthly()))
	}

	p.logger.Debug("Classification completed",
		zap.String("model", p.model),
		zap.String("query", query),
		zap.Duration("duration", duration),
		zap.Int("products", len(products)),
		zap.Int("assigned", len(result.Assignments)),
		zap.Int("excluded", len(result.Excluded)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
