package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/config"
	"github.com/kailas-cloud/stockmarks/internal/db"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/metrics"
	budgetrepo "github.com/kailas-cloud/stockmarks/internal/repository/budget"
	"github.com/kailas-cloud/stockmarks/internal/repository/pagecache"
	"github.com/kailas-cloud/stockmarks/internal/transport/algolia"
	openaiClassifier "github.com/kailas-cloud/stockmarks/internal/transport/openai"
	"github.com/kailas-cloud/stockmarks/internal/usecase/aggregate"
	"github.com/kailas-cloud/stockmarks/internal/usecase/classify"
	"github.com/kailas-cloud/stockmarks/internal/version"
)

func envName() string {
	if flagEnv != "" {
		return flagEnv
	}
	return config.GetEnv()
}

// buildAggregator assembles the search chain: Algolia -> page cache (optional) -> aggregator.
// store may be nil, which disables the page cache.
func buildAggregator(cfg config.Config, store db.Store, logger *zap.Logger) (*aggregate.Service, error) {
	userAgent := cfg.Search.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	client, err := algolia.NewClient(algolia.Config{
		Endpoint:     cfg.Search.Endpoint,
		AppID:        cfg.Search.AppID,
		APIKey:       cfg.Search.APIKey,
		IndexName:    cfg.Search.IndexName,
		Filters:      filtersOrDefault(cfg.Search.Filters),
		FacetFilters: cfg.Search.FacetFilters,
		Referrer:     cfg.Search.Referrer,
		UserAgent:    userAgent,
		Timeout:      time.Duration(cfg.Search.TimeoutSec) * time.Second,
		Logger:       logger,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // config error, reported as is
	}

	var pages aggregate.PageFetcher = client
	if store != nil && cfg.Search.CacheTTLSec > 0 {
		pages = pagecache.New(client, store, cfg.Storage.KeyPrefix,
			time.Duration(cfg.Search.CacheTTLSec)*time.Second, metrics.PageCacheTotal, logger)
	}

	return aggregate.New(pages).
		WithPageSize(cfg.Search.PageSize).
		WithMaxConcurrency(cfg.Search.MaxConcurrency), nil
}

func filtersOrDefault(f string) string {
	if f == "" {
		return algolia.DefaultFilters
	}
	return f
}

// classifierChain is the assembled oracle plus the pieces other services read.
type classifierChain struct {
	classifier domanalysis.Classifier
	provider   *openaiClassifier.Classifier
	budget     *classify.BudgetTracker // nil when no limit is configured
}

// buildClassifier assembles the oracle chain: OpenAI -> Instrumented (budget + logging).
// store may be nil, which keeps budget counters in memory only.
func buildClassifier(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) classifierChain {
	provider := openaiClassifier.NewClassifier(&openaiClassifier.Config{
		APIKey:      cfg.Classifier.APIKey,
		BaseURL:     cfg.Classifier.BaseURL,
		Model:       cfg.Classifier.Model,
		Temperature: *cfg.Classifier.Temperature,
		TopP:        *cfg.Classifier.TopP,
		Timeout:     time.Duration(cfg.Classifier.TimeoutSec) * time.Second,
		Logger:      logger,
	})

	var budget *classify.BudgetTracker
	budgetCfg := cfg.Classifier.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := classify.BudgetActionWarn
		if budgetCfg.Action == string(classify.BudgetActionReject) {
			action = classify.BudgetActionReject
		}
		budget = classify.NewBudgetTracker(
			cfg.Storage.KeyPrefix, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		if store != nil {
			budget.WithStore(ctx, budgetrepo.New(store, 0, 0))
		}
	}

	// A typed nil *BudgetTracker inside the interface would not compare equal to nil.
	var checker classify.BudgetChecker
	if budget != nil {
		checker = budget
	}

	return classifierChain{
		classifier: classify.NewInstrumentedClassifier(provider, provider.Model(), checker, logger),
		provider:   provider,
		budget:     budget,
	}
}
