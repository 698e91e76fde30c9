package analysis

import (
	"context"

	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
)

// Repository defines the storage contract for finished analyses.
type Repository interface {
	Save(ctx context.Context, a domanalysis.Analysis) error
	Get(ctx context.Context, id string) (domanalysis.Analysis, error)
	List(ctx context.Context) ([]domanalysis.Analysis, error)
	Delete(ctx context.Context, id string) error
}

// Aggregator collects every product matching a query.
type Aggregator interface {
	Aggregate(ctx context.Context, query string) ([]catalog.Hit, error)
}
