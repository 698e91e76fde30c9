package analysis

import (
	"context"

	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
)

// Classifier assigns an attribute path to each product of a query.
// Products are passed in the order they should be presented to the oracle.
type Classifier interface {
	Classify(ctx context.Context, query string, products []catalog.Hit) (Classification, error)
}
