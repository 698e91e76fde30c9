package aggregate

import (
	"context"

	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
)

// PageFetcher retrieves one page of search results.
type PageFetcher interface {
	FetchPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error)
}
