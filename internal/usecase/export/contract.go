package export

import (
	"context"

	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
)

// AnalysisLister reads the stored analyses.
type AnalysisLister interface {
	List(ctx context.Context) ([]domanalysis.Analysis, error)
}
