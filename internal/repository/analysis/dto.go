package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"

	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/domain/grouping"
)

// Hash field names.
const (
	fieldID           = "id"
	fieldQuery        = "query"
	fieldStatus       = "status"
	fieldCreatedAt    = "created_at"
	fieldProductCount = "product_count"
	fieldAssignments  = "assignments"
)

type assignmentDTO struct {
	SKU  string   `json:"sku"`
	Path []string `json:"path"`
}

// buildHashFields converts a domain Analysis into a flat map[string]string for HSET.
func buildHashFields(a domanalysis.Analysis) (map[string]string, error) {
	dtos := make([]assignmentDTO, len(a.Assignments()))
	for i, as := range a.Assignments() {
		dtos[i] = assignmentDTO{SKU: as.SKU, Path: as.Path}
	}
	data, err := json.Marshal(dtos)
	if err != nil {
		return nil, fmt.Errorf("marshal assignments: %w", err)
	}

	return map[string]string{
		fieldID:           a.ID(),
		fieldQuery:        a.Query(),
		fieldStatus:       string(a.Status()),
		fieldCreatedAt:    strconv.FormatInt(a.CreatedAt(), 10),
		fieldProductCount: strconv.Itoa(a.ProductCount()),
		fieldAssignments:  string(data),
	}, nil
}

// parseHashFields converts a flat hash map back into a domain Analysis.
func parseHashFields(m map[string]string) (domanalysis.Analysis, error) {
	createdAt, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64)
	if err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("parse %s: %w", fieldCreatedAt, err)
	}

	var dtos []assignmentDTO
	if raw := m[fieldAssignments]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
			return domanalysis.Analysis{}, fmt.Errorf("parse %s: %w", fieldAssignments, err)
		}
	}
	assignments := make([]domanalysis.Assignment, len(dtos))
	for i, d := range dtos {
		assignments[i] = domanalysis.Assignment{SKU: d.SKU, Path: grouping.Path(d.Path)}
	}

	return domanalysis.Reconstruct(
		m[fieldID],
		m[fieldQuery],
		domanalysis.Status(m[fieldStatus]),
		assignments,
		"",
		createdAt,
	), nil
}
