package chi

import "time"

// ErrorCode is a machine-readable error category.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest              ErrorCode = "bad_request"
	ErrorCodeUnauthorized            ErrorCode = "unauthorized"
	ErrorCodeValidationFailed        ErrorCode = "validation_failed"
	ErrorCodeAnalysisNotFound        ErrorCode = "analysis_not_found"
	ErrorCodeEmptyResult             ErrorCode = "empty_result"
	ErrorCodeStateConflict           ErrorCode = "state_conflict"
	ErrorCodeNothingToExport         ErrorCode = "nothing_to_export"
	ErrorCodeStructuralConflict      ErrorCode = "structural_conflict"
	ErrorCodeInvalidPath             ErrorCode = "invalid_path"
	ErrorCodeSearchUnavailable       ErrorCode = "search_unavailable"
	ErrorCodeContractViolation       ErrorCode = "contract_violation"
	ErrorCodeClassifierError         ErrorCode = "classifier_error"
	ErrorCodeClassifierQuotaExceeded ErrorCode = "classifier_quota_exceeded"
	ErrorCodeInternalError           ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// CreateAnalysisRequest is the body of POST /analyses.
type CreateAnalysisRequest struct {
	Query string `json:"query"`
}

// Assignment is one classified product.
type Assignment struct {
	SKU  string   `json:"sku"`
	Path []string `json:"path"`
}

// Analysis is the API view of an analysis.
type Analysis struct {
	ID           string       `json:"id"`
	Query        string       `json:"query"`
	Status       string       `json:"status"`
	ProductCount int          `json:"product_count"`
	Assignments  []Assignment `json:"assignments,omitempty"`
	Error        *string      `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// AnalysisList is the body of GET /analyses.
type AnalysisList struct {
	Items []Analysis `json:"items"`
}

// UsageResponse is the body of GET /usage.
type UsageResponse struct {
	Period        string       `json:"period"`
	Model         string       `json:"model,omitempty"`
	Tokens        int64        `json:"tokens"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Budget        BudgetStatus `json:"budget"`
}

// BudgetStatus is the classifier budget for the reported period.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
