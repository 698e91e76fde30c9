package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	domusage "github.com/kailas-cloud/stockmarks/internal/domain/usage"
	logpkg "github.com/kailas-cloud/stockmarks/internal/logger"
	exportuc "github.com/kailas-cloud/stockmarks/internal/usecase/export"
	healthuc "github.com/kailas-cloud/stockmarks/internal/usecase/health"
)

const maxRequestBody = 64 << 10

// AnalysisService runs and tracks analyses.
type AnalysisService interface {
	Analyze(ctx context.Context, query string) (domanalysis.Analysis, error)
	Submit(ctx context.Context, query string) (domanalysis.Analysis, error)
	Retry(ctx context.Context, id string) (domanalysis.Analysis, error)
	Get(ctx context.Context, id string) (domanalysis.Analysis, error)
	List(ctx context.Context) ([]domanalysis.Analysis, error)
	Delete(ctx context.Context, id string) error
}

// Exporter renders the bookmark file.
type Exporter interface {
	Export(ctx context.Context) (exportuc.Document, error)
}

// UsageReporter reports classifier usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the HTTP API.
type Server struct {
	analyses      AnalysisService
	exporter      Exporter
	usage         UsageReporter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	analyses AnalysisService,
	exporter Exporter,
	usage UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		analyses: analyses,
		exporter: exporter,
		usage:    usage,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		structuralConflictHandler,
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeAnalysisNotFound),
		sentinelHandler(domain.ErrEmptyResult, http.StatusNotFound, ErrorCodeEmptyResult),
		sentinelHandler(domain.ErrStateConflict, http.StatusConflict, ErrorCodeStateConflict),
		sentinelHandler(domain.ErrNothingToExport, http.StatusConflict, ErrorCodeNothingToExport),
		sentinelHandler(domain.ErrInvalidPath, http.StatusUnprocessableEntity, ErrorCodeInvalidPath),
		sentinelHandler(domain.ErrNetwork, http.StatusBadGateway, ErrorCodeSearchUnavailable),
		sentinelHandler(domain.ErrContractViolation, http.StatusBadGateway, ErrorCodeContractViolation),
		sentinelHandler(domain.ErrClassifierQuotaExceeded,
			http.StatusPaymentRequired, ErrorCodeClassifierQuotaExceeded),
		sentinelHandler(domain.ErrClassifierError, http.StatusBadGateway, ErrorCodeClassifierError),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyses", s.CreateAnalysis)
		r.Get("/analyses", s.ListAnalyses)
		r.Get("/analyses/{id}", s.GetAnalysis)
		r.Delete("/analyses/{id}", s.DeleteAnalysis)
		r.Post("/analyses/{id}/retry", s.RetryAnalysis)
		r.Get("/bookmarks", s.ExportBookmarks)
		r.Get("/usage", s.GetUsage)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// CreateAnalysis handles POST /analyses. With ?wait=true the analysis runs inline.
func (s *Server) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req CreateAnalysisRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	wait, err := parseBool(r.URL.Query().Get("wait"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "wait must be a boolean")
		return
	}

	if !wait {
		a, err := s.analyses.Submit(r.Context(), req.Query)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		w.Header().Set("Location", "/api/v1/analyses/"+a.ID())
		writeJSON(w, http.StatusAccepted, analysisToAPI(a))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	a, err := s.analyses.Analyze(ctx, req.Query)
	setClassifierHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/analyses/"+a.ID())
	writeJSON(w, http.StatusCreated, analysisToAPI(a))
}

// ListAnalyses handles GET /analyses.
func (s *Server) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	list, err := s.analyses.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]Analysis, len(list))
	for i, a := range list {
		items[i] = analysisToAPI(a)
	}
	writeJSON(w, http.StatusOK, AnalysisList{Items: items})
}

// GetAnalysis handles GET /analyses/{id}.
func (s *Server) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.analyses.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysisToAPI(a))
}

// DeleteAnalysis handles DELETE /analyses/{id}.
func (s *Server) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.analyses.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryAnalysis handles POST /analyses/{id}/retry.
func (s *Server) RetryAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.analyses.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, analysisToAPI(a))
}

// ExportBookmarks handles GET /bookmarks.
func (s *Server) ExportBookmarks(w http.ResponseWriter, r *http.Request) {
	doc, err := s.exporter.Export(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc.Body)
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	resp := UsageResponse{
		Period: string(report.Period()),
		Model:  report.Model(),
		Tokens: report.Tokens(),
		Budget: BudgetStatus{
			TokensLimit:     report.Budget().Limit(),
			TokensRemaining: report.Budget().Remaining(),
			IsExhausted:     report.Budget().Exhausted(),
		},
	}

	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}

	if report.Budget().ResetsAt() > 0 {
		resetsAt := time.UnixMilli(report.Budget().ResetsAt()).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setClassifierHeaders(w http.ResponseWriter, usage *domain.ClassifierUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Classifier-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrNotFound,
		domain.ErrEmptyResult,
		domain.ErrStateConflict,
		domain.ErrNothingToExport,
		domain.ErrInvalidPath,
		domain.ErrStructuralConflict,
		domain.ErrNetwork,
		domain.ErrContractViolation,
		domain.ErrClassifierQuotaExceeded,
		domain.ErrClassifierError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// structuralConflictHandler reports the offending SKU and path alongside the conflict.
func structuralConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrStructuralConflict) {
		return false
	}
	var sce *domain.StructuralConflictError
	if errors.As(err, &sce) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":    ErrorCodeStructuralConflict,
			"message": msg,
			"sku":     sce.SKU,
			"path":    sce.Path,
			"segment": sce.Segment,
		})
		return true
	}
	writeError(w, http.StatusConflict, ErrorCodeStructuralConflict, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func analysisToAPI(a domanalysis.Analysis) Analysis {
	resp := Analysis{
		ID:           a.ID(),
		Query:        a.Query(),
		Status:       string(a.Status()),
		ProductCount: a.ProductCount(),
		CreatedAt:    time.UnixMilli(a.CreatedAt()).UTC(),
	}
	if len(a.Assignments()) > 0 {
		resp.Assignments = make([]Assignment, len(a.Assignments()))
		for i, as := range a.Assignments() {
			resp.Assignments[i] = Assignment{SKU: as.SKU, Path: as.Path}
		}
	}
	if a.Status() == domanalysis.StatusFailed {
		msg := a.Failure()
		resp.Error = &msg
	}
	return resp
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("parse bool: %w", err)
	}
	return b, nil
}
