package openai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	"github.com/kailas-cloud/stockmarks/internal/domain/analysis"
	"github.com/kailas-cloud/stockmarks/internal/domain/catalog"
	"github.com/kailas-cloud/stockmarks/internal/metrics"
)

// Defaults for the hosted chat model.
const (
	DefaultModel       = "gpt-4.1-mini"
	DefaultTemperature = 0.2
	DefaultTopP        = 0.1
)

//go:embed prompt.md
var systemPrompt string

// Classifier is a classification oracle using the OpenAI-compatible chat completions API.
type Classifier struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// Config holds the classification provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	TopP        float32
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewClassifier creates an OpenAI-compatible classification oracle.
func NewClassifier(cfg *Config) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		logger:      logger,
	}
}

// Model returns the configured chat model.
func (c *Classifier) Model() string { return c.model }

// Classify implements analysis.Classifier.
func (c *Classifier) Classify(
	ctx context.Context, query string, products []catalog.Hit,
) (analysis.Classification, error) {
	input, err := encodeInput(query, products)
	if err != nil {
		return analysis.Classification{}, fmt.Errorf("encode classifier input: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues(c.model, "error").Inc()
		metrics.ClassifierErrorsTotal.WithLabelValues(c.model, "api_error").Inc()
		return analysis.Classification{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.ClassifierRequestsTotal.WithLabelValues(c.model, "error").Inc()
		metrics.ClassifierErrorsTotal.WithLabelValues(c.model, "empty_response").Inc()
		return analysis.Classification{}, fmt.Errorf("empty completion: %w", domain.ErrClassifierError)
	}

	out, err := decodeOutput([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues(c.model, "error").Inc()
		metrics.ClassifierErrorsTotal.WithLabelValues(c.model, "malformed_response").Inc()
		return analysis.Classification{}, err
	}

	metrics.ClassifierRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.ClassifierRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.ClassifierTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.ClassifierTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
		metrics.ClassifierTokensTotal.WithLabelValues(c.model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	out.TotalTokens = resp.Usage.TotalTokens
	return out, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Classifier) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// encodeInput renders {"query": ..., "products": {sku: title}} keeping product order.
func encodeInput(query string, products []catalog.Hit) (string, error) {
	var buf bytes.Buffer
	q, err := json.Marshal(query)
	if err != nil {
		return "", err //nolint:wrapcheck // wrapped by caller
	}
	buf.WriteString(`{"query":`)
	buf.Write(q)
	buf.WriteString(`,"products":{`)
	for i, p := range products {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.SKU)
		if err != nil {
			return "", err //nolint:wrapcheck // wrapped by caller
		}
		v, err := json.Marshal(p.Title)
		if err != nil {
			return "", err //nolint:wrapcheck // wrapped by caller
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteString("}}")

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf.Bytes(), "", "  "); err != nil {
		return "", err //nolint:wrapcheck // wrapped by caller
	}
	return pretty.String(), nil
}

type rawOutput struct {
	Thinking *string         `json:"thinking"`
	Excluded *[]string       `json:"excluded"`
	Products json.RawMessage `json:"products"`
}

// decodeOutput parses {thinking, excluded, products}. Products keep the oracle's key order.
func decodeOutput(data []byte) (analysis.Classification, error) {
	var raw rawOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return analysis.Classification{}, fmt.Errorf("%w: classifier output: %w", domain.ErrContractViolation, err)
	}
	if raw.Thinking == nil || raw.Excluded == nil || len(raw.Products) == 0 {
		return analysis.Classification{}, fmt.Errorf(
			"%w: classifier output must contain thinking, excluded and products", domain.ErrContractViolation)
	}

	assignments, err := decodeProducts(raw.Products)
	if err != nil {
		return analysis.Classification{}, fmt.Errorf("%w: classifier products: %w", domain.ErrContractViolation, err)
	}

	return analysis.Classification{
		Thinking:    *raw.Thinking,
		Excluded:    *raw.Excluded,
		Assignments: assignments,
	}, nil
}

// decodeProducts walks the products object token by token so key order survives.
func decodeProducts(data json.RawMessage) ([]analysis.Assignment, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected an object")
	}

	var out []analysis.Assignment
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by caller
		}
		sku, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var path []string
		if err := dec.Decode(&path); err != nil {
			return nil, fmt.Errorf("sku %q: %w", sku, err)
		}
		out = append(out, analysis.Assignment{SKU: sku, Path: path})
	}

	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	return out, nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrClassifierError for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrClassifierError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("classifier API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("classifier API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("classifier API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("classifier request aborted: %w: %w", err, wrap)
	}

	return fmt.Errorf("classifier request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
