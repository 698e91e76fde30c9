package domain

import "context"

type classifierUsageKey struct{}

// ClassifierUsage collects classifier token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the service;
// the service writes after classification; the handler reads it for response headers.
type ClassifierUsage struct {
	TotalTokens int
	Used        bool
}

// NewContextWithUsage returns a context with a classifier usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *ClassifierUsage) {
	u := &ClassifierUsage{}
	return context.WithValue(ctx, classifierUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *ClassifierUsage {
	u, _ := ctx.Value(classifierUsageKey{}).(*ClassifierUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *ClassifierUsage) AddTokens(n int) {
	if u != nil {
		u.TotalTokens += n
		u.Used = true
	}
}
