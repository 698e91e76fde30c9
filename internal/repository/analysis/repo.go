// Package analysis stores completed analyses as hashes with a newest-first ID list.
package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
)

// store is the consumer interface for analyses (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	PutIndexed(ctx context.Context, key string, fields map[string]string, index, id string) error
	DelIndexed(ctx context.Context, key, index, id string) (bool, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Repo implements usecase/analysis.Repository.
type Repo struct {
	store     store
	keyPrefix string
	logger    *zap.Logger
}

// New creates an analysis repository. keyPrefix namespaces every key (e.g. "stockmarks:").
func New(s store, keyPrefix string, logger *zap.Logger) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, logger: logger}
}

func (r *Repo) recordKey(id string) string { return r.keyPrefix + "analysis:" + id }

func (r *Repo) listKey() string { return r.keyPrefix + "analyses" }

// Save replaces the stored analysis and moves its ID to the head of the list.
func (r *Repo) Save(ctx context.Context, a domanalysis.Analysis) error {
	fields, err := buildHashFields(a)
	if err != nil {
		return err
	}

	if err := r.store.PutIndexed(ctx, r.recordKey(a.ID()), fields, r.listKey(), a.ID()); err != nil {
		return fmt.Errorf("save analysis %s: %w", a.ID(), err)
	}
	return nil
}

// Get returns an analysis by ID.
func (r *Repo) Get(ctx context.Context, id string) (domanalysis.Analysis, error) {
	key := r.recordKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domanalysis.Analysis{}, fmt.Errorf("analysis %q: %w", id, domain.ErrNotFound)
	}
	a, err := parseHashFields(m)
	if err != nil {
		return domanalysis.Analysis{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return a, nil
}

// List returns all stored analyses, newest first. Dangling list entries are skipped.
func (r *Repo) List(ctx context.Context) ([]domanalysis.Analysis, error) {
	ids, err := r.store.LRange(ctx, r.listKey(), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", r.listKey(), err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	records, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall analyses: %w", err)
	}

	out := make([]domanalysis.Analysis, 0, len(records))
	for i, m := range records {
		if len(m) == 0 {
			r.logger.Warn("Analysis listed but missing", zap.String("id", ids[i]))
			continue
		}
		a, err := parseHashFields(m)
		if err != nil {
			r.logger.Warn("Skipping undecodable analysis", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Delete removes an analysis and its list entry; the list entry is dropped even when the record is gone.
func (r *Repo) Delete(ctx context.Context, id string) error {
	existed, err := r.store.DelIndexed(ctx, r.recordKey(id), r.listKey(), id)
	if err != nil {
		return fmt.Errorf("delete analysis %s: %w", id, err)
	}
	if !existed {
		return fmt.Errorf("analysis %q: %w", id, domain.ErrNotFound)
	}
	return nil
}
