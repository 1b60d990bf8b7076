package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks, before saving, the values of
// every state or entry-meta key matching one of the patterns.
// Redaction is one-way: loaded checkpoints carry the mask.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, id string, cp *domain.Checkpoint) error {
	// Work on a copy: cp may still be referenced by the live workspace.
	cloned := cp.Clone()

	maskMap(cloned.State, m.patterns)
	for i := range cloned.History {
		maskMap(cloned.History[i].Meta, m.patterns)
	}

	return m.next.Save(ctx, id, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, id string) (*domain.Checkpoint, error) {
	return m.next.Load(ctx, id)
}

func (m *redactMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = Mask
			continue
		}
		maskValue(v, patterns)
	}
}

func maskValue(v any, patterns []*regexp.Regexp) {
	if m, ok := domain.AsMap(v); ok {
		maskMap(m, patterns)
		return
	}
	if items, ok := v.([]any); ok {
		for _, item := range items {
			maskValue(item, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
