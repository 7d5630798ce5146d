package matching

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyLabel = errors.New("label must not be empty")

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching
type Repository interface {
	FindMatch(ctx context.Context, label string) (string, bool, error)
	FindMatches(ctx context.Context, labels []string) (map[string]string, error)
	SaveMatch(ctx context.Context, label, categoryLabel string) error
	// SaveMatches writes every pair or none of them.
	SaveMatches(ctx context.Context, matches map[string]string) error
}

// Service is the learned-match cache: transaction label text to category
// label. Keys are exact and case-sensitive after trimming.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NormalizeLabel is applied to every key before it touches the store.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(label)
}

// Lookup returns the learned category label for label, if any.
func (s *Service) Lookup(ctx context.Context, label string) (string, bool, error) {
	label = NormalizeLabel(label)
	if label == "" {
		return "", false, nil
	}

	return s.repo.FindMatch(ctx, label)
}

// LookupBatch resolves many labels in one round trip. Labels with no learned
// match are absent from the result.
func (s *Service) LookupBatch(ctx context.Context, labels []string) (map[string]string, error) {
	keys := normalizeAll(labels)
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	return s.repo.FindMatches(ctx, keys)
}

// Upsert records label -> categoryLabel, replacing any previous value.
func (s *Service) Upsert(ctx context.Context, label, categoryLabel string) error {
	label = NormalizeLabel(label)
	categoryLabel = strings.TrimSpace(categoryLabel)

	if label == "" || categoryLabel == "" {
		return ErrEmptyLabel
	}

	return s.repo.SaveMatch(ctx, label, categoryLabel)
}

// UpsertBatch records every pair atomically. Pairs with an empty key or value
// are dropped. When two keys collapse to the same trimmed label the
// lexically greater raw key wins so the outcome does not depend on map order.
func (s *Service) UpsertBatch(ctx context.Context, matches map[string]string) error {
	clean := Clean(matches)
	if len(clean) == 0 {
		return nil
	}

	return s.repo.SaveMatches(ctx, clean)
}

// Clean trims keys and values and drops empty pairs.
func Clean(matches map[string]string) map[string]string {
	clean := make(map[string]string, len(matches))
	winner := make(map[string]string, len(matches))

	for raw, category := range matches {
		label := NormalizeLabel(raw)
		category = strings.TrimSpace(category)

		if label == "" || category == "" {
			continue
		}

		if prev, ok := winner[label]; ok && prev > raw {
			continue
		}

		winner[label] = raw
		clean[label] = category
	}

	return clean
}

func normalizeAll(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	keys := make([]string, 0, len(labels))

	for _, l := range labels {
		l = NormalizeLabel(l)
		if l == "" {
			continue
		}

		if _, ok := seen[l]; ok {
			continue
		}

		seen[l] = struct{}{}
		keys = append(keys, l)
	}

	return keys
}
