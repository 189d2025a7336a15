// Package source checks synonym sources for changes and retrieves their rules.
package source

import (
	"context"

	"github.com/at-ishikawa/dynsyn/internal/synonym"
)

// Source is a location synonym rules are loaded from.
type Source interface {
	Location() string
	// CheckFreshness never mutates state; the returned decision carries what the source reported.
	CheckFreshness(ctx context.Context, state State) ReloadDecision
	// Fetch returns an empty rule set together with the error when retrieval fails.
	Fetch(ctx context.Context, state State) (FetchResult, error)
}

// FetchResult is the content retrieved by Fetch.
type FetchResult struct {
	Rules     synonym.RuleSet
	Charset   string
	Offset    int64
	HasOffset bool
}
