package source

import (
	"context"
	"errors"
	"fmt"

	"sourcefinder/models"
)

// ErrUnavailable marks network/auth/rate-limit failures of a single source.
// It degrades that source only and is never fatal to the request.
var ErrUnavailable = errors.New("source unavailable")

// ErrTimeout marks a source that exceeded its time budget.
var ErrTimeout = errors.New("source timeout")

// RawItem is one candidate result as a source returns it, before
// normalization. Fields the underlying source cannot supply stay empty,
// never fabricated.
type RawItem struct {
	Title   string
	Link    string
	Snippet string
	Images  []string
	Logo    string
}

// Adapter is the retrieval capability shared by every source kind.
// Zero results is a valid nil slice, not an error.
type Adapter interface {
	Kind() models.SourceKind
	Fetch(ctx context.Context, query string, limit int) ([]RawItem, error)
}

// Registry maps source kinds onto their configured adapters. Kinds with a
// missing credential are simply absent.
type Registry map[models.SourceKind]Adapter

// Select returns the adapters for the requested kinds plus the kinds that
// have no configured adapter (reported as degraded, not as an error).
func (r Registry) Select(kinds []models.SourceKind) ([]Adapter, []models.SourceKind) {
	var (
		adapters []Adapter
		missing  []models.SourceKind
	)
	for _, kind := range kinds {
		if a, ok := r[kind]; ok {
			adapters = append(adapters, a)
		} else {
			missing = append(missing, kind)
		}
	}
	return adapters, missing
}

// WrapStatus converts a non-200 API status into an ErrUnavailable.
func WrapStatus(kind models.SourceKind, status int) error {
	return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, kind, status)
}
