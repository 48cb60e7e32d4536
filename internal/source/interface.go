package source

import (
	"context"

	"github.com/timmy/wallfeed/internal/domain"
)

// Candidate is a normalized image returned by a remote search.
type Candidate struct {
	ID         string // Unique ID within the source
	URL        string // Full-size image URL
	Resolution string // e.g. "1920x1080"
	Category   string
	Purity     string
	Tags       []string
	Width      int // 0 when unknown
	Height     int // 0 when unknown
}

// Searcher defines the interface for remote image search backends.
type Searcher interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// Search runs a query and returns at most opts.Limit validated candidates
	// in result order.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - opts: search parameters.
	// Returns:
	//   - []Candidate: validated candidates.
	//   - error: non-nil on transport failure, non-2xx status, or malformed body.
	Search(ctx context.Context, opts domain.SearchOptions) ([]Candidate, error)
}
