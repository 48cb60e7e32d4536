package domain

import "time"

// CachedImage is an image that has been downloaded into the local content cache.
// ID is the remote API id for synced items, or the cache hash of the URL for
// items added by hand.
type CachedImage struct {
	ID         string    `json:"id"`
	SourceURL  string    `json:"sourceUrl"`
	LocalPath  string    `json:"localPath"`
	Tags       []string  `json:"tags"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Resolution string    `json:"resolution,omitempty"`
	Category   string    `json:"category,omitempty"`
	Purity     string    `json:"purity,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
}

// SearchOptions parameterizes one remote search. It is built fresh from the
// settings snapshot for every sync and treated as immutable.
type SearchOptions struct {
	Query         string
	Categories    string
	Purity        string
	MinResolution string
	Ratios        []string
	Sorting       string
	Limit         int
	APIKey        string
}
