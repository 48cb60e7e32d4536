package wallhaven

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/source"
)

const (
	SourceID = "wallhaven"

	DefaultBaseURL = "https://wallhaven.cc/api/v1"
	MaxLimit       = 100
	MaxPages       = 10
	userAgent      = "wallfeed/1.0"
)

var (
	// ErrMalformedResponse is returned when the body is not valid JSON or lacks "data".
	ErrMalformedResponse = errors.New("malformed search response")

	rawMaskPattern = regexp.MustCompile(`^[01]{3}$`)

	purityMasks = map[string]string{
		"sfw":     "100",
		"sketchy": "110",
		"nsfw":    "111",
	}
)

// Config configures the wallhaven adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter implements source.Searcher against the wallhaven search API.
type Adapter struct {
	client  *resty.Client
	baseURL string
}

// NewAdapter creates a new wallhaven adapter.
func NewAdapter(cfg *Config) *Adapter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(timeout)

	return &Adapter{
		client:  client,
		baseURL: baseURL,
	}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

type searchResponse struct {
	Data *[]json.RawMessage `json:"data"`
	Meta struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	} `json:"meta"`
}

type searchItem struct {
	ID         string          `json:"id"`
	Path       string          `json:"path"`
	Resolution string          `json:"resolution"`
	Category   string          `json:"category"`
	Purity     string          `json:"purity"`
	DimensionX *int            `json:"dimension_x"`
	DimensionY *int            `json:"dimension_y"`
	Tags       json.RawMessage `json:"tags"`
}

type searchTag struct {
	Name string `json:"name"`
}

// Search pages through results until the limit is met, the last page is
// reached, or MaxPages pages have been fetched.
func (a *Adapter) Search(ctx context.Context, opts domain.SearchOptions) ([]source.Candidate, error) {
	limit := ClampLimit(opts.Limit)
	candidates := make([]source.Candidate, 0, limit)

	for page := 1; page <= MaxPages && len(candidates) < limit; page++ {
		resp, err := a.fetchPage(ctx, opts, page)
		if err != nil {
			return nil, err
		}

		for _, raw := range *resp.Data {
			if len(candidates) >= limit {
				break
			}
			if c, ok := normalizeItem(raw); ok {
				candidates = append(candidates, c)
			}
		}

		if resp.Meta.CurrentPage >= resp.Meta.LastPage {
			break
		}
	}

	return candidates, nil
}

func (a *Adapter) fetchPage(ctx context.Context, opts domain.SearchOptions, page int) (*searchResponse, error) {
	httpResp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(buildQuery(opts, page)).
		Get(a.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return nil, fmt.Errorf("search API error: status %d", httpResp.StatusCode())
	}

	var resp searchResponse
	if err := json.Unmarshal(httpResp.Body(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	return &resp, nil
}

func buildQuery(opts domain.SearchOptions, page int) map[string]string {
	params := map[string]string{
		"page": strconv.Itoa(page),
	}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			params[key] = value
		}
	}
	set("q", opts.Query)
	set("categories", opts.Categories)
	set("purity", PurityMask(opts.Purity))
	set("sorting", opts.Sorting)
	set("atleast", opts.MinResolution)
	set("ratios", strings.Join(opts.Ratios, ","))
	set("apikey", opts.APIKey)
	return params
}

// ClampLimit bounds a requested limit to [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// PurityMask converts a purity name to the API bitmask. Raw masks pass through.
// Unknown values return "".
func PurityMask(purity string) string {
	p := strings.ToLower(strings.TrimSpace(purity))
	if mask, ok := purityMasks[p]; ok {
		return mask
	}
	if rawMaskPattern.MatchString(p) {
		return p
	}
	return ""
}

// normalizeItem validates a single result. Items without an id, without an
// http(s) image URL, or with a non-positive dimension are rejected.
func normalizeItem(raw json.RawMessage) (source.Candidate, bool) {
	var item searchItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return source.Candidate{}, false
	}
	if strings.TrimSpace(item.ID) == "" {
		return source.Candidate{}, false
	}
	if !isHTTPURL(item.Path) {
		return source.Candidate{}, false
	}
	if (item.DimensionX != nil && *item.DimensionX <= 0) || (item.DimensionY != nil && *item.DimensionY <= 0) {
		return source.Candidate{}, false
	}

	c := source.Candidate{
		ID:         item.ID,
		URL:        item.Path,
		Resolution: item.Resolution,
		Category:   item.Category,
		Purity:     item.Purity,
		Tags:       parseTags(item.Tags),
	}
	if item.DimensionX != nil {
		c.Width = *item.DimensionX
	}
	if item.DimensionY != nil {
		c.Height = *item.DimensionY
	}
	if c.Resolution == "" && c.Width > 0 && c.Height > 0 {
		c.Resolution = fmt.Sprintf("%dx%d", c.Width, c.Height)
	}
	return c, true
}

// parseTags accepts tag objects or plain strings and ignores anything else.
func parseTags(raw json.RawMessage) []string {
	tags := []string{}
	if len(raw) == 0 {
		return tags
	}

	var objects []searchTag
	if err := json.Unmarshal(raw, &objects); err == nil {
		for _, t := range objects {
			if t.Name != "" {
				tags = append(tags, t.Name)
			}
		}
		return tags
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		for _, n := range names {
			if n != "" {
				tags = append(tags, n)
			}
		}
	}
	return tags
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
