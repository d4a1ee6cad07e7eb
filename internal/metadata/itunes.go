package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SearchTimeout matches spec.md §5's default metadata search timeout.
const SearchTimeout = 10 * time.Second

const searchEndpoint = "https://itunes.apple.com/search"

// resultLimit mirrors utils/metadata.py's search_itunes default limit.
const resultLimit = 5

type itunesSearchResponse struct {
	ResultCount int         `json:"resultCount"`
	Results     []Candidate `json:"results"`
}

// ITunesClient queries the iTunes Search API, ported from
// utils/metadata.py's search_itunes (same term/entity/limit params).
type ITunesClient struct {
	httpClient *http.Client
}

// NewITunesClient builds a client with the spec's default timeout.
func NewITunesClient() *ITunesClient {
	return &ITunesClient{httpClient: &http.Client{Timeout: SearchTimeout}}
}

// Search queries the iTunes Search API for `<title> <artist>`, entity=song.
func (c *ITunesClient) Search(ctx context.Context, title, artist string) ([]Candidate, error) {
	term := title
	if artist != "" {
		term = title + " " + artist
	}

	q := url.Values{}
	q.Set("term", term)
	q.Set("entity", "song")
	q.Set("limit", fmt.Sprintf("%d", resultLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build itunes request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("itunes search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes search returned status %d", resp.StatusCode)
	}

	var parsed itunesSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode itunes response: %w", err)
	}

	return parsed.Results, nil
}
