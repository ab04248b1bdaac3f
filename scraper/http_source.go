package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPSource reads the newest listings from the extractor service, which
// handles the actual page fetching and HTML parsing and exposes the result
// as a JSON array of RawDeal.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source reading from the extractor endpoint
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{},
	}
}

// FetchNewest implements the Scraper interface
func (s *HTTPSource) FetchNewest(ctx context.Context) ([]RawDeal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build extractor request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor returned HTTP %d", resp.StatusCode)
	}

	var deals []RawDeal
	if err := json.NewDecoder(resp.Body).Decode(&deals); err != nil {
		return nil, fmt.Errorf("decode extractor response: %w", err)
	}
	return deals, nil
}
