package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mzaitsev/tastebot/internal/domain"
)

// Client fetches playlist tracks through a catalog gateway service that
// proxies the individual music catalogs behind one JSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a catalog gateway client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type tracksResponse struct {
	Tracks []domain.TrackRef `json:"tracks"`
}

// FetchTracks resolves a playlist locator to its track list. Locators that
// are not URLs are parsed as free-text track lists instead.
func (c *Client) FetchTracks(ctx context.Context, locator string) ([]domain.TrackRef, error) {
	service := IdentifyService(locator)
	if service == "unknown" {
		return ParseTracks(locator), nil
	}

	endpoint := fmt.Sprintf("%s/v1/%s/tracks?playlist=%s",
		c.baseURL, service, url.QueryEscape(locator))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, ErrTooLarge
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: catalog returned %d", ErrUnreachable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("catalog returned %d", resp.StatusCode)
	}

	var body tracksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	for i := range body.Tracks {
		if body.Tracks[i].Source == "" {
			body.Tracks[i].Source = service
		}
	}
	return body.Tracks, nil
}
