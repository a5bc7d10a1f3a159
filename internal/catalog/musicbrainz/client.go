package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/config"
	"github.com/requestarr/requestarr/internal/retry"
)

var (
	ErrNotConfigured = errors.New("MusicBrainz base URL is not configured")
	ErrAPIError      = errors.New("MusicBrainz API error")
	ErrRateLimited   = errors.New("MusicBrainz API rate limited")
)

// SearchArtistsResponse is the MusicBrainz /artist search response.
type SearchArtistsResponse struct {
	Count   int          `json:"count"`
	Offset  int          `json:"offset"`
	Artists []ArtistItem `json:"artists"`
}

// ArtistItem is a single artist from a MusicBrainz search response.
type ArtistItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Type           string `json:"type"`
	Score          int    `json:"score"`
	Disambiguation string `json:"disambiguation"`
	Country        string `json:"country"`
}

// Artist is a normalized artist search result. Score is the service's own
// relevance score in the 0-100 range.
type Artist struct {
	MBID           string
	Name           string
	Type           string
	Score          int
	Disambiguation string
	Country        string
}

// Client is a MusicBrainz web service client. MusicBrainz requires no API
// key but rejects requests without a meaningful User-Agent.
type Client struct {
	httpClient *http.Client
	config     config.MusicBrainzConfig
	retries    retry.Policy
	logger     zerolog.Logger
}

// NewClient creates a new MusicBrainz client.
func NewClient(cfg config.MusicBrainzConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:  cfg,
		retries: retry.DefaultPolicy(),
		logger:  logger.With().Str("component", "musicbrainz").Logger(),
	}
}

// Name returns the catalog name.
func (c *Client) Name() string {
	return "musicbrainz"
}

// IsConfigured returns true if a base URL is set.
func (c *Client) IsConfigured() bool {
	return c.config.BaseURL != ""
}

// Test verifies connectivity by running a minimal artist search.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	_, err := c.SearchArtists(ctx, "test", 1)
	return err
}

// SearchArtists searches MusicBrainz for artists matching the query.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = 10
	}

	endpoint := fmt.Sprintf("%s/artist", c.config.BaseURL)
	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	params.Set("limit", fmt.Sprintf("%d", limit))

	var response SearchArtistsResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Artist, len(response.Artists))
	for i, item := range response.Artists {
		results[i] = Artist{
			MBID:           item.ID,
			Name:           item.Name,
			Type:           item.Type,
			Score:          item.Score,
			Disambiguation: item.Disambiguation,
			Country:        item.Country,
		}
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Artist search completed")

	return results, nil
}

// doRequest performs an HTTP GET request and decodes the JSON response.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	var resp *http.Response
	err = retry.Do(ctx, "musicbrainz request", c.retries, func() error {
		resp, err = c.httpClient.Do(req)
		return err
	}, c.logger)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("MusicBrainz API error")
		if resp.StatusCode == http.StatusServiceUnavailable {
			return ErrRateLimited
		}
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
