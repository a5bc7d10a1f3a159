package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/config"
	"github.com/requestarr/requestarr/internal/retry"
)

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrNotFound      = errors.New("TMDB resource not found")
	ErrAPIError      = errors.New("TMDB API error")
	ErrRateLimited   = errors.New("TMDB API rate limited")
)

// Client is a TMDB API client.
type Client struct {
	httpClient *http.Client
	config     config.TMDBConfig
	retries    retry.Policy
	logger     zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg config.TMDBConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:  cfg,
		retries: retry.DefaultPolicy(),
		logger:  logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the catalog name.
func (c *Client) Name() string {
	return "tmdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// Test verifies connectivity to the TMDB API by making a configuration request.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/configuration", c.config.BaseURL)
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)

	var result struct {
		Images struct {
			BaseURL string `json:"base_url"`
		} `json:"images"`
	}

	return c.doRequest(ctx, endpoint, params, &result)
}

// SearchMovies searches TMDB for movies matching the query.
func (c *Client) SearchMovies(ctx context.Context, query string) ([]Movie, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/search/movie", c.config.BaseURL)
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	params.Set("query", query)
	params.Set("include_adult", "false")

	var response SearchMoviesResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Movie, len(response.Results))
	for i, movie := range response.Results {
		results[i] = c.toMovie(movie)
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Movie search completed")

	return results, nil
}

// SearchSeries searches TMDB for TV series matching the query.
func (c *Client) SearchSeries(ctx context.Context, query string) ([]Series, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/search/tv", c.config.BaseURL)
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	params.Set("query", query)

	var response SearchTVResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return nil, err
	}

	results := make([]Series, len(response.Results))
	for i, series := range response.Results {
		results[i] = c.toSeries(series)
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("TV search completed")

	return results, nil
}

// GetTVDBID resolves the TVDB identifier for a series by its TMDB ID.
// Returns 0 when TMDB has no TVDB mapping for the series.
func (c *Client) GetTVDBID(ctx context.Context, tmdbID int) (int, error) {
	if !c.IsConfigured() {
		return 0, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/tv/%d/external_ids", c.config.BaseURL, tmdbID)
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)

	var response ExternalIDsResponse
	if err := c.doRequest(ctx, endpoint, params, &response); err != nil {
		return 0, err
	}

	c.logger.Debug().
		Int("tmdbID", tmdbID).
		Int("tvdbID", response.TvdbID).
		Msg("Resolved external IDs")

	return response.TvdbID, nil
}

// ImageURL returns a full image URL for a given path and size.
// Size options: "w92", "w154", "w185", "w342", "w500", "w780", "original"
func (c *Client) ImageURL(path string, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.config.ImageBaseURL, size, path)
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

	var resp *http.Response
	err = retry.Do(ctx, "tmdb request", c.retries, func() error {
		resp, err = c.httpClient.Do(req)
		return err
	}, c.logger)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API key", ErrAPIError)
		case http.StatusTooManyRequests:
			return ErrRateLimited
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// toMovie converts a TMDB movie search result to a normalized Movie.
func (c *Client) toMovie(movie MovieResult) Movie {
	year := 0
	if len(movie.ReleaseDate) >= 4 {
		year, _ = strconv.Atoi(movie.ReleaseDate[:4])
	}

	result := Movie{
		TMDBID:      movie.ID,
		Title:       movie.Title,
		Year:        year,
		Overview:    movie.Overview,
		ReleaseDate: movie.ReleaseDate,
		Popularity:  movie.Popularity,
	}

	if movie.PosterPath != nil {
		result.PosterURL = c.ImageURL(*movie.PosterPath, "w500")
	}

	return result
}

// toSeries converts a TMDB TV search result to a normalized Series.
func (c *Client) toSeries(tv TVResult) Series {
	year := 0
	if len(tv.FirstAirDate) >= 4 {
		year, _ = strconv.Atoi(tv.FirstAirDate[:4])
	}

	result := Series{
		TMDBID:       tv.ID,
		Title:        tv.Name,
		Year:         year,
		Overview:     tv.Overview,
		FirstAirDate: tv.FirstAirDate,
		Popularity:   tv.Popularity,
	}

	if tv.PosterPath != nil {
		result.PosterURL = c.ImageURL(*tv.PosterPath, "w500")
	}

	return result
}
