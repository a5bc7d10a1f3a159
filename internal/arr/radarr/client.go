package radarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/config"
)

var (
	ErrNotConfigured = errors.New("Radarr URL or API key is not configured")
	ErrAPIError      = errors.New("Radarr API error")
)

// RootFolder is a Radarr root folder entry.
type RootFolder struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// Movie is a Radarr movie lookup result.
type Movie struct {
	Title  string `json:"title"`
	TmdbID int    `json:"tmdbId"`
	Year   int    `json:"year"`
}

// Client is a Radarr v3 API client.
type Client struct {
	httpClient *http.Client
	config     config.ArrConfig
	logger     zerolog.Logger
}

// NewClient creates a new Radarr client.
func NewClient(cfg config.ArrConfig, logger zerolog.Logger) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "radarr").Logger(),
	}
	if !c.IsConfigured() {
		c.logger.Warn().Msg("Radarr URL or API key not configured, movie routing disabled")
	}
	return c
}

// Name returns the manager name.
func (c *Client) Name() string {
	return "radarr"
}

// IsConfigured returns true if both URL and API key are set.
func (c *Client) IsConfigured() bool {
	return c.config.URL != "" && c.config.APIKey != ""
}

// Test verifies connectivity via the system status endpoint.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	var status struct {
		Version string `json:"version"`
	}
	return c.doGet(ctx, "/api/v3/system/status", nil, &status)
}

// AddMovie adds a movie to Radarr by TMDB ID. Returns false on any failure;
// the failure reason is logged, never propagated.
func (c *Client) AddMovie(ctx context.Context, tmdbID int, title string) bool {
	if !c.IsConfigured() {
		c.logger.Error().Msg("Cannot add movie, Radarr is not configured")
		return false
	}

	rootFolder := c.config.RootFolderPath
	if rootFolder == "" {
		folders, err := c.GetRootFolders(ctx)
		if err != nil || len(folders) == 0 {
			c.logger.Error().Err(err).Msg("Could not determine Radarr root folder")
			return false
		}
		rootFolder = folders[0].Path
	}

	payload := map[string]interface{}{
		"title":            title,
		"tmdbId":           tmdbID,
		"qualityProfileId": c.config.QualityProfileID,
		"rootFolderPath":   rootFolder,
		"monitored":        true,
		"addOptions": map[string]interface{}{
			"searchForMovie": true,
		},
	}

	if err := c.doPost(ctx, "/api/v3/movie", payload); err != nil {
		c.logger.Error().Err(err).Int("tmdbID", tmdbID).Str("title", title).Msg("Failed to add movie")
		return false
	}

	c.logger.Info().Int("tmdbID", tmdbID).Str("title", title).Msg("Movie added to Radarr")
	return true
}

// Lookup searches Radarr's own catalog for movies matching the term.
func (c *Client) Lookup(ctx context.Context, term string) ([]Movie, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("term", term)

	var movies []Movie
	if err := c.doGet(ctx, "/api/v3/movie/lookup", params, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// GetRootFolders lists the root folders configured in Radarr.
func (c *Client) GetRootFolders(ctx context.Context) ([]RootFolder, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	var folders []RootFolder
	if err := c.doGet(ctx, "/api/v3/rootfolder", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, result interface{}) error {
	reqURL := strings.TrimRight(c.config.URL, "/") + path
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Str("path", path).Msg("Radarr API error")
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) doPost(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	reqURL := strings.TrimRight(c.config.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error().Int("status", resp.StatusCode).Str("body", string(respBody)).Str("path", path).Msg("Radarr API error")
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	return nil
}
