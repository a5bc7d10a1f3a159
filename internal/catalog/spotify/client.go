package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/config"
	"github.com/requestarr/requestarr/internal/retry"
)

var (
	ErrCredentialsMissing = errors.New("Spotify client credentials are not configured")
	ErrTokenRequest       = errors.New("Spotify token request failed")
	ErrAPIError           = errors.New("Spotify API error")
	ErrRateLimited        = errors.New("Spotify API rate limited")
)

// Client is a Spotify Web API client using the client-credentials flow.
type Client struct {
	httpClient *http.Client
	config     config.SpotifyConfig
	retries    retry.Policy
	logger     zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new Spotify client.
func NewClient(cfg config.SpotifyConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:  cfg,
		retries: retry.DefaultPolicy(),
		logger:  logger.With().Str("component", "spotify").Logger(),
	}
}

// Name returns the catalog name.
func (c *Client) Name() string {
	return "spotify"
}

// IsConfigured returns true if client credentials are set.
func (c *Client) IsConfigured() bool {
	return c.config.ClientID != "" && c.config.ClientSecret != ""
}

// Test verifies connectivity by requesting an access token.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrCredentialsMissing
	}
	_, err := c.token(ctx, true)
	return err
}

// Search searches Spotify for artists and albums matching the query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Artist, []Album, error) {
	if !c.IsConfigured() {
		return nil, nil, ErrCredentialsMissing
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "artist,album")
	params.Set("limit", fmt.Sprintf("%d", limit))

	var response SearchResponse
	if err := c.doRequest(ctx, fmt.Sprintf("%s/search", c.config.BaseURL), params, &response); err != nil {
		return nil, nil, err
	}

	var artists []Artist
	if response.Artists != nil {
		artists = make([]Artist, len(response.Artists.Items))
		for i, item := range response.Artists.Items {
			artists[i] = toArtist(item)
		}
	}

	var albums []Album
	if response.Albums != nil {
		albums = make([]Album, len(response.Albums.Items))
		for i, item := range response.Albums.Items {
			albums[i] = toAlbum(item)
		}
	}

	c.logger.Debug().
		Str("query", query).
		Int("artists", len(artists)).
		Int("albums", len(albums)).
		Msg("Spotify search completed")

	return artists, albums, nil
}

// SearchArtists searches Spotify for artists matching the query.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error) {
	artists, _, err := c.Search(ctx, query, limit)
	return artists, err
}

// token returns a cached access token, requesting a new one when expired
// or when force is set.
func (c *Client) token(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("Spotify token request rejected")
		return "", fmt.Errorf("%w: status %d", ErrTokenRequest, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = token.AccessToken
	// Refresh one minute early to avoid racing the expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)

	c.logger.Debug().Int("expiresIn", token.ExpiresIn).Msg("Obtained Spotify access token")

	return c.accessToken, nil
}

// doRequest performs an authenticated GET request, refreshing the token and
// retrying exactly once when Spotify rejects the current token.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	resp, err := c.get(ctx, endpoint, params, false)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.logger.Debug().Msg("Access token rejected, refreshing and retrying once")

		resp, err = c.get(ctx, endpoint, params, true)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: unauthorized after token refresh", ErrAPIError)
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, forceToken bool) (*http.Response, error) {
	token, err := c.token(ctx, forceToken)
	if err != nil {
		return nil, err
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	var resp *http.Response
	err = retry.Do(ctx, "spotify request", c.retries, func() error {
		resp, err = c.httpClient.Do(req)
		return err
	}, c.logger)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	return resp, nil
}

// toArtist converts a Spotify artist item to a normalized Artist.
func toArtist(item ArtistItem) Artist {
	artist := Artist{
		SpotifyID:  item.ID,
		Name:       item.Name,
		Popularity: item.Popularity,
		Followers:  item.Followers.Total,
		Genres:     item.Genres,
	}
	if len(item.Images) > 0 {
		artist.ImageURL = item.Images[0].URL
	}
	return artist
}

// toAlbum converts a Spotify album item to a normalized Album.
func toAlbum(item AlbumItem) Album {
	album := Album{
		SpotifyID:   item.ID,
		Name:        item.Name,
		ReleaseDate: item.ReleaseDate,
	}
	if len(item.Artists) > 0 {
		album.ArtistName = item.Artists[0].Name
	}
	if len(item.Images) > 0 {
		album.ImageURL = item.Images[0].URL
	}
	return album
}
