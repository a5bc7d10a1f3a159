package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/config"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := config.TMDBConfig{
		APIKey:       "test-api-key",
		BaseURL:      server.URL,
		ImageBaseURL: "https://image.tmdb.org/t/p",
		Timeout:      5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_Name(t *testing.T) {
	client := NewClient(config.TMDBConfig{}, zerolog.Nop())
	if client.Name() != "tmdb" {
		t.Errorf("Name() = %q, want %q", client.Name(), "tmdb")
	}
}

func TestClient_IsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   bool
	}{
		{"with key", "abc123", true},
		{"without key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(config.TMDBConfig{APIKey: tt.apiKey}, zerolog.Nop())
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_SearchMovies(t *testing.T) {
	poster := "/poster.jpg"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		query := r.URL.Query().Get("query")
		if query != "Matrix" {
			t.Errorf("unexpected query: %s", query)
		}

		response := SearchMoviesResponse{
			Page:         1,
			TotalResults: 2,
			TotalPages:   1,
			Results: []MovieResult{
				{
					ID:          603,
					Title:       "The Matrix",
					Overview:    "A computer hacker learns about the true nature of reality.",
					ReleaseDate: "1999-03-30",
					PosterPath:  &poster,
					Popularity:  85.3,
				},
				{
					ID:          604,
					Title:       "The Matrix Reloaded",
					Overview:    "Neo and the rebel leaders continue to fight.",
					ReleaseDate: "2003-05-15",
					Popularity:  42.1,
				},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newTestClient(server)
	results, err := client.SearchMovies(context.Background(), "Matrix")
	if err != nil {
		t.Fatalf("SearchMovies() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("SearchMovies() returned %d results, want 2", len(results))
	}

	if results[0].Title != "The Matrix" {
		t.Errorf("results[0].Title = %q, want %q", results[0].Title, "The Matrix")
	}
	if results[0].Year != 1999 {
		t.Errorf("results[0].Year = %d, want %d", results[0].Year, 1999)
	}
	if results[0].TMDBID != 603 {
		t.Errorf("results[0].TMDBID = %d, want %d", results[0].TMDBID, 603)
	}
	if results[0].PosterURL != "https://image.tmdb.org/t/p/w500/poster.jpg" {
		t.Errorf("results[0].PosterURL = %q", results[0].PosterURL)
	}
	if results[1].PosterURL != "" {
		t.Errorf("results[1].PosterURL = %q, want empty", results[1].PosterURL)
	}
}

func TestClient_SearchMovies_NotConfigured(t *testing.T) {
	client := NewClient(config.TMDBConfig{}, zerolog.Nop())
	_, err := client.SearchMovies(context.Background(), "Matrix")
	if !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("SearchMovies() error = %v, want ErrAPIKeyMissing", err)
	}
}

func TestClient_SearchSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		response := SearchTVResponse{
			Page:         1,
			TotalResults: 1,
			TotalPages:   1,
			Results: []TVResult{
				{
					ID:           1396,
					Name:         "Breaking Bad",
					Overview:     "A chemistry teacher turns to crime.",
					FirstAirDate: "2008-01-20",
					Popularity:   120.5,
				},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newTestClient(server)
	results, err := client.SearchSeries(context.Background(), "Breaking Bad")
	if err != nil {
		t.Fatalf("SearchSeries() error = %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("SearchSeries() returned %d results, want 1", len(results))
	}
	if results[0].Title != "Breaking Bad" {
		t.Errorf("results[0].Title = %q, want %q", results[0].Title, "Breaking Bad")
	}
	if results[0].Year != 2008 {
		t.Errorf("results[0].Year = %d, want %d", results[0].Year, 2008)
	}
}

func TestClient_GetTVDBID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1396/external_ids" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		response := ExternalIDsResponse{
			ID:     1396,
			ImdbID: "tt0903747",
			TvdbID: 81189,
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newTestClient(server)
	tvdbID, err := client.GetTVDBID(context.Background(), 1396)
	if err != nil {
		t.Fatalf("GetTVDBID() error = %v", err)
	}
	if tvdbID != 81189 {
		t.Errorf("GetTVDBID() = %d, want 81189", tvdbID)
	}
}

func TestClient_GetTVDBID_NoMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ExternalIDsResponse{ID: 999})
	}))
	defer server.Close()

	client := newTestClient(server)
	tvdbID, err := client.GetTVDBID(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetTVDBID() error = %v", err)
	}
	if tvdbID != 0 {
		t.Errorf("GetTVDBID() = %d, want 0", tvdbID)
	}
}

func TestClient_APIErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrAPIError},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(ErrorResponse{StatusCode: tt.status, StatusMessage: "error"})
			}))
			defer server.Close()

			client := newTestClient(server)
			_, err := client.SearchMovies(context.Background(), "whatever")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SearchMovies() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
