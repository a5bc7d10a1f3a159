package musicbrainz

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
	cfg := config.MusicBrainzConfig{
		BaseURL:   server.URL,
		UserAgent: "Requestarr/test",
		Timeout:   5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_SearchArtists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/artist" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "Requestarr/test" {
			t.Errorf("User-Agent = %q, want Requestarr/test", ua)
		}
		if fmtParam := r.URL.Query().Get("fmt"); fmtParam != "json" {
			t.Errorf("fmt = %q, want json", fmtParam)
		}

		response := SearchArtistsResponse{
			Count: 2,
			Artists: []ArtistItem{
				{
					ID:       "a74b1b7f-71a5-4011-9441-d0b5e4122711",
					Name:     "Radiohead",
					Type:     "Group",
					Score:    100,
					Country:  "GB",
					SortName: "Radiohead",
				},
				{
					ID:             "39a973dd-ef4e-4b32-af0d-23b581bc343d",
					Name:           "Radiohead Tribute Band",
					Type:           "Group",
					Score:          62,
					Disambiguation: "tribute act",
				},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newTestClient(server)
	results, err := client.SearchArtists(context.Background(), "Radiohead", 10)
	if err != nil {
		t.Fatalf("SearchArtists() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("SearchArtists() returned %d results, want 2", len(results))
	}
	if results[0].Name != "Radiohead" {
		t.Errorf("results[0].Name = %q, want Radiohead", results[0].Name)
	}
	if results[0].Score != 100 {
		t.Errorf("results[0].Score = %d, want 100", results[0].Score)
	}
	if results[1].Disambiguation != "tribute act" {
		t.Errorf("results[1].Disambiguation = %q, want %q", results[1].Disambiguation, "tribute act")
	}
}

func TestClient_SearchArtists_NotConfigured(t *testing.T) {
	client := NewClient(config.MusicBrainzConfig{}, zerolog.Nop())
	_, err := client.SearchArtists(context.Background(), "query", 5)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SearchArtists() error = %v, want ErrNotConfigured", err)
	}
}

func TestClient_SearchArtists_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.SearchArtists(context.Background(), "query", 5)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("SearchArtists() error = %v, want ErrRateLimited", err)
	}
}
