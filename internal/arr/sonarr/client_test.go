package sonarr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/config"
)

func newTestClient(server *httptest.Server, rootFolder string) *Client {
	cfg := config.ArrConfig{
		URL:              server.URL,
		APIKey:           "test-api-key",
		QualityProfileID: 1,
		RootFolderPath:   rootFolder,
		Timeout:          5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_AddSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/series" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if key := r.Header.Get("X-Api-Key"); key != "test-api-key" {
			t.Errorf("X-Api-Key = %q", key)
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload["tvdbId"] != float64(81189) {
			t.Errorf("tvdbId = %v, want 81189", payload["tvdbId"])
		}
		if payload["seasonFolder"] != true {
			t.Errorf("seasonFolder = %v, want true", payload["seasonFolder"])
		}
		addOptions, ok := payload["addOptions"].(map[string]interface{})
		if !ok || addOptions["searchForMissingEpisodes"] != true {
			t.Errorf("addOptions = %v, want searchForMissingEpisodes true", payload["addOptions"])
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 1})
	}))
	defer server.Close()

	client := newTestClient(server, "/tv")
	if !client.AddSeries(context.Background(), 81189, "Breaking Bad") {
		t.Error("AddSeries() = false, want true")
	}
}

func TestClient_AddSeries_NoRootFolderAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/rootfolder" {
			json.NewEncoder(w).Encode([]RootFolder{})
			return
		}
		t.Errorf("unexpected path: %s", r.URL.Path)
	}))
	defer server.Close()

	client := newTestClient(server, "")
	if client.AddSeries(context.Background(), 81189, "Breaking Bad") {
		t.Error("AddSeries() = true with no root folder, want false")
	}
}

func TestClient_SeriesExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/series" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]Series{
			{ID: 1, Title: "Breaking Bad", TvdbID: 81189},
			{ID: 2, Title: "Better Call Saul", TvdbID: 273181},
		})
	}))
	defer server.Close()

	client := newTestClient(server, "/tv")

	exists, err := client.SeriesExists(context.Background(), 81189)
	if err != nil {
		t.Fatalf("SeriesExists() error = %v", err)
	}
	if !exists {
		t.Error("SeriesExists(81189) = false, want true")
	}

	exists, err = client.SeriesExists(context.Background(), 999)
	if err != nil {
		t.Fatalf("SeriesExists() error = %v", err)
	}
	if exists {
		t.Error("SeriesExists(999) = true, want false")
	}
}

func TestClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/series/lookup" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if term := r.URL.Query().Get("term"); term != "Breaking Bad" {
			t.Errorf("term = %q, want Breaking Bad", term)
		}
		json.NewEncoder(w).Encode([]Series{{Title: "Breaking Bad", TvdbID: 81189, Year: 2008}})
	}))
	defer server.Close()

	client := newTestClient(server, "/tv")
	series, err := client.Lookup(context.Background(), "Breaking Bad")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(series) != 1 || series[0].TvdbID != 81189 {
		t.Errorf("Lookup() = %+v, want one Breaking Bad entry", series)
	}
}

func TestClient_AddSeries_NotConfigured(t *testing.T) {
	client := NewClient(config.ArrConfig{}, zerolog.Nop())
	if client.AddSeries(context.Background(), 81189, "Breaking Bad") {
		t.Error("AddSeries() = true without configuration, want false")
	}
}
