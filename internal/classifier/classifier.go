package classifier

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/catalog/musicbrainz"
	"github.com/requestarr/requestarr/internal/catalog/spotify"
	"github.com/requestarr/requestarr/internal/catalog/tmdb"
	"github.com/requestarr/requestarr/internal/config"
)

const (
	maxMovieResults  = 5
	maxSeriesResults = 5
	maxArtistResults = 3
)

// MovieCatalog is the movie search capability.
type MovieCatalog interface {
	SearchMovies(ctx context.Context, query string) ([]tmdb.Movie, error)
	IsConfigured() bool
}

// SeriesCatalog is the TV search capability, including secondary TVDB
// identifier resolution.
type SeriesCatalog interface {
	SearchSeries(ctx context.Context, query string) ([]tmdb.Series, error)
	GetTVDBID(ctx context.Context, tmdbID int) (int, error)
	IsConfigured() bool
}

// MusicCatalog is the primary music-service search capability.
type MusicCatalog interface {
	Search(ctx context.Context, query string, limit int) ([]spotify.Artist, []spotify.Album, error)
	IsConfigured() bool
}

// MusicIdentityCatalog is the secondary music catalog, the one able to
// supply the identity ID the music manager prefers.
type MusicIdentityCatalog interface {
	SearchArtists(ctx context.Context, query string, limit int) ([]musicbrainz.Artist, error)
	IsConfigured() bool
}

// Classifier orchestrates concurrent catalog searches and ranks the merged
// candidates by confidence.
type Classifier struct {
	movies  MovieCatalog
	series  SeriesCatalog
	music   MusicCatalog
	musicID MusicIdentityCatalog
	config  config.ClassifierConfig
	logger  zerolog.Logger
}

// New creates a new Classifier over the given catalogs.
func New(movies MovieCatalog, series SeriesCatalog, music MusicCatalog, musicID MusicIdentityCatalog, cfg config.ClassifierConfig, logger zerolog.Logger) *Classifier {
	return &Classifier{
		movies:  movies,
		series:  series,
		music:   music,
		musicID: musicID,
		config:  cfg,
		logger:  logger.With().Str("component", "classifier").Logger(),
	}
}

// Classify searches all configured catalogs concurrently and returns up to
// limit candidates sorted by confidence descending. A failing catalog
// contributes zero candidates and never aborts the call.
func (c *Classifier) Classify(ctx context.Context, query string, limit int) []Candidate {
	c.logger.Info().Str("query", query).Msg("Classifying request")

	var (
		wg     sync.WaitGroup
		movies []Candidate
		series []Candidate
		music  []Candidate
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		movies = c.searchMovies(ctx, query)
	}()
	go func() {
		defer wg.Done()
		series = c.searchSeries(ctx, query)
	}()
	go func() {
		defer wg.Done()
		music = c.searchMusic(ctx, query)
	}()
	wg.Wait()

	all := make([]Candidate, 0, len(movies)+len(series)+len(music))
	all = append(all, movies...)
	all = append(all, series...)
	all = append(all, music...)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Confidence > all[j].Confidence
	})

	if len(all) > 0 {
		top := all[0]
		c.logger.Debug().
			Str("query", query).
			Int("candidates", len(all)).
			Str("topTitle", top.Title).
			Str("topManager", string(top.Manager)).
			Float64("topConfidence", top.Confidence).
			Msg("Classification completed")
	} else {
		c.logger.Debug().Str("query", query).Msg("Classification produced no candidates")
	}

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// BestMatch returns the highest-confidence candidate when it clears the
// auto-route gate, nil otherwise.
func (c *Classifier) BestMatch(ctx context.Context, query string) *Candidate {
	matches := c.Classify(ctx, query, 1)
	if len(matches) == 0 || matches[0].Confidence < c.config.BestMatchThreshold {
		return nil
	}
	return &matches[0]
}

// HasAmbiguity reports whether the top candidates are a cross-manager
// near-tie that needs user disambiguation. Ties within one manager are not
// ambiguous: the router would pick the same service either way.
func (c *Classifier) HasAmbiguity(ctx context.Context, query string) bool {
	matches := c.Classify(ctx, query, 5)
	if len(matches) < 2 {
		return false
	}

	top := matches[0]
	for _, m := range matches[1:min(3, len(matches))] {
		if top.Confidence-m.Confidence <= c.config.AmbiguityThreshold && m.Manager != top.Manager {
			return true
		}
	}
	return false
}

func (c *Classifier) searchMovies(ctx context.Context, query string) []Candidate {
	if c.movies == nil || !c.movies.IsConfigured() {
		return nil
	}

	results, err := c.movies.SearchMovies(ctx, query)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("Movie catalog search failed")
		return nil
	}
	if len(results) > maxMovieResults {
		results = results[:maxMovieResults]
	}

	candidates := make([]Candidate, 0, len(results))
	for _, m := range results {
		candidates = append(candidates, Candidate{
			Title:       m.Title,
			Kind:        KindMovie,
			Manager:     ManagerRadarr,
			Confidence:  scoreMovie(m, query),
			ExternalID:  strconv.Itoa(m.TMDBID),
			Year:        m.Year,
			Description: m.Overview,
			PosterURL:   m.PosterURL,
			Extra: map[string]string{
				"popularity": strconv.FormatFloat(m.Popularity, 'f', -1, 64),
			},
		})
	}
	return candidates
}

func (c *Classifier) searchSeries(ctx context.Context, query string) []Candidate {
	if c.series == nil || !c.series.IsConfigured() {
		return nil
	}

	results, err := c.series.SearchSeries(ctx, query)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("TV catalog search failed")
		return nil
	}
	if len(results) > maxSeriesResults {
		results = results[:maxSeriesResults]
	}

	candidates := make([]Candidate, 0, len(results))
	for _, s := range results {
		// Prefer the TVDB identifier the TV manager wants; fall back to
		// the TMDB ID and let the processor retry resolution later.
		externalID := strconv.Itoa(s.TMDBID)
		tvdbID, err := c.series.GetTVDBID(ctx, s.TMDBID)
		if err != nil {
			c.logger.Debug().Err(err).Int("tmdbID", s.TMDBID).Msg("TVDB ID resolution failed")
		} else if tvdbID > 0 {
			externalID = strconv.Itoa(tvdbID)
		}

		candidates = append(candidates, Candidate{
			Title:       s.Title,
			Kind:        KindTV,
			Manager:     ManagerSonarr,
			Confidence:  scoreSeries(s, query),
			ExternalID:  externalID,
			Year:        s.Year,
			Description: s.Overview,
			PosterURL:   s.PosterURL,
			Extra: map[string]string{
				"tmdb_id":    strconv.Itoa(s.TMDBID),
				"popularity": strconv.FormatFloat(s.Popularity, 'f', -1, 64),
			},
		})
	}
	return candidates
}

// searchMusic queries the primary music service first and supplements with
// the identity catalog only when the primary yields fewer than 2 candidates.
func (c *Classifier) searchMusic(ctx context.Context, query string) []Candidate {
	candidates := c.searchSpotify(ctx, query)
	if len(candidates) < 2 {
		candidates = append(candidates, c.searchMusicBrainz(ctx, query)...)
	}
	return candidates
}

func (c *Classifier) searchSpotify(ctx context.Context, query string) []Candidate {
	if c.music == nil || !c.music.IsConfigured() {
		return nil
	}

	artists, _, err := c.music.Search(ctx, query, 5)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("Music catalog search failed")
		return nil
	}
	if len(artists) > maxArtistResults {
		artists = artists[:maxArtistResults]
	}

	candidates := make([]Candidate, 0, len(artists))
	for _, a := range artists {
		candidates = append(candidates, Candidate{
			Title:       a.Name,
			Kind:        KindMusic,
			Manager:     ManagerLidarr,
			Confidence:  scoreSpotifyArtist(a, query),
			Description: fmt.Sprintf("Artist with %d followers", a.Followers),
			PosterURL:   a.ImageURL,
			Extra: map[string]string{
				"spotify_id": a.SpotifyID,
				"type":       "artist",
			},
		})
	}
	return candidates
}

func (c *Classifier) searchMusicBrainz(ctx context.Context, query string) []Candidate {
	if c.musicID == nil || !c.musicID.IsConfigured() {
		return nil
	}

	artists, err := c.musicID.SearchArtists(ctx, query, maxArtistResults)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("Music identity catalog search failed")
		return nil
	}

	candidates := make([]Candidate, 0, len(artists))
	for _, a := range artists {
		desc := a.Type
		if desc == "" {
			desc = "Artist"
		}
		if a.Disambiguation != "" {
			desc = desc + " - " + a.Disambiguation
		}

		candidates = append(candidates, Candidate{
			Title:       a.Name,
			Kind:        KindMusic,
			Manager:     ManagerLidarr,
			Confidence:  scoreMusicBrainzArtist(a, query),
			ExternalID:  a.MBID,
			Description: desc,
			Extra: map[string]string{
				"country": a.Country,
				"score":   strconv.Itoa(a.Score),
			},
		})
	}
	return candidates
}
