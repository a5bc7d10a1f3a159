package classifier

import (
	"strings"

	"github.com/requestarr/requestarr/internal/catalog/musicbrainz"
	"github.com/requestarr/requestarr/internal/catalog/spotify"
	"github.com/requestarr/requestarr/internal/catalog/tmdb"
)

// normalize lowercases and collapses whitespace for lexical comparison.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// lexicalWeight returns the match contribution between query and title:
// exact match scores highest, substring containment (either direction) a
// smaller amount, no overlap nothing.
func lexicalWeight(query, title string, exact, substring float64) float64 {
	q, t := normalize(query), normalize(title)
	switch {
	case q == t:
		return exact
	case q != "" && t != "" && (strings.Contains(t, q) || strings.Contains(q, t)):
		return substring
	default:
		return 0
	}
}

func clamp(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}

// scoreMovie computes the confidence for a TMDB movie result.
func scoreMovie(m tmdb.Movie, query string) float64 {
	score := lexicalWeight(query, m.Title, 0.5, 0.3)
	score += min(0.3, m.Popularity/1000)
	if m.PosterURL != "" {
		score += 0.1
	}
	if m.Year >= 2010 {
		score += 0.1
	}
	return clamp(score)
}

// scoreSeries computes the confidence for a TMDB series result.
func scoreSeries(s tmdb.Series, query string) float64 {
	score := lexicalWeight(query, s.Title, 0.5, 0.3)
	score += min(0.3, s.Popularity/1000)
	if s.PosterURL != "" {
		score += 0.1
	}
	if s.Year >= 2010 {
		score += 0.1
	}
	return clamp(score)
}

// scoreSpotifyArtist computes the confidence for a Spotify artist result.
// Spotify popularity sits in 0-100, so the popularity term caps out well
// below its 0.3 ceiling; being an artist (not an album) earns a flat bonus.
func scoreSpotifyArtist(a spotify.Artist, query string) float64 {
	score := lexicalWeight(query, a.Name, 0.5, 0.3)
	score += min(0.3, float64(a.Popularity)/300)
	score += 0.1 // flat artist-type bonus
	if a.ImageURL != "" {
		score += 0.1
	}
	return clamp(score)
}

// scoreMusicBrainzArtist computes the confidence for a MusicBrainz artist
// result, leading with the service's own 0-100 relevance score.
func scoreMusicBrainzArtist(a musicbrainz.Artist, query string) float64 {
	score := min(0.6, float64(a.Score)/150)
	score += lexicalWeight(query, a.Name, 0.3, 0.15)
	if a.Disambiguation != "" {
		score += 0.1
	}
	return clamp(score)
}
