package tmdb

// SearchMoviesResponse is the TMDB /search/movie response.
type SearchMoviesResponse struct {
	Page         int           `json:"page"`
	Results      []MovieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// MovieResult is a single movie entry from a TMDB search response.
type MovieResult struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	PosterPath  *string `json:"poster_path"`
	Popularity  float64 `json:"popularity"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

// SearchTVResponse is the TMDB /search/tv response.
type SearchTVResponse struct {
	Page         int        `json:"page"`
	Results      []TVResult `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// TVResult is a single series entry from a TMDB search response.
type TVResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   *string `json:"poster_path"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
}

// ExternalIDsResponse is the TMDB /tv/{id}/external_ids response.
type ExternalIDsResponse struct {
	ID     int    `json:"id"`
	ImdbID string `json:"imdb_id"`
	TvdbID int    `json:"tvdb_id"`
}

// ErrorResponse is the TMDB error payload.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// Movie is a normalized movie search result.
type Movie struct {
	TMDBID      int
	Title       string
	Year        int
	Overview    string
	ReleaseDate string
	PosterURL   string
	Popularity  float64
}

// Series is a normalized TV series search result.
type Series struct {
	TMDBID       int
	Title        string
	Year         int
	Overview     string
	FirstAirDate string
	PosterURL    string
	Popularity   float64
}
