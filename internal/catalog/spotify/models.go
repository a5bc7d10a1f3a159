package spotify

// tokenResponse is the accounts-service client-credentials response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// SearchResponse is the Spotify /search response.
type SearchResponse struct {
	Artists *ArtistsPage `json:"artists"`
	Albums  *AlbumsPage  `json:"albums"`
}

// ArtistsPage is one page of artist results.
type ArtistsPage struct {
	Items []ArtistItem `json:"items"`
	Total int          `json:"total"`
}

// AlbumsPage is one page of album results.
type AlbumsPage struct {
	Items []AlbumItem `json:"items"`
	Total int         `json:"total"`
}

// ArtistItem is a single artist from a Spotify search response.
type ArtistItem struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity"`
	Genres     []string `json:"genres"`
	Followers  struct {
		Total int `json:"total"`
	} `json:"followers"`
	Images []Image `json:"images"`
}

// AlbumItem is a single album from a Spotify search response.
type AlbumItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"`
	AlbumType   string  `json:"album_type"`
	Images      []Image `json:"images"`
	Artists     []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
}

// Image is a Spotify image reference.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Artist is a normalized artist search result.
type Artist struct {
	SpotifyID  string
	Name       string
	Popularity int
	Followers  int
	Genres     []string
	ImageURL   string
}

// Album is a normalized album search result.
type Album struct {
	SpotifyID   string
	Name        string
	ArtistName  string
	ReleaseDate string
	ImageURL    string
}
