package classifier

// MediaKind is the detected media kind for a candidate.
type MediaKind string

const (
	KindMovie   MediaKind = "movie"
	KindTV      MediaKind = "tv"
	KindMusic   MediaKind = "music"
	KindUnknown MediaKind = "unknown"
)

// Manager identifies the downstream service a candidate routes to.
type Manager string

const (
	ManagerRadarr  Manager = "radarr"
	ManagerSonarr  Manager = "sonarr"
	ManagerLidarr  Manager = "lidarr"
	ManagerUnknown Manager = "unknown"
)

// Candidate is one scored classification result. The JSON shape doubles as
// the classification_data snapshot persisted on a request.
type Candidate struct {
	Title       string            `json:"title"`
	Kind        MediaKind         `json:"media_type"`
	Manager     Manager           `json:"service"`
	Confidence  float64           `json:"confidence"`
	ExternalID  string            `json:"external_id,omitempty"`
	Year        int               `json:"year,omitempty"`
	Description string            `json:"description,omitempty"`
	PosterURL   string            `json:"poster_url,omitempty"`
	Extra       map[string]string `json:"additional_data,omitempty"`
}
