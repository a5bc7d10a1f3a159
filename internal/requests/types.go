package requests

import (
	"encoding/json"
	"strings"
	"time"
)

// Request statuses. Failed statuses are terminal until an explicit
// reclassification resets the request to Pending.
const (
	StatusPending      = "Pending"
	StatusSentToRadarr = "SentToRadarr"
	StatusSentToSonarr = "SentToSonarr"
	StatusSentToLidarr = "SentToLidarr"
	StatusCancelled    = "Cancelled"

	StatusFailedClassification    = "Failed (Classification)"
	StatusFailedMissingExternalID = "Failed (MissingExternalID)"
	StatusFailedRadarr            = "Failed (Radarr)"
	StatusFailedSonarr            = "Failed (Sonarr)"
	StatusFailedLidarr            = "Failed (Lidarr)"
	StatusFailedException         = "Failed (Exception)"
)

// IsFailed reports whether a status is one of the Failed variants.
func IsFailed(status string) bool {
	return strings.HasPrefix(status, "Failed")
}

// Priority is the user-assigned request priority. Carried for display and
// reporting; pending requests are processed in insertion order.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Request is one persisted user media request.
type Request struct {
	ID                 int64           `json:"id"`
	UserID             string          `json:"user_id"`
	Title              string          `json:"title"`
	MediaType          string          `json:"media_type,omitempty"`
	Status             string          `json:"status"`
	Priority           Priority        `json:"priority"`
	ArrService         string          `json:"arr_service,omitempty"`
	ExternalID         string          `json:"external_id,omitempty"`
	ConfidenceScore    float64         `json:"confidence_score,omitempty"`
	ClassificationData json.RawMessage `json:"classification_data,omitempty"`
	RequestedAt        time.Time       `json:"requested_at"`
	LastStatusUpdate   time.Time       `json:"last_status_update"`
}

// Classified reports whether classification fields have been persisted.
func (r *Request) Classified() bool {
	return r.ArrService != ""
}

// Stats summarizes the request table for reporting.
type Stats struct {
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByService     map[string]int64 `json:"by_service"`
	AvgConfidence float64          `json:"avg_confidence"`
}
