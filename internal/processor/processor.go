package processor

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/classifier"
	"github.com/requestarr/requestarr/internal/requests"
)

// Classifier is the classification capability the processor needs.
type Classifier interface {
	BestMatch(ctx context.Context, query string) *classifier.Candidate
}

// MovieManager routes movie requests downstream.
type MovieManager interface {
	AddMovie(ctx context.Context, tmdbID int, title string) bool
}

// TVManager routes TV requests downstream.
type TVManager interface {
	AddSeries(ctx context.Context, tvdbID int, title string) bool
}

// MusicManager routes music requests downstream.
type MusicManager interface {
	AddArtist(ctx context.Context, name, musicBrainzID string) bool
}

// TVIDResolver resolves a TVDB identifier from a TMDB series ID, used as a
// second chance before declaring a TV request unroutable.
type TVIDResolver interface {
	GetTVDBID(ctx context.Context, tmdbID int) (int, error)
}

// BatchResult summarizes one processing pass.
type BatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Processor drives pending requests through classification and routing.
type Processor struct {
	store      *requests.Store
	classifier Classifier
	movies     MovieManager
	tv         TVManager
	music      MusicManager
	resolver   TVIDResolver
	logger     zerolog.Logger

	mu sync.Mutex // serializes batches; concurrent passes would double-process
}

// New creates a new request processor.
func New(store *requests.Store, clf Classifier, movies MovieManager, tv TVManager, music MusicManager, resolver TVIDResolver, logger zerolog.Logger) *Processor {
	return &Processor{
		store:      store,
		classifier: clf,
		movies:     movies,
		tv:         tv,
		music:      music,
		resolver:   resolver,
		logger:     logger.With().Str("component", "processor").Logger(),
	}
}

// ProcessPending fetches all pending requests once and processes each
// independently. One request's failure never aborts the batch.
func (p *Processor) ProcessPending(ctx context.Context) (*BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runID := uuid.NewString()
	logger := p.logger.With().Str("run", runID).Logger()

	pending, err := p.store.GetPending(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch pending requests")
		return nil, err
	}

	result := &BatchResult{}
	if len(pending) == 0 {
		logger.Debug().Msg("No pending requests")
		return result, nil
	}

	logger.Info().Int("count", len(pending)).Msg("Processing pending requests")

	for i := range pending {
		req := pending[i]
		status := p.processOne(ctx, &req, logger)

		result.Processed++
		if requests.IsFailed(status) {
			result.Failed++
		} else {
			result.Sent++
		}
	}

	logger.Info().
		Int("processed", result.Processed).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("Batch completed")

	return result, nil
}

// processOne advances a single request to a terminal status and returns it.
// Panics are caught here so a single bad request cannot take down the batch.
func (p *Processor) processOne(ctx context.Context, req *requests.Request, logger zerolog.Logger) (status string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Int64("id", req.ID).
				Interface("panic", r).
				Msg("Unhandled error while processing request")
			status = requests.StatusFailedException
			if err := p.store.UpdateStatus(ctx, req.ID, status); err != nil {
				logger.Error().Err(err).Int64("id", req.ID).Msg("Failed to record exception status")
			}
		}
	}()

	match := p.resolveClassification(ctx, req, logger)
	if match == nil {
		p.transition(ctx, req.ID, requests.StatusFailedClassification, logger)
		return requests.StatusFailedClassification
	}

	switch match.Manager {
	case classifier.ManagerRadarr:
		status = p.routeMovie(ctx, req, match, logger)
	case classifier.ManagerSonarr:
		status = p.routeSeries(ctx, req, match, logger)
	case classifier.ManagerLidarr:
		status = p.routeMusic(ctx, req, match, logger)
	default:
		logger.Warn().Int64("id", req.ID).Str("manager", string(match.Manager)).Msg("No route for classified manager")
		status = requests.StatusFailedClassification
	}

	p.transition(ctx, req.ID, status, logger)
	return status
}

// resolveClassification reuses the persisted classification when present,
// otherwise classifies now and persists the decision before any routing.
func (p *Processor) resolveClassification(ctx context.Context, req *requests.Request, logger zerolog.Logger) *classifier.Candidate {
	if req.Classified() {
		logger.Debug().Int64("id", req.ID).Str("service", req.ArrService).Msg("Reusing persisted classification")
		match := &classifier.Candidate{
			Title:      req.Title,
			Kind:       classifier.MediaKind(req.MediaType),
			Manager:    classifier.Manager(req.ArrService),
			Confidence: req.ConfidenceScore,
			ExternalID: req.ExternalID,
		}
		if len(req.ClassificationData) > 0 {
			var stored classifier.Candidate
			if err := json.Unmarshal(req.ClassificationData, &stored); err == nil {
				match.Extra = stored.Extra
				if stored.Title != "" {
					match.Title = stored.Title
				}
			}
		}
		return match
	}

	match := p.classifier.BestMatch(ctx, req.Title)
	if match == nil {
		logger.Info().Int64("id", req.ID).Str("title", req.Title).Msg("No confident classification")
		return nil
	}

	data, err := json.Marshal(match)
	if err != nil {
		data = nil
	}
	if err := p.store.SaveClassification(ctx, req.ID, string(match.Kind), string(match.Manager), match.ExternalID, match.Confidence, data); err != nil {
		logger.Error().Err(err).Int64("id", req.ID).Msg("Failed to persist classification")
	}

	logger.Info().
		Int64("id", req.ID).
		Str("title", req.Title).
		Str("match", match.Title).
		Str("service", string(match.Manager)).
		Float64("confidence", match.Confidence).
		Msg("Request classified")

	return match
}

func (p *Processor) routeMovie(ctx context.Context, req *requests.Request, match *classifier.Candidate, logger zerolog.Logger) string {
	tmdbID, err := strconv.Atoi(match.ExternalID)
	if err != nil || tmdbID <= 0 {
		logger.Warn().Int64("id", req.ID).Str("externalID", match.ExternalID).Msg("Movie match has no usable identifier")
		return requests.StatusFailedMissingExternalID
	}

	if !p.movies.AddMovie(ctx, tmdbID, match.Title) {
		return requests.StatusFailedRadarr
	}
	return requests.StatusSentToRadarr
}

// routeSeries requires a TVDB identifier. When classification could only
// store the TMDB fallback ID, it attempts one secondary resolution before
// giving up.
func (p *Processor) routeSeries(ctx context.Context, req *requests.Request, match *classifier.Candidate, logger zerolog.Logger) string {
	tvdbID := p.resolveTVDBID(ctx, req, match, logger)
	if tvdbID <= 0 {
		return requests.StatusFailedMissingExternalID
	}

	if !p.tv.AddSeries(ctx, tvdbID, match.Title) {
		return requests.StatusFailedSonarr
	}
	return requests.StatusSentToSonarr
}

func (p *Processor) resolveTVDBID(ctx context.Context, req *requests.Request, match *classifier.Candidate, logger zerolog.Logger) int {
	externalID, err := strconv.Atoi(match.ExternalID)
	if err != nil || externalID <= 0 {
		externalID = 0
	}

	tmdbFallback := match.Extra["tmdb_id"]
	if externalID > 0 && match.ExternalID != tmdbFallback {
		// The stored identifier is already the TVDB one.
		return externalID
	}

	tmdbID, err := strconv.Atoi(tmdbFallback)
	if err != nil || tmdbID <= 0 {
		logger.Warn().Int64("id", req.ID).Msg("TV match has no identifier and no TMDB fallback")
		return 0
	}

	tvdbID, err := p.resolver.GetTVDBID(ctx, tmdbID)
	if err != nil || tvdbID <= 0 {
		logger.Warn().Err(err).Int64("id", req.ID).Int("tmdbID", tmdbID).Msg("Secondary TVDB resolution failed")
		return 0
	}

	// Persist the resolved identifier so a later retry skips this lookup.
	if err := p.store.SaveClassification(ctx, req.ID, string(match.Kind), string(match.Manager), strconv.Itoa(tvdbID), match.Confidence, req.ClassificationData); err != nil {
		logger.Error().Err(err).Int64("id", req.ID).Msg("Failed to persist resolved identifier")
	}

	logger.Info().Int64("id", req.ID).Int("tmdbID", tmdbID).Int("tvdbID", tvdbID).Msg("Resolved TVDB identifier")
	return tvdbID
}

// routeMusic adds by name; the identity ID is passed along when known but
// the music manager accepts name-only adds.
func (p *Processor) routeMusic(ctx context.Context, req *requests.Request, match *classifier.Candidate, logger zerolog.Logger) string {
	if !p.music.AddArtist(ctx, match.Title, match.ExternalID) {
		return requests.StatusFailedLidarr
	}
	return requests.StatusSentToLidarr
}

func (p *Processor) transition(ctx context.Context, id int64, status string, logger zerolog.Logger) {
	if err := p.store.UpdateStatus(ctx, id, status); err != nil {
		logger.Error().Err(err).Int64("id", id).Str("status", status).Msg("Failed to update request status")
	}
}
