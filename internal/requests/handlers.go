package requests

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/classifier"
)

// Classifier is the classification capability the handlers need for the
// preview endpoint.
type Classifier interface {
	Classify(ctx context.Context, query string, limit int) []classifier.Candidate
	HasAmbiguity(ctx context.Context, query string) bool
}

// Handler exposes the request store over HTTP.
type Handler struct {
	store      *Store
	classifier Classifier
	logger     zerolog.Logger
}

// NewHandler creates a new request handler.
func NewHandler(store *Store, clf Classifier, logger zerolog.Logger) *Handler {
	return &Handler{
		store:      store,
		classifier: clf,
		logger:     logger.With().Str("component", "requests-api").Logger(),
	}
}

// Register attaches the request routes to the given group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/requests", h.createRequest)
	g.GET("/requests", h.listRequests)
	g.GET("/requests/stats", h.getStats)
	g.GET("/requests/:id", h.getRequest)
	g.POST("/requests/:id/cancel", h.cancelRequest)
	g.POST("/requests/:id/reclassify", h.reclassifyRequest)
	g.GET("/classify", h.classifyPreview)
}

func (h *Handler) createRequest(c echo.Context) error {
	var body struct {
		Title    string   `json:"title"`
		UserID   string   `json:"user_id"`
		Priority Priority `json:"priority"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if body.Priority != "" && !ValidPriority(body.Priority) {
		return echo.NewHTTPError(http.StatusBadRequest, "priority must be Low, Medium or High")
	}

	req, err := h.store.Create(c.Request().Context(), body.UserID, body.Title, body.Priority)
	if err != nil {
		h.logger.Error().Err(err).Str("title", body.Title).Msg("Failed to create request")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create request")
	}

	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) listRequests(c echo.Context) error {
	filter := ListFilter{
		Status: c.QueryParam("status"),
		UserID: c.QueryParam("user_id"),
	}
	if limit := c.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		filter.Limit = n
	}

	result, err := h.store.List(c.Request().Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list requests")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list requests")
	}
	if result == nil {
		result = []Request{}
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) getRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	req, err := h.store.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "request not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get request")
	}

	return c.JSON(http.StatusOK, req)
}

func (h *Handler) cancelRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	switch err := h.store.Cancel(c.Request().Context(), id); {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "request not found")
	case errors.Is(err, ErrNotPending):
		return echo.NewHTTPError(http.StatusConflict, "only pending requests can be cancelled")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to cancel request")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) reclassifyRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	switch err := h.store.Reclassify(c.Request().Context(), id); {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "request not found")
	case errors.Is(err, ErrNotFailed):
		return echo.NewHTTPError(http.StatusConflict, "only failed requests can be reclassified")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reclassify request")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) getStats(c echo.Context) error {
	stats, err := h.store.Stats(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute request stats")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute stats")
	}
	return c.JSON(http.StatusOK, stats)
}

// classifyPreview runs classification without creating a request, so the UI
// can show ranked candidates and an ambiguity flag before submission.
func (h *Handler) classifyPreview(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	limit := 5
	if l := c.QueryParam("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	ctx := c.Request().Context()
	candidates := h.classifier.Classify(ctx, query, limit)
	if candidates == nil {
		candidates = []classifier.Candidate{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"query":      query,
		"candidates": candidates,
		"ambiguous":  h.classifier.HasAmbiguity(ctx, query),
	})
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	return id, nil
}
