package requests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound   = errors.New("request not found")
	ErrNotPending = errors.New("request is not pending")
	ErrNotFailed  = errors.New("request is not in a failed state")
)

// Store is the sqlite-backed persistence boundary for requests.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a new request store.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "requests").Logger(),
	}
}

const requestColumns = `id, user_id, title, media_type, status, priority, arr_service,
	external_id, confidence_score, classification_data, requested_at, last_status_update`

// Create inserts a new pending request.
func (s *Store) Create(ctx context.Context, userID, title string, priority Priority) (*Request, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (user_id, title, status, priority, requested_at, last_status_update)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, title, StatusPending, string(priority), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert id: %w", err)
	}

	s.logger.Info().Int64("id", id).Str("title", title).Msg("Request created")
	return s.Get(ctx, id)
}

// Get returns one request by ID.
func (s *Store) Get(ctx context.Context, id int64) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	return scanRequest(row)
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Status string
	UserID string
	Limit  int
}

// List returns requests matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY requested_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// GetPending returns all pending requests in insertion order.
func (s *Store) GetPending(ctx context.Context) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE status = ? ORDER BY id ASC`,
		StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// SaveClassification persists the classifier's decision for a request.
// Called before downstream routing so classification work survives a
// failed manager call.
func (s *Store) SaveClassification(ctx context.Context, id int64, mediaType, arrService, externalID string, confidence float64, data []byte) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET media_type = ?, arr_service = ?, external_id = ?, confidence_score = ?,
		    classification_data = ?, last_status_update = ?
		WHERE id = ?`,
		mediaType, arrService, externalID, confidence, string(data), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	return requireRowAffected(res)
}

// UpdateStatus transitions a request to the given status.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests SET status = ?, last_status_update = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	s.logger.Debug().Int64("id", id).Str("status", status).Msg("Request status updated")
	return requireRowAffected(res)
}

// Cancel marks a pending request as cancelled. Only pending requests can be
// cancelled; anything else returns ErrNotPending.
func (s *Store) Cancel(ctx context.Context, id int64) error {
	req, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrNotPending
	}
	return s.UpdateStatus(ctx, id, StatusCancelled)
}

// Reclassify resets a failed request back to Pending, clearing its
// classification fields so the processor classifies it from scratch.
func (s *Store) Reclassify(ctx context.Context, id int64) error {
	req, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !IsFailed(req.Status) {
		return ErrNotFailed
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, media_type = '', arr_service = '', external_id = '',
		    confidence_score = 0, classification_data = '', last_status_update = ?
		WHERE id = ?`,
		StatusPending, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to reclassify request: %w", err)
	}

	s.logger.Info().Int64("id", id).Str("previousStatus", req.Status).Msg("Request reset for reclassification")
	return nil
}

// Stats aggregates request counts by status and routed service, plus the
// average confidence over classified requests.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:  make(map[string]int64),
		ByService: make(map[string]int64),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	svcRows, err := s.db.QueryContext(ctx,
		`SELECT arr_service, COUNT(*) FROM requests WHERE arr_service != '' GROUP BY arr_service`)
	if err != nil {
		return nil, fmt.Errorf("failed to query service counts: %w", err)
	}
	defer svcRows.Close()
	for svcRows.Next() {
		var service string
		var count int64
		if err := svcRows.Scan(&service, &count); err != nil {
			return nil, fmt.Errorf("failed to scan service count: %w", err)
		}
		stats.ByService[service] = count
	}
	if err := svcRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service counts: %w", err)
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT AVG(confidence_score) FROM requests WHERE arr_service != ''`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to query average confidence: %w", err)
	}
	if avg.Valid {
		stats.AvgConfidence = avg.Float64
	}

	return stats, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var r Request
	var classificationData string
	err := row.Scan(
		&r.ID, &r.UserID, &r.Title, &r.MediaType, &r.Status, &r.Priority,
		&r.ArrService, &r.ExternalID, &r.ConfidenceScore, &classificationData,
		&r.RequestedAt, &r.LastStatusUpdate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	if classificationData != "" {
		r.ClassificationData = []byte(classificationData)
	}
	return &r, nil
}

func scanRequests(rows *sql.Rows) ([]Request, error) {
	var result []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return result, nil
}
