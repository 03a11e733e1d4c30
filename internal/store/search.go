package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
	"github.com/google/uuid"
)

// CanonicalKey composes the cache-lookup key of spec.md §4.9: "search-type,
// source object-id, source unit-type, target object-id, target unit-type,
// method name, feature, sorted stopwords, freq basis, max distance,
// distance basis, min score".
func CanonicalKey(searchType SearchType, p SearchParams) string {
	stopwords := append([]string(nil), p.Method.Stopwords...)
	sort.Strings(stopwords)

	parts := []string{
		string(searchType),
		p.Source.TextID, string(p.Source.UnitType),
		p.Target.TextID, string(p.Target.UnitType),
		string(p.Method.Name), string(p.Method.Feature),
		strings.Join(stopwords, ","),
		string(p.Method.FreqBasis),
		strconv.Itoa(p.Method.MaxDistance),
		string(p.Method.DistanceBasis),
		strconv.FormatFloat(p.Method.MinScore, 'g', -1, 64),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// FindCachedSearch returns the id of a non-failed search with the same
// canonical key, if one exists (spec.md §4.9 "Cache lookup").
func (s *SQLiteStore) FindCachedSearch(ctx context.Context, cacheKey string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM searches WHERE cache_key = ? AND status != ? ORDER BY created_at ASC LIMIT 1`,
		cacheKey, string(SearchStatusFailed)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return id, true, nil
}

// SearchSource records one text's role ("source", "target", or "scope")
// in a search, so the deletion cascade of spec.md §4.9 can find every
// search referencing a text without parsing its params JSON.
type SearchSource struct {
	TextID string
	Role   string
}

// CreateSearch inserts a new Search in status "init", generating a UUID
// if sr.ID is empty (spec.md §3 "stable opaque identifier (UUID)").
func (s *SQLiteStore) CreateSearch(ctx context.Context, sr *Search, sources []SearchSource) error {
	if sr.ID == "" {
		sr.ID = uuid.NewString()
	}
	paramsJSON, err := json.Marshal(sr.Params)
	if err != nil {
		return tesserr.Internal("failed to marshal search params", err)
	}
	stagesJSON, err := json.Marshal(sr.Stages)
	if err != nil {
		return tesserr.Internal("failed to marshal search stages", err)
	}
	now := time.Now().UTC()
	sr.CreatedAt, sr.LastQueriedAt = now, now
	if sr.Status == "" {
		sr.Status = SearchStatusInit
	}
	cacheKey := CanonicalKey(sr.Type, sr.Params)

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO searches (id, results_id, search_type, params, cache_key, status, message, stages, max_score, last_queried_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sr.ID, sr.ResultsID, string(sr.Type), string(paramsJSON), cacheKey,
			string(sr.Status), sr.Message, string(stagesJSON), sr.MaxScore, sr.LastQueriedAt, sr.CreatedAt); err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		for _, src := range sources {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO search_sources (search_id, text_id, role) VALUES (?, ?, ?)`,
				sr.ID, src.TextID, src.Role); err != nil {
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
		}
		return nil
	})
}

// UpdateSearchStatus transitions a search's status (spec.md §4.9
// "init → running → done on success, any state → failed on error").
func (s *SQLiteStore) UpdateSearchStatus(ctx context.Context, id string, status SearchStatus, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE searches SET status = ?, message = ? WHERE id = ?`,
		string(status), message, id)
	if err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return tesserr.NotFound(tesserr.ErrCodeSearchNotFound, "search not found: "+id)
	}
	return nil
}

// UpdateSearchStages persists progress stages (spec.md §4.9 "Progress is
// reported as a list of stages with fractional completion").
func (s *SQLiteStore) UpdateSearchStages(ctx context.Context, id string, stages []ProgressStage) error {
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return tesserr.Internal("failed to marshal search stages", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE searches SET stages = ? WHERE id = ?`, string(stagesJSON), id)
	if err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return nil
}

// TouchSearch bumps last_queried_at — every stage boundary and every
// retrieval of a search's results must refresh this (spec.md §4.9,
// §10.3 "28-day sweep").
func (s *SQLiteStore) TouchSearch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE searches SET last_queried_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return nil
}

// SetSearchMaxScore records the highest raw score of a completed search,
// used by pkg/export's normalized-score view (spec.md §4.5, §6).
func (s *SQLiteStore) SetSearchMaxScore(ctx context.Context, id string, maxScore float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE searches SET max_score = ? WHERE id = ?`, maxScore, id)
	if err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return nil
}

// GetSearch fetches a search by id.
func (s *SQLiteStore) GetSearch(ctx context.Context, id string) (*Search, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, results_id, search_type, params, status, message, stages, max_score, last_queried_at, created_at
		FROM searches WHERE id = ?`, id)
	return scanSearch(row)
}

func scanSearch(row *sql.Row) (*Search, error) {
	var sr Search
	var searchType, paramsJSON, stagesJSON, resultsID sql.NullString
	err := row.Scan(&sr.ID, &resultsID, &searchType, &paramsJSON, &sr.Status, &sr.Message,
		&stagesJSON, &sr.MaxScore, &sr.LastQueriedAt, &sr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tesserr.NotFound(tesserr.ErrCodeSearchNotFound, "search not found")
	}
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	sr.ResultsID = resultsID.String
	sr.Type = SearchType(searchType.String)
	if err := json.Unmarshal([]byte(paramsJSON.String), &sr.Params); err != nil {
		return nil, tesserr.Internal("failed to unmarshal search params", err)
	}
	if err := json.Unmarshal([]byte(stagesJSON.String), &sr.Stages); err != nil {
		return nil, tesserr.Internal("failed to unmarshal search stages", err)
	}
	return &sr, nil
}

// SearchesByResultsID finds multitext searches keyed to a vanilla
// search's results-id (spec.md §4.9 deletion cascade).
func (s *SQLiteStore) SearchesByResultsID(ctx context.Context, resultsID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM searches WHERE results_id = ?`, resultsID)
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSearch removes a search and, if it is a vanilla search, any
// multitext search keyed to its results-id (spec.md §4.9 deletion
// cascade). Matches and multi-results cascade via ON DELETE CASCADE.
func (s *SQLiteStore) DeleteSearch(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return deleteSearchTx(ctx, tx, id)
	})
}

func deleteSearchTx(ctx context.Context, tx *sql.Tx, id string) error {
	var resultsID sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT results_id FROM searches WHERE id = ?`, id).Scan(&resultsID)
	if errors.Is(err, sql.ErrNoRows) {
		return tesserr.NotFound(tesserr.ErrCodeSearchNotFound, "search not found: "+id)
	}
	if err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}

	if resultsID.Valid && resultsID.String != "" {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM searches WHERE results_id = ?`, resultsID.String)
		if err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		var dependents []string
		for rows.Next() {
			var depID string
			if err := rows.Scan(&depID); err != nil {
				_ = rows.Close()
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
			dependents = append(dependents, depID)
		}
		_ = rows.Close()
		for _, depID := range dependents {
			if depID == id {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, depID); err != nil {
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM searches WHERE id = ?`, id); err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return nil
}

// SweepExpiredSearches garbage-collects searches whose last_queried_at
// is older than the retention window (spec.md §3 "28 days",
// SPEC_FULL.md §10.3). Returns the ids removed.
func (s *SQLiteStore) SweepExpiredSearches(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM searches WHERE last_queried_at < ?`, cutoff)
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()

	for _, id := range ids {
		if err := s.DeleteSearch(ctx, id); err != nil && tesserr.GetCode(err) != tesserr.ErrCodeSearchNotFound {
			return nil, err
		}
	}
	return ids, nil
}
