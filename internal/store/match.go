package store

import (
	"context"
	"database/sql"
	"encoding/json"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
)

// SaveMatches bulk-inserts the matches produced by one search run (spec.md
// §4.4 "Matcher Core" output). Assigns each Match's ID from the insert.
func (s *SQLiteStore) SaveMatches(ctx context.Context, searchID string, matches []Match) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO matches (search_id, source_unit_id, target_unit_id, source_tag, target_tag,
				source_snippet, target_snippet, matched_tokens, highlights, score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		defer stmt.Close()

		for i := range matches {
			m := &matches[i]
			tokensJSON, err := json.Marshal(m.MatchedTokens)
			if err != nil {
				return tesserr.Internal("failed to marshal matched tokens", err)
			}
			highlightsJSON, err := json.Marshal(m.Highlights)
			if err != nil {
				return tesserr.Internal("failed to marshal highlights", err)
			}
			res, err := stmt.ExecContext(ctx, searchID, m.SourceUnitID, m.TargetUnitID, m.SourceTag, m.TargetTag,
				m.SourceSnippet, m.TargetSnippet, string(tokensJSON), string(highlightsJSON), m.Score)
			if err != nil {
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
			m.SearchID = searchID
			m.ID = id
		}
		return nil
	})
}

// GetMatch fetches a single match by id.
func (s *SQLiteStore) GetMatch(ctx context.Context, id int64) (*Match, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, search_id, source_unit_id, target_unit_id, source_tag, target_tag,
			source_snippet, target_snippet, matched_tokens, highlights, score
		FROM matches WHERE id = ?`, id)
	return scanMatch(row)
}

func scanMatch(row *sql.Row) (*Match, error) {
	var m Match
	var tokensJSON, highlightsJSON string
	err := row.Scan(&m.ID, &m.SearchID, &m.SourceUnitID, &m.TargetUnitID, &m.SourceTag, &m.TargetTag,
		&m.SourceSnippet, &m.TargetSnippet, &tokensJSON, &highlightsJSON, &m.Score)
	if err == sql.ErrNoRows {
		return nil, tesserr.NotFound(tesserr.ErrCodeUnitNotFound, "match not found")
	}
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	if err := json.Unmarshal([]byte(tokensJSON), &m.MatchedTokens); err != nil {
		return nil, tesserr.Internal("failed to unmarshal matched tokens", err)
	}
	if err := json.Unmarshal([]byte(highlightsJSON), &m.Highlights); err != nil {
		return nil, tesserr.Internal("failed to unmarshal highlights", err)
	}
	return &m, nil
}

// sortColumn maps the paging contract's sort-by names (spec.md §6) to a
// SQL column. Defaults to score when the name is unrecognized.
func sortColumn(sortBy string) string {
	switch sortBy {
	case "source_tag":
		return "source_tag"
	case "target_tag":
		return "target_tag"
	case "score":
		return "score"
	default:
		return "score"
	}
}

// ListMatches returns one page of a search's matches, ordered and paged
// per spec.md §6's contract: sortBy selects the column, sortOrder is "asc"
// or "desc" ("ascending"/"descending" are accepted too), and ties are always broken by ascending (source_unit_id,
// target_unit_id) for a stable "natural order" across pages.
func (s *SQLiteStore) ListMatches(ctx context.Context, searchID, sortBy, sortOrder string, perPage, pageNumber int) ([]Match, int, error) {
	if perPage <= 0 {
		perPage = 100
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	order := "ASC"
	if sortOrder == "desc" || sortOrder == "descending" {
		order = "DESC"
	}
	col := sortColumn(sortBy)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE search_id = ?`, searchID).Scan(&total); err != nil {
		return nil, 0, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}

	query := `
		SELECT id, search_id, source_unit_id, target_unit_id, source_tag, target_tag,
			source_snippet, target_snippet, matched_tokens, highlights, score
		FROM matches WHERE search_id = ?
		ORDER BY ` + col + ` ` + order + `, source_unit_id ASC, target_unit_id ASC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, searchID, perPage, (pageNumber-1)*perPage)
	if err != nil {
		return nil, 0, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var tokensJSON, highlightsJSON string
		if err := rows.Scan(&m.ID, &m.SearchID, &m.SourceUnitID, &m.TargetUnitID, &m.SourceTag, &m.TargetTag,
			&m.SourceSnippet, &m.TargetSnippet, &tokensJSON, &highlightsJSON, &m.Score); err != nil {
			return nil, 0, tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		if err := json.Unmarshal([]byte(tokensJSON), &m.MatchedTokens); err != nil {
			return nil, 0, tesserr.Internal("failed to unmarshal matched tokens", err)
		}
		if err := json.Unmarshal([]byte(highlightsJSON), &m.Highlights); err != nil {
			return nil, 0, tesserr.Internal("failed to unmarshal highlights", err)
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// GetMaxScore returns the highest score among a search's matches, used to
// seed Search.MaxScore for the 0-10 normalized score view (spec.md §4.5,
// §6). Returns 0 if the search has no matches.
func (s *SQLiteStore) GetMaxScore(ctx context.Context, searchID string) (float64, error) {
	var max sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(score) FROM matches WHERE search_id = ?`, searchID).Scan(&max)
	if err != nil {
		return 0, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return max.Float64, nil
}

// SaveMultiResults bulk-inserts the multitext annotations attached to a
// match (spec.md §4.6 "Multitext Engine" output).
func (s *SQLiteStore) SaveMultiResults(ctx context.Context, matchID int64, results []MultiResult) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO multi_results (match_id, feature_a, feature_b, units) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		defer stmt.Close()

		for i := range results {
			r := &results[i]
			unitsJSON, err := json.Marshal(r.Units)
			if err != nil {
				return tesserr.Internal("failed to marshal multi-result units", err)
			}
			res, err := stmt.ExecContext(ctx, matchID, r.FeatureA, r.FeatureB, string(unitsJSON))
			if err != nil {
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
			r.MatchID = matchID
			r.ID = id
		}
		return nil
	})
}

// GetMultiResultsForMatch returns every multitext annotation of a match.
func (s *SQLiteStore) GetMultiResultsForMatch(ctx context.Context, matchID int64) ([]MultiResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, match_id, feature_a, feature_b, units FROM multi_results WHERE match_id = ?`, matchID)
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	defer rows.Close()

	var out []MultiResult
	for rows.Next() {
		var r MultiResult
		var unitsJSON string
		if err := rows.Scan(&r.ID, &r.MatchID, &r.FeatureA, &r.FeatureB, &unitsJSON); err != nil {
			return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		if err := json.Unmarshal([]byte(unitsJSON), &r.Units); err != nil {
			return nil, tesserr.Internal("failed to unmarshal multi-result units", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
