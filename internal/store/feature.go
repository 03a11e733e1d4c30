package store

import (
	"context"
	"database/sql"
	"errors"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
)

// InternFeature returns the existing index for (language, kind, token),
// allocating the next dense index in that namespace if none exists
// (spec.md §4.1 "intern"). Callers (internal/feature) are responsible
// for serializing concurrent interns on the same (language, kind) pair;
// this method additionally relies on the UNIQUE(language, kind, token)
// index to resolve any race that slips through (spec.md §5).
func (s *SQLiteStore) InternFeature(ctx context.Context, language string, kind FeatureKind, token string) (int, error) {
	var idx int
	err := s.db.QueryRowContext(ctx,
		`SELECT idx FROM features WHERE language = ? AND kind = ? AND token = ?`,
		language, string(kind), token).Scan(&idx)
	if err == nil {
		return idx, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}

	return idx, s.WithTx(ctx, func(tx *sql.Tx) error {
		// Re-check inside the transaction: another writer may have
		// interned the same token between the lookup above and here.
		row := tx.QueryRowContext(ctx,
			`SELECT idx FROM features WHERE language = ? AND kind = ? AND token = ?`,
			language, string(kind), token)
		if scanErr := row.Scan(&idx); scanErr == nil {
			return nil
		} else if !errors.Is(scanErr, sql.ErrNoRows) {
			return tesserr.Wrap(tesserr.ErrCodeInternal, scanErr)
		}

		var next sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(idx) FROM features WHERE language = ? AND kind = ?`,
			language, string(kind)).Scan(&next); err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		idx = 0
		if next.Valid {
			idx = int(next.Int64) + 1
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO features (idx, language, kind, token) VALUES (?, ?, ?, ?)`,
			idx, language, string(kind), token); err != nil {
			return tesserr.Wrap(tesserr.ErrCodeDuplicateFeature, err)
		}
		return nil
	})
}

// LookupFeatureIndex returns the index for (language, kind, token), or a
// NotFound error (spec.md §4.1 "lookup_index").
func (s *SQLiteStore) LookupFeatureIndex(ctx context.Context, language string, kind FeatureKind, token string) (int, error) {
	var idx int
	err := s.db.QueryRowContext(ctx,
		`SELECT idx FROM features WHERE language = ? AND kind = ? AND token = ?`,
		language, string(kind), token).Scan(&idx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, tesserr.NotFound(tesserr.ErrCodeFeatureNotFound, "feature not registered: "+token)
	}
	if err != nil {
		return 0, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return idx, nil
}

// LookupFeatureToken returns the token for (language, kind, index) —
// spec.md §4.1 "inverse lookup_token".
func (s *SQLiteStore) LookupFeatureToken(ctx context.Context, language string, kind FeatureKind, index int) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM features WHERE language = ? AND kind = ? AND idx = ?`,
		language, string(kind), index).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", tesserr.NotFound(tesserr.ErrCodeFeatureNotFound, "feature index not registered")
	}
	if err != nil {
		return "", tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return token, nil
}

// IterFeatures returns every Feature of (language, kind) in ascending
// index order (spec.md §4.1 "iter_indices").
func (s *SQLiteStore) IterFeatures(ctx context.Context, language string, kind FeatureKind) ([]Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, token FROM features WHERE language = ? AND kind = ? ORDER BY idx ASC`,
		language, string(kind))
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(&f.Index, &f.Token); err != nil {
			return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		f.Language, f.Kind = language, kind
		out = append(out, f)
	}
	return out, rows.Err()
}

// IncrementFeatureCount adds n to the per-text occurrence count of a
// feature index (spec.md §4.1 "count_inc"). Negative counts are rejected
// (spec.md §7 "negative counts rejected").
func (s *SQLiteStore) IncrementFeatureCount(ctx context.Context, language string, kind FeatureKind, index int, textID string, n int) error {
	if n < 0 {
		return tesserr.New(tesserr.ErrCodeNegativeCount, "count_inc delta must be non-negative", nil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feature_counts (language, kind, idx, text_id, count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(language, kind, idx, text_id) DO UPDATE SET count = count + excluded.count`,
		language, string(kind), index, textID, n)
	if err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return nil
}

// FeatureCount returns the occurrence count of a feature index within a
// single text, and whether any row exists for it (spec.md §4.3 "a
// feature index with zero count in that text has undefined inverse
// frequency").
func (s *SQLiteStore) FeatureCount(ctx context.Context, language string, kind FeatureKind, index int, textID string) (int, bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM feature_counts WHERE language = ? AND kind = ? AND idx = ? AND text_id = ?`,
		language, string(kind), index, textID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return count, true, nil
}

// CorpusFeatureCounts returns, for every feature index of (language,
// kind), its total occurrence count summed across all texts — the basis
// for the Frequency Service's "corpus" mode (spec.md §4.3).
func (s *SQLiteStore) CorpusFeatureCounts(ctx context.Context, language string, kind FeatureKind) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, SUM(count) FROM feature_counts
		WHERE language = ? AND kind = ?
		GROUP BY idx`, language, string(kind))
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var idx, total int
		if err := rows.Scan(&idx, &total); err != nil {
			return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		out[idx] = total
	}
	return out, rows.Err()
}
