package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
)

// SaveText inserts a new Text row in status "init". Returns a Conflict
// error if a text with the same content hash already exists (spec.md §7
// "attempt to ingest an already-ingested text").
func (s *SQLiteStore) SaveText(ctx context.Context, t *Text) error {
	unitTypesJSON, err := json.Marshal(t.UnitTypes)
	if err != nil {
		return tesserr.Internal("failed to marshal unit types", err)
	}

	existing, err := s.GetTextByHash(ctx, t.Hash)
	if err != nil && tesserr.GetCode(err) != tesserr.ErrCodeTextNotFound {
		return err
	}
	if existing != nil {
		return tesserr.Conflict(tesserr.ErrCodeTextAlreadyIngested,
			"text with hash "+t.Hash+" is already ingested as "+existing.ID)
	}

	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Status == "" {
		t.Status = TextStatusInit
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO texts (id, language, author, title, year, is_prose, hash, path, unit_types, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Language, t.Author, t.Title, t.Year, boolToInt(t.IsProse), t.Hash, t.Path,
		string(unitTypesJSON), string(t.Status), t.Message, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	return nil
}

// UpdateTextStatus transitions a text's ingestion status and message
// (spec.md §3 "ingestion status ... with a human message").
func (s *SQLiteStore) UpdateTextStatus(ctx context.Context, id string, status TextStatus, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE texts SET status = ?, message = ?, updated_at = ? WHERE id = ?`,
		string(status), message, time.Now().UTC(), id)
	if err != nil {
		return tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return tesserr.NotFound(tesserr.ErrCodeTextNotFound, "text not found: "+id)
	}
	return nil
}

// GetText fetches a text by id.
func (s *SQLiteStore) GetText(ctx context.Context, id string) (*Text, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, language, author, title, year, is_prose, hash, path, unit_types, status, message, created_at, updated_at
		FROM texts WHERE id = ?`, id)
	return scanText(row)
}

// GetTextByHash returns the text with the given content hash, or a
// NotFound error if none exists.
func (s *SQLiteStore) GetTextByHash(ctx context.Context, hash string) (*Text, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, language, author, title, year, is_prose, hash, path, unit_types, status, message, created_at, updated_at
		FROM texts WHERE hash = ?`, hash)
	return scanText(row)
}

func scanText(row *sql.Row) (*Text, error) {
	var t Text
	var unitTypesJSON string
	var isProse int
	err := row.Scan(&t.ID, &t.Language, &t.Author, &t.Title, &t.Year, &isProse, &t.Hash, &t.Path,
		&unitTypesJSON, &t.Status, &t.Message, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tesserr.NotFound(tesserr.ErrCodeTextNotFound, "text not found")
	}
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	t.IsProse = isProse != 0
	if err := json.Unmarshal([]byte(unitTypesJSON), &t.UnitTypes); err != nil {
		return nil, tesserr.Internal("failed to unmarshal unit types", err)
	}
	return &t, nil
}

// DeleteText removes a text and every dependent row (units, feature
// counts, referencing searches/matches, and leaves the bigram shard
// cleanup to the caller, since that lives outside SQLite) — spec.md §3
// "Deletion of a text deletes all its tokens, units, bigram-store
// shards, frequency-map entries and searches that reference it."
func (s *SQLiteStore) DeleteText(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var searchIDs []string
		rows, err := tx.QueryContext(ctx, `SELECT DISTINCT search_id FROM search_sources WHERE text_id = ?`, id)
		if err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		for rows.Next() {
			var sid string
			if err := rows.Scan(&sid); err != nil {
				_ = rows.Close()
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
			searchIDs = append(searchIDs, sid)
		}
		_ = rows.Close()

		for _, sid := range searchIDs {
			if err := deleteSearchTx(ctx, tx, sid); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM feature_counts WHERE text_id = ?`, id); err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE text_id = ?`, id); err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM texts WHERE id = ?`, id)
		if err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return tesserr.NotFound(tesserr.ErrCodeTextNotFound, "text not found: "+id)
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
