package store

import (
	"context"
	"database/sql"
	"encoding/json"

	tesserr "github.com/tesserae-go/tesserae/internal/errors"
)

// PutTextUnits atomically bulk-inserts the segmentation of a text
// (spec.md §4.2 "put_text_units"). Existing units of the same
// (text, unit-type) are replaced — reingesting a text requires prior
// deletion per spec.md §5, but a direct re-call of this method during
// the same ingest job (e.g. retry) must not duplicate rows.
func (s *SQLiteStore) PutTextUnits(ctx context.Context, textID string, unitType UnitType, units []Unit) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM units WHERE text_id = ? AND unit_type = ?`, textID, string(unitType)); err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO units (text_id, unit_type, ordinal, tags, snippet, tokens, features)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return tesserr.Wrap(tesserr.ErrCodeInternal, err)
		}
		defer stmt.Close()

		for _, u := range units {
			tagsJSON, err := json.Marshal(u.Tags)
			if err != nil {
				return tesserr.Internal("failed to marshal unit tags", err)
			}
			tokensJSON, err := json.Marshal(u.Tokens)
			if err != nil {
				return tesserr.Internal("failed to marshal unit tokens", err)
			}
			featuresJSON, err := json.Marshal(u.Features)
			if err != nil {
				return tesserr.Internal("failed to marshal unit features", err)
			}
			if _, err := stmt.ExecContext(ctx, textID, string(unitType), u.Ordinal,
				string(tagsJSON), u.Snippet, string(tokensJSON), string(featuresJSON)); err != nil {
				return tesserr.Wrap(tesserr.ErrCodeInternal, err)
			}
		}
		return nil
	})
}

// UnitsOf returns every unit of (text_id, unit_type) in ascending
// ordinal order (spec.md §4.2 "units_of").
func (s *SQLiteStore) UnitsOf(ctx context.Context, textID string, unitType UnitType) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text_id, unit_type, ordinal, tags, snippet, tokens, features
		FROM units WHERE text_id = ? AND unit_type = ? ORDER BY ordinal ASC`,
		textID, string(unitType))
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUnit fetches a single unit by id.
func (s *SQLiteStore) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text_id, unit_type, ordinal, tags, snippet, tokens, features
		FROM units WHERE id = ?`, id)

	var u Unit
	var unitType, tagsJSON, tokensJSON, featuresJSON string
	err := row.Scan(&u.ID, &u.TextID, &unitType, &u.Ordinal, &tagsJSON, &u.Snippet, &tokensJSON, &featuresJSON)
	if err == sql.ErrNoRows {
		return nil, tesserr.NotFound(tesserr.ErrCodeUnitNotFound, "unit not found")
	}
	if err != nil {
		return nil, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	u.UnitType = UnitType(unitType)
	if err := unmarshalUnitJSON(&u, tagsJSON, tokensJSON, featuresJSON); err != nil {
		return nil, err
	}
	return &u, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUnit(rows scannable) (Unit, error) {
	var u Unit
	var unitType, tagsJSON, tokensJSON, featuresJSON string
	if err := rows.Scan(&u.ID, &u.TextID, &unitType, &u.Ordinal, &tagsJSON, &u.Snippet, &tokensJSON, &featuresJSON); err != nil {
		return Unit{}, tesserr.Wrap(tesserr.ErrCodeInternal, err)
	}
	u.UnitType = UnitType(unitType)
	if err := unmarshalUnitJSON(&u, tagsJSON, tokensJSON, featuresJSON); err != nil {
		return Unit{}, err
	}
	return u, nil
}

func unmarshalUnitJSON(u *Unit, tagsJSON, tokensJSON, featuresJSON string) error {
	if err := json.Unmarshal([]byte(tagsJSON), &u.Tags); err != nil {
		return tesserr.Internal("failed to unmarshal unit tags", err)
	}
	if err := json.Unmarshal([]byte(tokensJSON), &u.Tokens); err != nil {
		return tesserr.Internal("failed to unmarshal unit tokens", err)
	}
	if err := json.Unmarshal([]byte(featuresJSON), &u.Features); err != nil {
		return tesserr.Internal("failed to unmarshal unit features", err)
	}
	return nil
}

// PositionsFeatures returns, for a unit and feature kind, the list of
// (position, feature-indices) pairs recorded at ingest (spec.md §4.2
// "positions_features").
func PositionsFeatures(u Unit, kind FeatureKind) []PositionFeatures {
	byPos := u.Features[kind]
	out := make([]PositionFeatures, 0, len(byPos))
	for _, pos := range u.Tokens {
		if idxs, ok := byPos[pos]; ok {
			out = append(out, PositionFeatures{Position: pos, Indices: idxs})
		}
	}
	return out
}

// PositionFeatures pairs a word position with the feature indices
// derived there for one feature kind.
type PositionFeatures struct {
	Position int
	Indices  []int
}
