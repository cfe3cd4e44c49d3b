package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ueah/internal/canonical"
)

// ProfileFields returns every stored profile field as decoded JSON.
func (s *Store) ProfileFields(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field, value FROM profile_fields
		ORDER BY field ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var field, raw string
		if err := rows.Scan(&field, &raw); err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
		v, err := canonical.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("read profile field %s: %w", field, err)
		}
		out[field] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return out, nil
}

// ProfileField returns one field. The bool is false when the field is unset.
func (s *Store) ProfileField(ctx context.Context, field string) (any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM profile_fields WHERE field = ?`, field).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read profile field %s: %w", field, err)
	}
	v, err := canonical.Decode([]byte(raw))
	if err != nil {
		return nil, false, fmt.Errorf("read profile field %s: %w", field, err)
	}
	return v, true, nil
}

// PutProfileField upserts one field.
func (s *Store) PutProfileField(ctx context.Context, field string, value any) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return putProfileField(ctx, tx, field, value)
	})
}

// DeleteProfileField removes one field. Removing an unset field is a no-op.
func (s *Store) DeleteProfileField(ctx context.Context, field string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profile_fields WHERE field = ?`, field); err != nil {
		return fmt.Errorf("delete profile field %s: %w", field, err)
	}
	return nil
}

// ReplaceProfile atomically swaps the whole profile for fields.
func (s *Store) ReplaceProfile(ctx context.Context, fields map[string]any) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM profile_fields`); err != nil {
			return fmt.Errorf("replace profile: %w", err)
		}
		for _, field := range canonical.SortedKeys(fields) {
			if err := putProfileField(ctx, tx, field, fields[field]); err != nil {
				return err
			}
		}
		return nil
	})
}

func putProfileField(ctx context.Context, tx *sql.Tx, field string, value any) error {
	raw, err := canonical.Marshal(value)
	if err != nil {
		return fmt.Errorf("write profile field %s: %w", field, err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(updated_seq), 0) + 1 FROM profile_fields`).Scan(&seq); err != nil {
		return fmt.Errorf("write profile field %s: %w", field, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profile_fields (field, value, updated_seq) VALUES (?, ?, ?)
		ON CONFLICT(field) DO UPDATE SET value = excluded.value, updated_seq = excluded.updated_seq
	`, field, string(raw), seq)
	if err != nil {
		return fmt.Errorf("write profile field %s: %w", field, err)
	}
	return nil
}
