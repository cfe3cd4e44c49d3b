package store

import (
	"context"
	"database/sql"
	"fmt"
)

// FavouriteRow is one stored favourite. Item is the canonical JSON of the
// whole favourite, unknown fields included.
type FavouriteRow struct {
	Key  string
	Item string
	Rank int64
}

// Favourites returns all favourites, most recently added first.
func (s *Store) Favourites(ctx context.Context) ([]FavouriteRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, item, rank FROM favourites
		ORDER BY rank DESC, key ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("read favourites: %w", err)
	}
	defer rows.Close()

	var out []FavouriteRow
	for rows.Next() {
		var r FavouriteRow
		if err := rows.Scan(&r.Key, &r.Item, &r.Rank); err != nil {
			return nil, fmt.Errorf("read favourites: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read favourites: %w", err)
	}
	return out, nil
}

// Favourite returns one favourite by key.
func (s *Store) Favourite(ctx context.Context, key string) (FavouriteRow, bool, error) {
	r := FavouriteRow{Key: key}
	err := s.db.QueryRowContext(ctx, `SELECT item, rank FROM favourites WHERE key = ?`, key).Scan(&r.Item, &r.Rank)
	if err == sql.ErrNoRows {
		return FavouriteRow{}, false, nil
	}
	if err != nil {
		return FavouriteRow{}, false, fmt.Errorf("read favourite %s: %w", key, err)
	}
	return r, true, nil
}

// PutFavourite upserts a favourite. A new key lists first; an existing key
// keeps its position.
func (s *Store) PutFavourite(ctx context.Context, key, item string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var rank int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(rank), 0) + 1 FROM favourites`).Scan(&rank); err != nil {
			return fmt.Errorf("write favourite %s: %w", key, err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO favourites (key, item, rank) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET item = excluded.item
		`, key, item, rank)
		if err != nil {
			return fmt.Errorf("write favourite %s: %w", key, err)
		}
		return nil
	})
}

// DeleteFavourite removes a favourite. Removing an absent key is a no-op.
func (s *Store) DeleteFavourite(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM favourites WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete favourite %s: %w", key, err)
	}
	return nil
}

// ReplaceFavourites atomically swaps every favourite for rows, given in
// display order (first row lists first). Row ranks are reassigned.
func (s *Store) ReplaceFavourites(ctx context.Context, rows []FavouriteRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM favourites`); err != nil {
			return fmt.Errorf("replace favourites: %w", err)
		}
		n := int64(len(rows))
		for i, r := range rows {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO favourites (key, item, rank) VALUES (?, ?, ?)`,
				r.Key, r.Item, n-int64(i),
			); err != nil {
				return fmt.Errorf("replace favourites: %s: %w", r.Key, err)
			}
		}
		return nil
	})
}
