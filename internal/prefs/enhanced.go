package prefs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/ueah/internal/canonical"
	"github.com/roach88/ueah/internal/store"
)

const favouritesUpdatedAtMeta = "favourites.updatedAt"

// EnhancedProfile stores the profile one field per row.
type EnhancedProfile struct {
	mu sync.Mutex
	db *store.Store
}

// NewEnhancedProfile creates a profile store over db.
func NewEnhancedProfile(db *store.Store) *EnhancedProfile {
	return &EnhancedProfile{db: db}
}

func (s *EnhancedProfile) All(ctx context.Context) (Profile, error) {
	fields, err := s.db.ProfileFields(ctx)
	if err != nil {
		return nil, err
	}
	return Profile(fields), nil
}

func (s *EnhancedProfile) Get(ctx context.Context, field string) (any, bool, error) {
	return s.db.ProfileField(ctx, field)
}

func (s *EnhancedProfile) Set(ctx context.Context, field string, value any) error {
	return persistErr("profile set", field, s.db.PutProfileField(ctx, field, value))
}

func (s *EnhancedProfile) Remove(ctx context.Context, field string) error {
	return persistErr("profile remove", field, s.db.DeleteProfileField(ctx, field))
}

func (s *EnhancedProfile) Clear(ctx context.Context) error {
	return persistErr("profile clear", "", s.db.ReplaceProfile(ctx, nil))
}

func (s *EnhancedProfile) Export(ctx context.Context) (Profile, error) {
	return s.All(ctx)
}

func (s *EnhancedProfile) Import(ctx context.Context, incoming Profile, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := normalizeProfile(incoming)
	if mode != ModeReplace {
		current, err := s.All(ctx)
		if err != nil {
			return persistErr("profile import", "", err)
		}
		next = MergeProfile(current, next)
	}
	return persistErr("profile import", "", s.db.ReplaceProfile(ctx, next))
}

// EnhancedFavourites stores one row per favourite.
type EnhancedFavourites struct {
	mu     sync.Mutex
	db     *store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewEnhancedFavourites creates a favourites store over db.
func NewEnhancedFavourites(db *store.Store, now func() time.Time, logger *slog.Logger) *EnhancedFavourites {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EnhancedFavourites{db: db, now: now, logger: logger}
}

func (s *EnhancedFavourites) All(ctx context.Context) ([]Favourite, error) {
	rows, err := s.db.Favourites(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Favourite, 0, len(rows))
	for _, r := range rows {
		var it Favourite
		if err := json.Unmarshal([]byte(r.Item), &it); err != nil {
			s.logger.Warn("skipping unreadable favourite", "key", r.Key, "error", err)
			continue
		}
		it.Key = r.Key
		items = append(items, it)
	}
	return items, nil
}

func (s *EnhancedFavourites) Get(ctx context.Context, key string) (Favourite, bool, error) {
	r, ok, err := s.db.Favourite(ctx, key)
	if err != nil || !ok {
		return Favourite{}, false, err
	}
	var it Favourite
	if err := json.Unmarshal([]byte(r.Item), &it); err != nil {
		return Favourite{}, false, nil
	}
	it.Key = r.Key
	return it, true, nil
}

func (s *EnhancedFavourites) Set(ctx context.Context, item Favourite) error {
	item = item.Normalized()
	if item.Key == "" {
		return ErrInvalidFavourite
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.AddedAt.IsZero() {
		if prev, ok, _ := s.Get(ctx, item.Key); ok {
			item.AddedAt = prev.AddedAt
		} else {
			item.AddedAt = At(s.now())
		}
	}
	data, err := canonical.Marshal(item)
	if err != nil {
		return persistErr("favourites set", item.Key, err)
	}
	if err := s.db.PutFavourite(ctx, item.Key, string(data)); err != nil {
		return persistErr("favourites set", item.Key, err)
	}
	return s.touch(ctx, "favourites set")
}

func (s *EnhancedFavourites) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteFavourite(ctx, key); err != nil {
		return persistErr("favourites remove", key, err)
	}
	return s.touch(ctx, "favourites remove")
}

func (s *EnhancedFavourites) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(ctx, "favourites clear", nil)
}

func (s *EnhancedFavourites) Export(ctx context.Context) (FavouritesExport, error) {
	items, err := s.All(ctx)
	if err != nil {
		return FavouritesExport{}, err
	}
	exp := FavouritesExport{SchemaVersion: SchemaVersion, Items: items}
	if raw, err := s.db.Meta(ctx, favouritesUpdatedAtMeta); err == nil && raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			exp.UpdatedAt = At(t)
		}
	}
	return exp, nil
}

func (s *EnhancedFavourites) Import(ctx context.Context, exp FavouritesExport, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == ModeReplace {
		return s.replace(ctx, "favourites import", ReplaceFavourites(exp.Items, s.now()))
	}
	current, err := s.All(ctx)
	if err != nil {
		return persistErr("favourites import", "", err)
	}
	return s.replace(ctx, "favourites import", MergeFavourites(current, exp.Items, s.now()))
}

func (s *EnhancedFavourites) replace(ctx context.Context, op string, items []Favourite) error {
	rows := make([]store.FavouriteRow, 0, len(items))
	for _, it := range items {
		data, err := canonical.Marshal(it)
		if err != nil {
			return persistErr(op, it.Key, err)
		}
		rows = append(rows, store.FavouriteRow{Key: it.Key, Item: string(data)})
	}
	if err := s.db.ReplaceFavourites(ctx, rows); err != nil {
		return persistErr(op, "", err)
	}
	return s.touch(ctx, op)
}

func (s *EnhancedFavourites) touch(ctx context.Context, op string) error {
	stamp := s.now().UTC().Format(time.RFC3339Nano)
	return persistErr(op, favouritesUpdatedAtMeta, s.db.SetMeta(ctx, favouritesUpdatedAtMeta, stamp))
}
