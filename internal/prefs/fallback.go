package prefs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/roach88/ueah/internal/canonical"
	"github.com/roach88/ueah/internal/kv"
)

// FallbackProfile keeps the profile as one JSON object under ProfileKey.
// A missing or corrupt value reads as an empty profile.
type FallbackProfile struct {
	mu      sync.Mutex
	storage kv.Storage
}

// NewFallbackProfile creates a profile store over storage.
func NewFallbackProfile(storage kv.Storage) *FallbackProfile {
	return &FallbackProfile{storage: storage}
}

func (s *FallbackProfile) load() Profile {
	raw, ok := s.storage.GetItem(ProfileKey)
	if !ok {
		return Profile{}
	}
	v, err := canonical.Decode([]byte(raw))
	if err != nil {
		return Profile{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Profile{}
	}
	return Profile(m)
}

func (s *FallbackProfile) save(op string, p Profile) error {
	data, err := canonical.Marshal(map[string]any(p))
	if err != nil {
		return persistErr(op, ProfileKey, err)
	}
	return persistErr(op, ProfileKey, s.storage.SetItem(ProfileKey, string(data)))
}

func (s *FallbackProfile) All(context.Context) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

func (s *FallbackProfile) Get(_ context.Context, field string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.load()[field]
	return v, ok, nil
}

func (s *FallbackProfile) Set(_ context.Context, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load()
	p[field] = normalizeValue(value)
	return s.save("profile set", p)
}

func (s *FallbackProfile) Remove(_ context.Context, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load()
	if _, ok := p[field]; !ok {
		return nil
	}
	delete(p, field)
	return s.save("profile remove", p)
}

func (s *FallbackProfile) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return persistErr("profile clear", ProfileKey, s.storage.RemoveItem(ProfileKey))
}

func (s *FallbackProfile) Export(ctx context.Context) (Profile, error) {
	return s.All(ctx)
}

func (s *FallbackProfile) Import(_ context.Context, incoming Profile, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := MergeProfile(Profile{}, normalizeProfile(incoming))
	if mode != ModeReplace {
		next = MergeProfile(s.load(), next)
	}
	return s.save("profile import", next)
}

// FallbackFavourites keeps favourites as a FavouritesExport under
// FavouritesKey. A missing or corrupt value reads as an empty list.
type FallbackFavourites struct {
	mu      sync.Mutex
	storage kv.Storage
	now     func() time.Time
}

// NewFallbackFavourites creates a favourites store over storage. A nil now
// uses time.Now.
func NewFallbackFavourites(storage kv.Storage, now func() time.Time) *FallbackFavourites {
	if now == nil {
		now = time.Now
	}
	return &FallbackFavourites{storage: storage, now: now}
}

func (s *FallbackFavourites) load() FavouritesExport {
	empty := FavouritesExport{SchemaVersion: SchemaVersion}
	raw, ok := s.storage.GetItem(FavouritesKey)
	if !ok {
		return empty
	}

	var exp FavouritesExport
	if err := json.Unmarshal([]byte(raw), &exp); err != nil {
		// Older builds stored a bare array of items.
		var items []Favourite
		if json.Unmarshal([]byte(raw), &items) != nil {
			return empty
		}
		exp = FavouritesExport{Items: items}
	}
	exp.SchemaVersion = SchemaVersion
	exp.Items = CleanFavourites(exp.Items)
	return exp
}

func (s *FallbackFavourites) save(op string, items []Favourite) error {
	exp := FavouritesExport{
		SchemaVersion: SchemaVersion,
		UpdatedAt:     At(s.now()),
		Items:         items,
	}
	if exp.Items == nil {
		exp.Items = []Favourite{}
	}
	data, err := json.Marshal(exp)
	if err != nil {
		return persistErr(op, FavouritesKey, err)
	}
	return persistErr(op, FavouritesKey, s.storage.SetItem(FavouritesKey, string(data)))
}

func (s *FallbackFavourites) All(context.Context) ([]Favourite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().Items, nil
}

func (s *FallbackFavourites) Get(_ context.Context, key string) (Favourite, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.load().Items
	if i := indexOf(items, key); i >= 0 {
		return items[i], true, nil
	}
	return Favourite{}, false, nil
}

func (s *FallbackFavourites) Set(_ context.Context, item Favourite) error {
	item = item.Normalized()
	if item.Key == "" {
		return ErrInvalidFavourite
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.load().Items
	return s.save("favourites set", MergeFavourites(items, []Favourite{item}, s.now()))
}

func (s *FallbackFavourites) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.load().Items
	i := indexOf(items, key)
	if i < 0 {
		return nil
	}
	items = append(items[:i], items[i+1:]...)
	return s.save("favourites remove", items)
}

func (s *FallbackFavourites) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return persistErr("favourites clear", FavouritesKey, s.storage.RemoveItem(FavouritesKey))
}

func (s *FallbackFavourites) Export(context.Context) (FavouritesExport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.load()
	if exp.Items == nil {
		exp.Items = []Favourite{}
	}
	return exp, nil
}

func (s *FallbackFavourites) Import(_ context.Context, exp FavouritesExport, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == ModeReplace {
		return s.save("favourites import", ReplaceFavourites(exp.Items, s.now()))
	}
	return s.save("favourites import", MergeFavourites(s.load().Items, exp.Items, s.now()))
}

// normalizeValue reduces v to the generic JSON model so stored values compare
// equal regardless of the Go types they were set with.
func normalizeValue(v any) any {
	data, err := canonical.Marshal(v)
	if err != nil {
		return v
	}
	out, err := canonical.Decode(data)
	if err != nil {
		return v
	}
	return out
}

func normalizeProfile(p Profile) Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = normalizeValue(v)
	}
	return out
}
