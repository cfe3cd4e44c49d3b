// Package prefs holds the learner's local state: a free-form profile and a
// keyed list of favourites.
//
// Each store has one small interface and two implementations: the enhanced
// tier over SQLite and the fallback tier over a key/value storage. Select
// picks a tier once at startup; everything downstream receives the chosen
// stores and never probes again.
package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Keys used by the fallback tier.
const (
	ProfileKey    = "ueah.profile.v1"
	FavouritesKey = "ueah.favourites.v1"
)

// SchemaVersion is the favourites export schema version written by this
// package.
const SchemaVersion = 1

// Mode selects how an import combines with existing state.
type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

// ParseMode parses an import mode. The empty string means merge.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("unknown import mode %q (want merge or replace)", s)
	}
}

// Profile is a free-form JSON object. Documented fields are email, name,
// targetScore and resultsByAge; any other field is kept as is.
type Profile map[string]any

// ProfileStore persists the profile.
type ProfileStore interface {
	All(ctx context.Context) (Profile, error)
	Get(ctx context.Context, field string) (any, bool, error)
	Set(ctx context.Context, field string, value any) error
	Remove(ctx context.Context, field string) error
	Clear(ctx context.Context) error
	Export(ctx context.Context) (Profile, error)
	Import(ctx context.Context, p Profile, mode Mode) error
}

// FavouritesStore persists favourites. All returns most recently added first.
type FavouritesStore interface {
	All(ctx context.Context) ([]Favourite, error)
	Get(ctx context.Context, key string) (Favourite, bool, error)
	Set(ctx context.Context, item Favourite) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Export(ctx context.Context) (FavouritesExport, error)
	Import(ctx context.Context, exp FavouritesExport, mode Mode) error
}

// FavouritesExport is the favourites section of a sync document and the
// value stored under FavouritesKey.
type FavouritesExport struct {
	SchemaVersion int         `json:"schemaVersion"`
	UpdatedAt     Timestamp   `json:"updatedAt"`
	Items         []Favourite `json:"items"`
}

// Favourite is one saved resource. Fields the application does not know are
// kept in Extra so they survive export and import.
type Favourite struct {
	Key         string
	Age         string
	Skill       string
	Slug        string
	Title       string
	Description string
	Link        string
	AddedAt     Timestamp
	Extra       map[string]any
}

// DeriveKey builds the default favourite key.
func DeriveKey(age, skill, slug string) string {
	return age + "|" + skill + "|" + slug
}

// Normalized fills in a missing key from age, skill and slug.
func (f Favourite) Normalized() Favourite {
	f.Key = strings.TrimSpace(f.Key)
	if f.Key == "" && f.Age != "" && f.Skill != "" && f.Slug != "" {
		f.Key = DeriveKey(f.Age, f.Skill, f.Slug)
	}
	return f
}

// Valid reports whether the favourite can be stored.
func (f Favourite) Valid() bool {
	return f.Normalized().Key != ""
}

var favouriteFields = []string{"key", "age", "skill", "slug", "title", "description", "link", "addedAt"}

func (f *Favourite) stringFields() map[string]*string {
	return map[string]*string{
		"key":         &f.Key,
		"age":         &f.Age,
		"skill":       &f.Skill,
		"slug":        &f.Slug,
		"title":       &f.Title,
		"description": &f.Description,
		"link":        &f.Link,
	}
}

// MarshalJSON writes known fields over Extra. Empty known fields are
// omitted.
func (f Favourite) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Extra)+len(favouriteFields))
	for k, v := range f.Extra {
		out[k] = v
	}
	for name, p := range f.stringFields() {
		if *p != "" {
			out[name] = *p
		} else {
			delete(out, name)
		}
	}
	if !f.AddedAt.IsZero() {
		out["addedAt"] = f.AddedAt
	} else {
		delete(out, "addedAt")
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads known string fields and keeps everything else in
// Extra, including known fields that arrive with an unexpected type.
func (f *Favourite) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("favourite: expected object")
	}

	*f = Favourite{}
	for name, p := range f.stringFields() {
		if s, ok := raw[name].(string); ok {
			*p = s
			delete(raw, name)
		}
	}
	if v, ok := raw["addedAt"]; ok {
		if ts, ok := parseTimestamp(v); ok {
			f.AddedAt = ts
			delete(raw, "addedAt")
		}
	}
	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}

// Timestamp is a point in time that reads RFC 3339 strings or epoch
// milliseconds and writes RFC 3339 in UTC.
type Timestamp struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// MarshalJSON writes RFC 3339 with millisecond precision, or null when zero.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// UnmarshalJSON accepts a string, a number of milliseconds or null.
// Anything unparseable leaves the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	ts, _ := parseTimestamp(v)
	*t = ts
	return nil
}

func parseTimestamp(v any) (Timestamp, bool) {
	switch val := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, val); err == nil {
				return At(parsed), true
			}
		}
		if ms, err := strconv.ParseInt(val, 10, 64); err == nil {
			return At(time.UnixMilli(ms)), true
		}
	case json.Number:
		if ms, err := val.Int64(); err == nil {
			return At(time.UnixMilli(ms)), true
		}
		if f, err := val.Float64(); err == nil {
			return At(time.UnixMilli(int64(f))), true
		}
	case float64:
		return At(time.UnixMilli(int64(val))), true
	}
	return Timestamp{}, false
}
