package prefs

import "time"

// MergeProfile returns base overlaid with incoming. Incoming wins per field;
// when both sides hold an object the merge recurses into it. Neither input
// is modified.
func MergeProfile(base, incoming Profile) Profile {
	return Profile(mergeObjects(base, incoming))
}

func mergeObjects(base, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(incoming))
	for k, v := range base {
		out[k] = deepCopy(v)
	}
	for k, v := range incoming {
		if bm, ok := out[k].(map[string]any); ok {
			if im, ok := asObject(v); ok {
				out[k] = mergeObjects(bm, im)
				continue
			}
		}
		out[k] = deepCopy(v)
	}
	return out
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Profile:
		return m, true
	}
	return nil, false
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopy(e)
		}
		return out
	case Profile:
		return deepCopy(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

// CleanFavourites normalizes keys, drops items that have no key and keeps
// the last occurrence of a duplicate key at the position of the first.
func CleanFavourites(items []Favourite) []Favourite {
	out := make([]Favourite, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		it = it.Normalized()
		if it.Key == "" {
			continue
		}
		if i, ok := index[it.Key]; ok {
			out[i] = it
			continue
		}
		index[it.Key] = len(out)
		out = append(out, it)
	}
	return out
}

// MergeFavourites is a key-wise union where incoming wins. Existing keys are
// replaced in place; keys new to existing are placed first, in incoming
// order. An incoming item without a timestamp keeps the existing one, or
// gets now when it is new.
func MergeFavourites(existing, incoming []Favourite, now time.Time) []Favourite {
	existing = CleanFavourites(existing)
	incoming = CleanFavourites(incoming)

	pos := make(map[string]int, len(existing))
	for i, it := range existing {
		pos[it.Key] = i
	}

	merged := make([]Favourite, len(existing))
	copy(merged, existing)

	var added []Favourite
	for _, it := range incoming {
		if i, ok := pos[it.Key]; ok {
			if it.AddedAt.IsZero() {
				it.AddedAt = merged[i].AddedAt
			}
			merged[i] = it
			continue
		}
		if it.AddedAt.IsZero() {
			it.AddedAt = At(now)
		}
		added = append(added, it)
	}
	return append(added, merged...)
}

// ReplaceFavourites is the replace-mode counterpart of MergeFavourites.
func ReplaceFavourites(incoming []Favourite, now time.Time) []Favourite {
	items := CleanFavourites(incoming)
	for i := range items {
		if items[i].AddedAt.IsZero() {
			items[i].AddedAt = At(now)
		}
	}
	return items
}

func indexOf(items []Favourite, key string) int {
	for i, it := range items {
		if it.Key == key {
			return i
		}
	}
	return -1
}
