package prefs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var mergeNow = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestMergeProfile_Recursive(t *testing.T) {
	base := Profile{
		"name":         "Ana",
		"email":        "ana@example.org",
		"resultsByAge": map[string]any{"8-10": map[string]any{"score": 60, "level": "A2"}},
	}
	incoming := Profile{
		"name":         "Ana B",
		"resultsByAge": map[string]any{"8-10": map[string]any{"score": 75}, "11-13": map[string]any{"score": 40}},
	}

	got := MergeProfile(base, incoming)
	assert.Equal(t, Profile{
		"name":  "Ana B",
		"email": "ana@example.org",
		"resultsByAge": map[string]any{
			"8-10":  map[string]any{"score": 75, "level": "A2"},
			"11-13": map[string]any{"score": 40},
		},
	}, got)

	// Inputs are untouched.
	assert.Equal(t, "Ana", base["name"])
	assert.Equal(t, 60, base["resultsByAge"].(map[string]any)["8-10"].(map[string]any)["score"])
}

func TestMergeProfile_ScalarOverwritesObject(t *testing.T) {
	got := MergeProfile(Profile{"x": map[string]any{"a": 1}}, Profile{"x": "flat"})
	assert.Equal(t, Profile{"x": "flat"}, got)
}

func TestMergeFavourites_IncomingWinsInPlace(t *testing.T) {
	existing := []Favourite{
		{Key: "a", Title: "A", AddedAt: At(mergeNow.Add(-time.Hour))},
		{Key: "K", Title: "old"},
		{Key: "c", Title: "C"},
	}
	incoming := []Favourite{
		{Key: "K", Title: "new"},
		{Key: "n1", Title: "N1"},
		{Key: "n2", Title: "N2"},
	}

	got := MergeFavourites(existing, incoming, mergeNow)
	assert.Equal(t, []string{"n1", "n2", "a", "K", "c"}, keys(got))
	assert.Equal(t, "new", got[3].Title)
	assert.Equal(t, mergeNow, got[0].AddedAt.Time, "new items are stamped")
}

func TestMergeFavourites_KeepsExistingTimestamp(t *testing.T) {
	added := At(mergeNow.Add(-24 * time.Hour))
	got := MergeFavourites([]Favourite{{Key: "k", AddedAt: added}}, []Favourite{{Key: "k", Title: "T"}}, mergeNow)
	assert.Equal(t, added, got[0].AddedAt)
}

func TestMergeFavourites_DerivesKeysAndDropsInvalid(t *testing.T) {
	got := MergeFavourites(nil, []Favourite{
		{Age: "4-7", Skill: "reading", Slug: "x", Title: "X"},
		{Title: "no key"},
	}, mergeNow)
	assert.Equal(t, []string{"4-7|reading|x"}, keys(got))
}

func TestCleanFavourites_LastDuplicateWinsAtFirstPosition(t *testing.T) {
	got := CleanFavourites([]Favourite{
		{Key: "a", Title: "1"},
		{Key: "b"},
		{Key: "a", Title: "2"},
	})
	assert.Equal(t, []string{"a", "b"}, keys(got))
	assert.Equal(t, "2", got[0].Title)
}

func TestReplaceFavourites(t *testing.T) {
	got := ReplaceFavourites([]Favourite{{Key: "x"}, {Key: "x"}, {Key: "y"}}, mergeNow)
	assert.Equal(t, []string{"x", "y"}, keys(got))
	assert.Equal(t, mergeNow, got[1].AddedAt.Time)
}

func keys(items []Favourite) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}
