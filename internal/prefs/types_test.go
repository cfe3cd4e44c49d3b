package prefs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"", ModeMerge, false},
		{"merge", ModeMerge, false},
		{" Replace ", ModeReplace, false},
		{"append", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFavourite_Normalized(t *testing.T) {
	f := Favourite{Age: "4-7", Skill: "reading", Slug: "x"}.Normalized()
	assert.Equal(t, "4-7|reading|x", f.Key)

	explicit := Favourite{Key: " custom ", Age: "4-7", Skill: "reading", Slug: "x"}.Normalized()
	assert.Equal(t, "custom", explicit.Key)

	assert.False(t, Favourite{Age: "4-7", Slug: "x"}.Valid())
	assert.True(t, Favourite{Key: "k"}.Valid())
}

func TestFavourite_JSONKeepsUnknownFields(t *testing.T) {
	in := `{"key":"4-7|reading|x","title":"X","chips":["video",{"n":1}],"addedAt":"2024-03-01T10:00:00Z","rating":4.5}`

	var f Favourite
	require.NoError(t, json.Unmarshal([]byte(in), &f))
	assert.Equal(t, "4-7|reading|x", f.Key)
	assert.Equal(t, "X", f.Title)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), f.AddedAt.Time)
	assert.Contains(t, f.Extra, "chips")
	assert.Contains(t, f.Extra, "rating")

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"key":"4-7|reading|x","title":"X","chips":["video",{"n":1}],"addedAt":"2024-03-01T10:00:00.000Z","rating":4.5}`,
		string(out))
}

func TestFavourite_JSONWrongTypedKnownFieldGoesToExtra(t *testing.T) {
	var f Favourite
	require.NoError(t, json.Unmarshal([]byte(`{"key":"k","title":42}`), &f))
	assert.Equal(t, "", f.Title)
	assert.Equal(t, json.Number("42"), f.Extra["title"])

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"k","title":42}`, string(out))
}

func TestFavourite_JSONRejectsNonObject(t *testing.T) {
	var f Favourite
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &f))
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-03-01T10:00:00Z"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`"2024-03-01T12:00:00+02:00"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`1709287200000`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`"1709287200000"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{`null`, time.Time{}},
		{`"garbage"`, time.Time{}},
	}
	for _, tt := range tests {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(tt.in), &ts), tt.in)
		assert.True(t, tt.want.Equal(ts.Time), "%s: got %v", tt.in, ts.Time)
	}

	out, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
