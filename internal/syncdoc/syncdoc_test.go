package syncdoc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ueah/internal/kv"
	"github.com/roach88/ueah/internal/prefs"
	"github.com/roach88/ueah/internal/testutil"
)

type fixture struct {
	storage    *kv.MemoryStorage
	profile    prefs.ProfileStore
	favourites *prefs.Favourites
	engine     *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewStepClock(time.Time{}, 0)
	s := kv.NewMemoryStorage()
	profile := prefs.NewFallbackProfile(s)
	favourites := prefs.NewFavourites(prefs.NewFallbackFavourites(s, clock.Now))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		storage:    s,
		profile:    profile,
		favourites: favourites,
		engine:     New(profile, favourites, testutil.NewStepClock(time.Time{}, 0).Now, logger),
	}
}

func (f *fixture) snapshot(t *testing.T) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, k := range f.storage.Keys() {
		v, _ := f.storage.GetItem(k)
		out[k] = v
	}
	return out
}

func TestImport_MergeIntoEmptyStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.engine.ImportText(ctx, []byte(`{
		"app": "UEAH", "type": "sync", "schemaVersion": 1,
		"favourites": {"items": [{"key": "4-7|reading|x", "title": "X"}]}
	}`), Options{Mode: prefs.ModeMerge})

	require.True(t, res.OK, "%+v", res)
	assert.True(t, res.Favourites.Present)
	assert.False(t, res.Profile.Present)

	items, err := f.favourites.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "4-7|reading|x", items[0].Key)
	assert.Equal(t, "X", items[0].Title)
}

func TestImport_RejectedDocumentsMutateNothing(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		reason Reason
	}{
		{"malformed", `{"app": "UEAH",`, ReasonNotRecognized},
		{"not an object", `[1, 2, 3]`, ReasonNotRecognized},
		{"wrong app", `{"app": "OTHER", "type": "sync", "profile": {"name": "Mallory"}}`, ReasonNotRecognized},
		{"app not a string", `{"app": 7, "profile": {"name": "Mallory"}}`, ReasonNotRecognized},
		{"wrong type", `{"app": "UEAH", "type": "backup", "favourites": {"items": [{"key": "k"}]}}`, ReasonUnsupported},
		{"newer version", `{"app": "UEAH", "type": "sync", "schemaVersion": 2, "profile": {"name": "Mallory"}}`, ReasonUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			require.NoError(t, f.profile.Set(ctx, "name", "Ana"))
			require.NoError(t, f.favourites.Add(ctx, prefs.Favourite{Key: "keep"}))
			before := f.snapshot(t)

			published := 0
			f.favourites.Subscribe(func(prefs.CountChanged) { published++ })

			res := f.engine.ImportText(ctx, []byte(tt.doc), Options{})
			assert.False(t, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
			assert.NotEmpty(t, res.Message)
			assert.Equal(t, before, f.snapshot(t))
			assert.Equal(t, 0, published)
		})
	}
}

func TestImport_MissingSignatureIsTolerated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.engine.ImportText(ctx, []byte(`{"profile": {"name": "Ana"}}`), Options{})
	require.True(t, res.OK)

	v, ok, err := f.profile.Get(ctx, "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ana", v)
}

func TestImport_EmptyDocumentImportsNothing(t *testing.T) {
	f := newFixture(t)
	res := f.engine.ImportText(context.Background(), []byte(`{"app": "UEAH", "type": "sync"}`), Options{})
	assert.True(t, res.OK)
	assert.False(t, res.Profile.Present)
	assert.False(t, res.Favourites.Present)
}

func TestImport_SectionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.engine.ImportText(ctx, []byte(`{
		"app": "UEAH",
		"profile": "not an object",
		"favourites": {"items": [{"key": "k"}]}
	}`), Options{})

	assert.False(t, res.OK)
	assert.Equal(t, ReasonUnsupported, res.Reason)
	assert.False(t, res.Profile.OK)
	assert.True(t, res.Favourites.OK)

	n, err := f.favourites.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "favourites still imported")
}

func TestImport_SaveFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.storage.FailWrites(true)

	res := f.engine.ImportText(ctx, []byte(`{"profile": {"name": "Ana"}, "favourites": [{"key": "k"}]}`), Options{})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonSaveFailed, res.Reason)
	assert.Equal(t, ReasonSaveFailed, res.Profile.Reason)
	assert.Equal(t, ReasonSaveFailed, res.Favourites.Reason)
	assert.Contains(t, res.Favourites.Error, "quota")
}

func TestImport_MergeAndReplace(t *testing.T) {
	doc := `{
		"app": "UEAH", "type": "sync", "schemaVersion": 1,
		"profile": {"email": "b@example.org", "resultsByAge": {"8-10": {"score": 80}}},
		"favourites": {"schemaVersion": 1, "items": [{"key": "K", "title": "incoming"}, {"key": "n"}, "junk"]}
	}`
	seed := func(t *testing.T, f *fixture) {
		ctx := context.Background()
		require.NoError(t, f.profile.Set(ctx, "name", "Ana"))
		require.NoError(t, f.profile.Set(ctx, "resultsByAge", map[string]any{"8-10": map[string]any{"level": "A2"}}))
		require.NoError(t, f.favourites.Add(ctx, prefs.Favourite{Key: "K", Title: "local"}))
		require.NoError(t, f.favourites.Add(ctx, prefs.Favourite{Key: "mine"}))
	}

	t.Run("merge", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		seed(t, f)

		res := f.engine.Import(ctx, doc, Options{})
		require.True(t, res.OK, "%+v", res)

		p, err := f.profile.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, prefs.Profile{
			"name":         "Ana",
			"email":        "b@example.org",
			"resultsByAge": map[string]any{"8-10": map[string]any{"level": "A2", "score": json.Number("80")}},
		}, p)

		items, err := f.favourites.List(ctx)
		require.NoError(t, err)
		var got []string
		for _, it := range items {
			got = append(got, it.Key)
			if it.Key == "K" {
				assert.Equal(t, "incoming", it.Title)
			}
		}
		assert.ElementsMatch(t, []string{"K", "mine", "n"}, got)
	})

	t.Run("replace", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		seed(t, f)

		res := f.engine.Import(ctx, []byte(doc), Options{Mode: prefs.ModeReplace})
		require.True(t, res.OK, "%+v", res)

		p, err := f.profile.All(ctx)
		require.NoError(t, err)
		assert.NotContains(t, p, "name")
		assert.Equal(t, "b@example.org", p["email"])

		items, err := f.favourites.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "K", items[0].Key)
		assert.Equal(t, "n", items[1].Key)
	})
}

func TestImport_PublishesFavouriteCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ch, stop := f.favourites.Updates(4)
	defer stop()

	res := f.engine.Import(ctx, map[string]any{
		"favourites": map[string]any{"items": []any{
			map[string]any{"key": "a"},
			map[string]any{"age": "4-7", "skill": "reading", "slug": "x"},
		}},
	}, Options{})
	require.True(t, res.OK)

	select {
	case ev := <-ch:
		assert.Equal(t, 2, ev.Count)
	default:
		t.Fatal("expected a count change")
	}
}

func TestExport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)
	require.NoError(t, src.profile.Set(ctx, "name", "Ana"))
	require.NoError(t, src.profile.Set(ctx, "targetScore", 7))
	require.NoError(t, src.favourites.Add(ctx, prefs.Favourite{
		Age: "8-10", Skill: "reading", Slug: "readworks", Title: "ReadWorks",
		Extra: map[string]any{"chips": []any{"free"}},
	}))

	data, err := src.engine.ExportJSON(ctx)
	require.NoError(t, err)

	exported, err := src.engine.Export(ctx)
	require.NoError(t, err)
	encoded, err := exported.Encode()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(encoded))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, App, doc["app"])
	assert.Equal(t, DocType, doc["type"])
	assert.Equal(t, float64(SchemaVersion), doc["schemaVersion"])
	assert.Equal(t, "2024-01-02T03:04:05.000Z", doc["exportedAt"])

	dst := newFixture(t)
	require.NoError(t, dst.profile.Set(ctx, "stale", true))
	res := dst.engine.ImportText(ctx, data, Options{Mode: prefs.ModeReplace})
	require.True(t, res.OK, "%+v", res)

	want, err := src.profile.Export(ctx)
	require.NoError(t, err)
	got, err := dst.profile.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wantFav, err := src.favourites.Export(ctx)
	require.NoError(t, err)
	gotFav, err := dst.favourites.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantFav.Items, gotFav.Items)
}

func TestImport_DocumentValue(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)
	require.NoError(t, src.favourites.Add(ctx, prefs.Favourite{Key: "k"}))
	doc, err := src.engine.Export(ctx)
	require.NoError(t, err)

	dst := newFixture(t)
	res := dst.engine.Import(ctx, &doc, Options{})
	require.True(t, res.OK)
	has, err := dst.favourites.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has)

	res = dst.engine.Import(ctx, 42, Options{})
	assert.Equal(t, ReasonNotRecognized, res.Reason)
}

func TestFilename(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 59, 0, time.UTC)
	assert.Equal(t, "ueah-sync-20240309-0705.json", Filename(at))
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "This file is not a recognized UEAH sync file.", StatusMessage(ReasonNotRecognized, "en"))
	assert.Equal(t, "Your data was imported.", StatusMessage(ReasonNone, "en-GB"))
	assert.Equal(t, "Les données n'ont pas pu être enregistrées sur cet appareil.", StatusMessage(ReasonSaveFailed, "fr"))
	assert.Equal(t, "This sync file uses a format this version cannot read.", StatusMessage(ReasonUnsupported, "de"))
	assert.Equal(t, "Your data was saved to a.json.", ExportedMessage("a.json", ""))
	assert.ElementsMatch(t, []string{"en", "fr"}, Languages())
}
