package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ueah/internal/kv"
	"github.com/roach88/ueah/internal/store"
)

func TestFavourites_ToggleIsSelfInverse(t *testing.T) {
	for _, tier := range tiers {
		t.Run(tier.name, func(t *testing.T) {
			ctx := context.Background()
			_, fs := tier.open(t, nil)
			svc := NewFavourites(fs)
			require.NoError(t, svc.Add(ctx, Favourite{Key: "keep"}))

			before, err := svc.List(ctx)
			require.NoError(t, err)

			item := Favourite{Age: "4-7", Skill: "reading", Slug: "x", Title: "X"}
			added, err := svc.Toggle(ctx, item)
			require.NoError(t, err)
			assert.True(t, added)
			has, err := svc.Has(ctx, "4-7|reading|x")
			require.NoError(t, err)
			assert.True(t, has)

			added, err = svc.Toggle(ctx, item)
			require.NoError(t, err)
			assert.False(t, added)

			after, err := svc.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, keys(before), keys(after))
		})
	}
}

func TestFavourites_PublishesCount(t *testing.T) {
	ctx := context.Background()
	svc := NewFavourites(NewFallbackFavourites(kv.NewMemoryStorage(), nil))

	var mu sync.Mutex
	var got []int
	unsubscribe := svc.Subscribe(func(ev CountChanged) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Count)
	})

	_, err := svc.Toggle(ctx, Favourite{Key: "a"})
	require.NoError(t, err)
	require.NoError(t, svc.Add(ctx, Favourite{Key: "b"}))
	require.NoError(t, svc.Import(ctx, FavouritesExport{Items: []Favourite{{Key: "c"}, {Key: "a"}}}, ModeMerge))
	require.NoError(t, svc.Remove(ctx, "b"))
	_, err = svc.Toggle(ctx, Favourite{Key: "a"})
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()
	require.NoError(t, svc.Clear(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 2, 1}, got)
}

func TestFavourites_FailedMutationDoesNotPublish(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemoryStorage()
	svc := NewFavourites(NewFallbackFavourites(storage, nil))

	published := 0
	svc.Subscribe(func(CountChanged) { published++ })

	storage.FailWrites(true)
	_, err := svc.Toggle(ctx, Favourite{Key: "a"})
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))
	assert.Equal(t, 0, published)

	_, err = svc.Toggle(ctx, Favourite{})
	assert.ErrorIs(t, err, ErrInvalidFavourite)
}

func TestFavourites_Updates(t *testing.T) {
	ctx := context.Background()
	svc := NewFavourites(NewFallbackFavourites(kv.NewMemoryStorage(), nil))

	ch, stop := svc.Updates(1)
	defer stop()

	require.NoError(t, svc.Add(ctx, Favourite{Key: "a"}))
	// The buffer is full; this event is dropped rather than blocking.
	require.NoError(t, svc.Add(ctx, Favourite{Key: "b"}))

	ev := <-ch
	assert.Equal(t, 1, ev.Count)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %+v", extra)
	default:
	}

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSelect_Enhanced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ueah.db")
	open := func(context.Context) (*store.Store, error) { return store.Open(path) }

	stores, err := Select(context.Background(), open, kv.NewMemoryStorage(), SelectOptions{Logger: quietLogger()})
	require.NoError(t, err)
	defer stores.Close()

	assert.Equal(t, TierEnhanced, stores.Tier)
	assert.IsType(t, &EnhancedProfile{}, stores.Profile)
	assert.IsType(t, &EnhancedFavourites{}, stores.Favourites)
}

func TestSelect_FallsBackWhenEnhancedFails(t *testing.T) {
	open := func(context.Context) (*store.Store, error) { return nil, errors.New("no sqlite here") }
	storage := kv.NewMemoryStorage()

	stores, err := Select(context.Background(), open, storage, SelectOptions{Logger: quietLogger()})
	require.NoError(t, err)
	defer stores.Close()

	assert.Equal(t, TierFallback, stores.Tier)
	require.NoError(t, stores.Profile.Set(context.Background(), "name", "Ana"))
	_, ok := storage.GetItem(ProfileKey)
	assert.True(t, ok, "the provided fallback storage is used")
}

func TestSelect_Preferences(t *testing.T) {
	failing := func(context.Context) (*store.Store, error) { return nil, errors.New("boom") }
	calls := 0
	counting := func(context.Context) (*store.Store, error) {
		calls++
		return store.Open(store.MemoryPath)
	}

	_, err := Select(context.Background(), failing, nil, SelectOptions{Prefer: TierEnhanced, Logger: quietLogger()})
	assert.Error(t, err, "explicit enhanced does not silently fall back")

	_, err = Select(context.Background(), nil, nil, SelectOptions{Prefer: TierEnhanced, Logger: quietLogger()})
	assert.Error(t, err)

	stores, err := Select(context.Background(), counting, nil, SelectOptions{Prefer: TierFallback, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, TierFallback, stores.Tier)
	assert.Equal(t, 0, calls, "fallback preference never probes")
}

// stallingStore blocks the first All call until release is closed.
type stallingStore struct {
	FavouritesStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) All(ctx context.Context) ([]Favourite, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.FavouritesStore.All(ctx)
}

func TestFavourites_ConcurrentTogglesPublishInOrder(t *testing.T) {
	ctx := context.Background()
	fs := &stallingStore{
		FavouritesStore: NewFallbackFavourites(kv.NewMemoryStorage(), nil),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	svc := NewFavourites(fs)

	var mu sync.Mutex
	var got []int
	svc.Subscribe(func(ev CountChanged) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Count)
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Toggle(ctx, Favourite{Key: "a"})
		assert.NoError(t, err)
	}()
	<-fs.entered
	go func() {
		defer wg.Done()
		_, err := svc.Toggle(ctx, Favourite{Key: "b"})
		assert.NoError(t, err)
	}()
	close(fs.release)
	wg.Wait()

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, n, got[len(got)-1])
}

func TestFavourites_UpdatesStopClosesChannel(t *testing.T) {
	ctx := context.Background()
	svc := NewFavourites(NewFallbackFavourites(kv.NewMemoryStorage(), nil))

	ch, stop := svc.Updates(4)
	require.NoError(t, svc.Add(ctx, Favourite{Key: "a"}))

	done := make(chan []int)
	go func() {
		var counts []int
		for ev := range ch {
			counts = append(counts, ev.Count)
		}
		done <- counts
	}()

	stop()
	stop()
	require.NoError(t, svc.Add(ctx, Favourite{Key: "b"}))

	assert.Equal(t, []int{1}, <-done)
}
