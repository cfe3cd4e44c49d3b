package prefs

import (
	"context"
	"sync"
)

// CountChanged is published after every successful favourites mutation.
type CountChanged struct {
	Count int
}

// Favourites wraps a FavouritesStore with the operations views use and owns
// the count-change subscription list.
//
// Thread-safety: mutations are serialized. Each mutation's resulting count
// is read while the mutation still holds the lock, and events reach
// subscribers in mutation order. Subscribers are called synchronously and
// must not mutate favourites themselves.
type Favourites struct {
	store FavouritesStore

	opMu sync.Mutex
	// pubMu is taken before opMu is released so deliveries cannot reorder.
	pubMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]func(CountChanged)
	order  []int
	nextID int
}

// NewFavourites creates the service over store.
func NewFavourites(store FavouritesStore) *Favourites {
	return &Favourites{store: store, subs: make(map[int]func(CountChanged))}
}

// Store returns the underlying store.
func (f *Favourites) Store() FavouritesStore {
	return f.store
}

// List returns all favourites, most recent first.
func (f *Favourites) List(ctx context.Context) ([]Favourite, error) {
	return f.store.All(ctx)
}

// Has reports whether key is a favourite.
func (f *Favourites) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := f.store.Get(ctx, key)
	return ok, err
}

// Count returns the number of favourites.
func (f *Favourites) Count(ctx context.Context) (int, error) {
	items, err := f.store.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Toggle adds item when its key is absent and removes it otherwise. It
// reports whether the item is now present.
func (f *Favourites) Toggle(ctx context.Context, item Favourite) (bool, error) {
	item = item.Normalized()
	if item.Key == "" {
		return false, ErrInvalidFavourite
	}

	var exists bool
	err := f.mutate(ctx, func() error {
		var err error
		_, exists, err = f.store.Get(ctx, item.Key)
		if err != nil {
			return err
		}
		if exists {
			return f.store.Remove(ctx, item.Key)
		}
		return f.store.Set(ctx, item)
	})
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Add stores item, replacing any favourite with the same key.
func (f *Favourites) Add(ctx context.Context, item Favourite) error {
	return f.mutate(ctx, func() error { return f.store.Set(ctx, item) })
}

// Remove deletes key.
func (f *Favourites) Remove(ctx context.Context, key string) error {
	return f.mutate(ctx, func() error { return f.store.Remove(ctx, key) })
}

// Clear deletes every favourite.
func (f *Favourites) Clear(ctx context.Context) error {
	return f.mutate(ctx, func() error { return f.store.Clear(ctx) })
}

// Import applies an exported favourites section.
func (f *Favourites) Import(ctx context.Context, exp FavouritesExport, mode Mode) error {
	return f.mutate(ctx, func() error { return f.store.Import(ctx, exp, mode) })
}

// Export returns the favourites section for a sync document.
func (f *Favourites) Export(ctx context.Context) (FavouritesExport, error) {
	return f.store.Export(ctx)
}

// Subscribe registers fn for count changes. The returned func unsubscribes
// and is safe to call more than once.
func (f *Favourites) Subscribe(fn func(CountChanged)) (unsubscribe func()) {
	f.subMu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.order = append(f.order, id)
	f.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.subMu.Lock()
			defer f.subMu.Unlock()
			delete(f.subs, id)
			for i, o := range f.order {
				if o == id {
					f.order = append(f.order[:i], f.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Updates returns a channel fed from Subscribe. A full channel drops the
// event rather than blocking the mutation that produced it. The returned
// func unsubscribes and closes the channel.
func (f *Favourites) Updates(buffer int) (<-chan CountChanged, func()) {
	ch := make(chan CountChanged, buffer)

	var mu sync.Mutex
	closed := false
	unsubscribe := f.Subscribe(func(ev CountChanged) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
		}
	})

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

// mutate runs fn under opMu and publishes the count it leaves behind.
func (f *Favourites) mutate(ctx context.Context, fn func() error) error {
	f.opMu.Lock()
	if err := fn(); err != nil {
		f.opMu.Unlock()
		return err
	}
	items, err := f.store.All(ctx)
	f.pubMu.Lock()
	f.opMu.Unlock()
	defer f.pubMu.Unlock()

	// The mutation stands even when the count cannot be read; only the
	// event is skipped.
	if err != nil {
		return nil
	}
	f.publish(CountChanged{Count: len(items)})
	return nil
}

func (f *Favourites) publish(ev CountChanged) {
	f.subMu.Lock()
	fns := make([]func(CountChanged), 0, len(f.order))
	for _, id := range f.order {
		fns = append(fns, f.subs[id])
	}
	f.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
