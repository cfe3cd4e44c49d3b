package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ueah/internal/kv"
	"github.com/roach88/ueah/internal/store"
)

// Tier names the storage implementation in use.
type Tier string

const (
	TierAuto     Tier = "auto"
	TierEnhanced Tier = "enhanced"
	TierFallback Tier = "fallback"
)

// Opener opens the enhanced tier's database.
type Opener func(ctx context.Context) (*store.Store, error)

// SelectOptions configures Select.
type SelectOptions struct {
	// Prefer is auto (default), enhanced or fallback. Enhanced fails hard
	// when the database cannot be opened; auto falls back.
	Prefer Tier
	Now    func() time.Time
	Logger *slog.Logger
}

// Stores is the outcome of tier selection.
type Stores struct {
	Tier       Tier
	Profile    ProfileStore
	Favourites FavouritesStore

	db *store.Store
}

// Close releases the enhanced tier's database, if any.
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Select probes the enhanced tier once and returns the stores to inject.
// A nil open or a failing probe selects the fallback tier over fallback; a
// nil fallback is replaced by an in-memory storage.
func Select(ctx context.Context, open Opener, fallback kv.Storage, opts SelectOptions) (*Stores, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "prefs")

	prefer := opts.Prefer
	if prefer == "" {
		prefer = TierAuto
	}

	if prefer != TierFallback && open != nil {
		db, err := probe(ctx, open)
		if err == nil {
			logger.Info("storage tier selected", "tier", TierEnhanced)
			return &Stores{
				Tier:       TierEnhanced,
				Profile:    NewEnhancedProfile(db),
				Favourites: NewEnhancedFavourites(db, opts.Now, logger),
				db:         db,
			}, nil
		}
		if prefer == TierEnhanced {
			return nil, fmt.Errorf("enhanced storage unavailable: %w", err)
		}
		logger.Warn("enhanced storage unavailable, using fallback", "error", err)
	} else if prefer == TierEnhanced {
		return nil, fmt.Errorf("enhanced storage requested but not configured")
	}

	if fallback == nil {
		logger.Warn("no fallback storage configured, state will not persist")
		fallback = kv.NewMemoryStorage()
	}
	logger.Info("storage tier selected", "tier", TierFallback)
	return &Stores{
		Tier:       TierFallback,
		Profile:    NewFallbackProfile(fallback),
		Favourites: NewFallbackFavourites(fallback, opts.Now),
	}, nil
}

func probe(ctx context.Context, open Opener) (*store.Store, error) {
	db, err := open(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
