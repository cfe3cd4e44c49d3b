// Package app assembles the application from configuration.
//
// Construction runs in a fixed order: catalog, storage tier selection,
// favourites service, sync engine, then the page, history, route table,
// orchestrator and link interceptor. Nothing downstream probes or looks up
// a collaborator on its own; every component receives what it needs here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/roach88/ueah/internal/catalog"
	"github.com/roach88/ueah/internal/config"
	"github.com/roach88/ueah/internal/dom"
	"github.com/roach88/ueah/internal/intercept"
	"github.com/roach88/ueah/internal/kv"
	"github.com/roach88/ueah/internal/navpath"
	"github.com/roach88/ueah/internal/prefs"
	"github.com/roach88/ueah/internal/render"
	"github.com/roach88/ueah/internal/route"
	"github.com/roach88/ueah/internal/store"
	"github.com/roach88/ueah/internal/syncdoc"
	"github.com/roach88/ueah/internal/view"
)

// Options overrides parts of the assembly. Zero values are built from the
// configuration.
type Options struct {
	Config   config.Config
	Location navpath.Location
	Logger   *slog.Logger
	Now      func() time.Time
	NavIDs   render.NavIDGenerator

	Catalog *catalog.Catalog
	Opener  prefs.Opener
	Storage kv.Storage
	Plans   view.PlanProvider
}

// App is one running instance of the application against an in-process
// page and history.
type App struct {
	cfg    config.Config
	ctx    context.Context
	logger *slog.Logger

	Catalog      *catalog.Catalog
	Stores       *prefs.Stores
	Favourites   *prefs.Favourites
	Sync         *syncdoc.Engine
	Page         *dom.Page
	History      *dom.History
	Table        *route.Table
	Orchestrator *render.Orchestrator
	Interceptor  *intercept.Interceptor
	BasePath     string

	badge       atomic.Int64
	unsubscribe func()

	mu   sync.Mutex
	last *navigation
}

type navigation struct {
	done    chan struct{}
	outcome render.Outcome
}

// New builds an App. ctx bounds every navigation the App starts.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	cat := opts.Catalog
	if cat == nil {
		var err error
		cat, err = openCatalog(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	stores, err := selectStores(ctx, cfg, opts, now, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		ctx:        ctx,
		logger:     logger.With("component", "app"),
		Catalog:    cat,
		Stores:     stores,
		Favourites: prefs.NewFavourites(stores.Favourites),
		BasePath:   navpath.DetectBasePath(opts.Location, cfg.HostingRule()),
		Page:       dom.NewPage(cfg.Site.Name),
		History:    dom.NewHistory(opts.Location),
	}
	a.Sync = syncdoc.New(stores.Profile, a.Favourites, now, logger)

	if n, err := a.Favourites.Count(ctx); err == nil {
		a.badge.Store(int64(n))
	}
	a.unsubscribe = a.Favourites.Subscribe(func(ev prefs.CountChanged) {
		a.badge.Store(int64(ev.Count))
	})

	vc := &view.Context{
		BasePath:   a.BasePath,
		SiteName:   cfg.Site.Name,
		Catalog:    cat,
		Profile:    stores.Profile,
		Favourites: a.Favourites,
		Plans:      opts.Plans,
		Logger:     logger.With("component", "view"),
	}
	a.Table = view.Register(route.NewTable(cfg.Vocabulary()), vc)
	a.Orchestrator = render.New(a.Table, a.Page, render.Options{
		BasePath:           a.BasePath,
		SiteName:           cfg.Site.Name,
		DefaultDescription: cfg.Site.Description,
		Loading:            view.Loading,
		ErrorView:          view.ErrorView,
		NavIDs:             opts.NavIDs,
		Logger:             logger,
	})
	a.Interceptor = intercept.New(a.History, a.navigate, intercept.Options{
		BasePath:      a.BasePath,
		RedirectParam: cfg.Routing.RedirectParam,
		Actions: map[string]intercept.Action{
			"favourite-toggle": a.toggleAction,
			"favourite-remove": a.removeAction,
		},
		Logger: logger,
	})
	vc.Go = a.Interceptor.Go

	a.logger.Info("app ready",
		"tier", stores.Tier,
		"base_path", a.BasePath,
		"favourites", a.badge.Load())
	return a, nil
}

func openCatalog(cfg config.Config, logger *slog.Logger) (*catalog.Catalog, error) {
	if cfg.Catalog.Dir == "" {
		return catalog.OpenDefault(logger)
	}
	return catalog.Open(os.DirFS(cfg.Catalog.Dir), logger)
}

func selectStores(ctx context.Context, cfg config.Config, opts Options, now func() time.Time, logger *slog.Logger) (*prefs.Stores, error) {
	open := opts.Opener
	if open == nil {
		open = func(context.Context) (*store.Store, error) {
			if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
				return nil, err
			}
			return store.Open(cfg.DatabasePath())
		}
	}

	fallback := opts.Storage
	if fallback == nil {
		fs, err := openFileStorage(cfg)
		if err != nil {
			logger.Warn("local storage unavailable", "path", cfg.StoragePath(), "error", err)
		} else {
			fallback = fs
		}
	}

	return prefs.Select(ctx, open, fallback, prefs.SelectOptions{
		Prefer: prefs.Tier(cfg.Storage.Tier),
		Now:    now,
		Logger: logger,
	})
}

func openFileStorage(cfg config.Config) (kv.Storage, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, err
	}
	return kv.OpenFile(cfg.StoragePath())
}

// Close releases storage and stops listening for favourites changes.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	return a.Stores.Close()
}

// Start applies a pending legacy redirect and renders the current
// location. It waits for the first navigation to settle.
func (a *App) Start(ctx context.Context) render.Outcome {
	if target, ok := a.Interceptor.ApplyLegacyRedirect(); ok {
		a.logger.Info("legacy redirect", "path", target)
	}
	a.navigate(a.Interceptor.CurrentPath())
	return a.Wait(ctx)
}

// navigate is the single navigation callback every entry point shares.
func (a *App) navigate(path string) {
	nav := &navigation{done: make(chan struct{})}
	ch := a.Orchestrator.Navigate(a.ctx, path)
	go func() {
		nav.outcome = <-ch
		close(nav.done)
	}()

	a.mu.Lock()
	a.last = nav
	a.mu.Unlock()
}

// Go navigates to path and records a history entry.
func (a *App) Go(path string) {
	a.Interceptor.Go(path)
}

// Click dispatches a click and reports whether it was taken over.
func (a *App) Click(ev intercept.ClickEvent) bool {
	return a.Interceptor.HandleClick(ev)
}

// Back moves history back and renders the resulting location. It reports
// false when already at the first entry.
func (a *App) Back() bool {
	if !a.History.Back() {
		return false
	}
	a.Interceptor.HandlePopState()
	return true
}

// Forward moves history forward and renders the resulting location.
func (a *App) Forward() bool {
	if !a.History.Forward() {
		return false
	}
	a.Interceptor.HandlePopState()
	return true
}

// Refresh re-renders the current location without a history entry.
func (a *App) Refresh() {
	a.navigate(a.Interceptor.CurrentPath())
}

// Wait blocks until the most recent navigation settles and returns its
// outcome. The page then shows that navigation's result.
func (a *App) Wait(ctx context.Context) render.Outcome {
	a.mu.Lock()
	nav := a.last
	a.mu.Unlock()
	if nav == nil {
		return render.Outcome{}
	}
	select {
	case <-nav.done:
		return nav.outcome
	case <-ctx.Done():
		return render.Outcome{Err: ctx.Err()}
	}
}

// Render navigates to path and waits for the result.
func (a *App) Render(ctx context.Context, path string) (render.Outcome, dom.Snapshot) {
	a.Go(path)
	out := a.Wait(ctx)
	return out, a.Page.Snapshot()
}

// FavouritesBadge is the count shown next to the favourites link. It
// follows every successful favourites mutation.
func (a *App) FavouritesBadge() int {
	return int(a.badge.Load())
}

func (a *App) toggleAction(el *intercept.Element) error {
	item := prefs.Favourite{}
	item.Age, _ = el.Attr("data-age")
	item.Skill, _ = el.Attr("data-skill")
	item.Slug, _ = el.Attr("data-slug")
	item.Title, _ = el.Attr("data-title")
	item.Link, _ = el.Attr("data-url")
	item.Key, _ = el.Attr("data-key")

	added, err := a.Favourites.Toggle(a.ctx, item)
	if err != nil {
		return fmt.Errorf("toggle favourite: %w", err)
	}
	a.logger.Debug("favourite toggled", "key", item.Normalized().Key, "added", added)
	a.Refresh()
	return nil
}

func (a *App) removeAction(el *intercept.Element) error {
	key, _ := el.Attr("data-key")
	if strings.TrimSpace(key) == "" {
		return errors.New("remove favourite: missing data-key")
	}
	if err := a.Favourites.Remove(a.ctx, key); err != nil {
		return fmt.Errorf("remove favourite: %w", err)
	}
	a.Refresh()
	return nil
}
