// Package render drives one navigation from a path to committed page state.
//
// ARCHITECTURE:
//
// Single writer, last token wins:
// Every call to Navigate mints a Token, paints a placeholder and starts
// acquiring the view on its own goroutine. When acquisition settles, the
// result is committed only if its token is still the latest one minted.
// A superseded navigation is allowed to finish but its result is dropped
// without touching the Document. The committed page therefore always
// reflects the most recently requested navigation, whatever order the
// acquisitions complete in.
//
// The Document is written only from this package, inside one critical
// section that also mints tokens, so minting order, placeholder order and
// the token check can never disagree.
//
// Failure containment:
// Acquisition errors and producer panics are turned into the error view.
// Post-render hook failures are logged and swallowed. Navigate has no error
// return; the Outcome channel reports what happened.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"sync"

	"github.com/a-h/templ"

	"github.com/roach88/ueah/internal/dom"
	"github.com/roach88/ueah/internal/navpath"
	"github.com/roach88/ueah/internal/route"
)

// Default robots directives.
const (
	RobotsIndex   = "index,follow"
	RobotsNoIndex = "noindex"
)

// Document is the page surface the orchestrator commits into.
type Document interface {
	SetActiveSection(section string)
	SetContent(fragment string)
	SetTitle(title string)
	SetMeta(meta dom.Meta)
	Focus() string
}

// Outcome reports how one navigation ended.
type Outcome struct {
	Token     Token
	NavID     string
	Path      string
	View      route.ViewKey
	Committed bool
	Err       error
}

// Options configures an Orchestrator. Zero values get sensible defaults.
type Options struct {
	BasePath           string
	SiteName           string
	DefaultDescription string

	// Loading builds the placeholder painted while a view is acquired.
	Loading func(path string) templ.Component
	// ErrorView builds the view committed when acquisition fails.
	ErrorView func(path string, err error) route.View

	NavIDs NavIDGenerator
	Clock  *TokenClock
	Logger *slog.Logger
}

// Orchestrator sequences navigations against one Document.
type Orchestrator struct {
	table  *route.Table
	doc    Document
	clock  *TokenClock
	navIDs NavIDGenerator
	opts   Options
	logger *slog.Logger

	mu sync.Mutex // commit critical section
}

// New creates an Orchestrator dispatching through table into doc.
func New(table *route.Table, doc Document, opts Options) *Orchestrator {
	if opts.Loading == nil {
		opts.Loading = defaultLoading
	}
	if opts.ErrorView == nil {
		opts.ErrorView = defaultErrorView
	}
	if opts.NavIDs == nil {
		opts.NavIDs = UUIDv7Generator{}
	}
	if opts.Clock == nil {
		opts.Clock = NewTokenClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		table:  table,
		doc:    doc,
		clock:  opts.Clock,
		navIDs: opts.NavIDs,
		opts:   opts,
		logger: logger.With("component", "render"),
	}
}

// BasePath returns the base path links are corrected against.
func (o *Orchestrator) BasePath() string {
	return o.opts.BasePath
}

// Latest returns the most recently minted token.
func (o *Orchestrator) Latest() Token {
	return o.clock.Current()
}

// Navigate starts a navigation to path. Everything up to the placeholder
// paint happens before Navigate returns; the returned channel receives
// exactly one Outcome once the navigation has committed or been discarded.
func (o *Orchestrator) Navigate(ctx context.Context, path string) <-chan Outcome {
	navID := o.navIDs.Generate()
	m := o.table.Resolve(path)

	o.mu.Lock()
	token := o.clock.Next()
	o.doc.SetActiveSection(m.Section())
	o.doc.SetContent(o.rebase(o.placeholder(ctx, m.Path)))
	o.mu.Unlock()

	o.logger.Debug("navigation started",
		"nav_id", navID,
		"token", token,
		"path", m.Path,
		"view", m.View)

	_, deferred := o.table.Dispatch(ctx, m.Path)

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		out <- o.complete(ctx, token, navID, m, deferred)
	}()
	return out
}

// NavigateAndWait runs Navigate and waits for its outcome.
func (o *Orchestrator) NavigateAndWait(ctx context.Context, path string) Outcome {
	return <-o.Navigate(ctx, path)
}

func (o *Orchestrator) complete(ctx context.Context, token Token, navID string, m route.Match, d *route.Deferred) Outcome {
	outcome := Outcome{Token: token, NavID: navID, Path: m.Path, View: m.View}

	v, err := d.Await(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// The caller abandoned the navigation; nothing is written.
		outcome.Err = ctxErr
		return outcome
	}

	var body string
	if err == nil {
		body, err = renderComponent(ctx, v.Body)
	}
	if err != nil {
		navErr := &NavigationError{Path: m.Path, NavID: navID, Err: err}
		o.logger.Warn("view acquisition failed",
			"nav_id", navID,
			"token", token,
			"path", m.Path,
			"error", err)

		v = o.opts.ErrorView(m.Path, navErr)
		if body, err = renderComponent(ctx, v.Body); err != nil {
			body = "<p>" + html.EscapeString(navErr.Error()) + "</p>"
		}
		outcome.View = route.ViewError
		outcome.Err = navErr
	}

	if !o.commit(token, outcome.View, m.Path, v, body) {
		o.logger.Debug("stale navigation discarded",
			"nav_id", navID,
			"token", token,
			"latest", o.clock.Current(),
			"path", m.Path)
		return outcome
	}
	outcome.Committed = true

	o.runAfterRender(ctx, navID, v)

	o.mu.Lock()
	if o.clock.IsCurrent(token) {
		o.doc.Focus()
	}
	o.mu.Unlock()

	o.logger.Info("navigation committed",
		"nav_id", navID,
		"token", token,
		"path", m.Path,
		"view", outcome.View)
	return outcome
}

// commit writes v into the document if token is still the latest.
func (o *Orchestrator) commit(token Token, key route.ViewKey, path string, v route.View, body string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.clock.IsCurrent(token) {
		return false
	}

	o.doc.SetTitle(o.title(v.Title))
	o.doc.SetMeta(o.meta(key, path, v))
	o.doc.SetContent(o.rebase(body))
	return true
}

func (o *Orchestrator) runAfterRender(ctx context.Context, navID string, v route.View) {
	if v.AfterRender == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("after-render hook panicked", "nav_id", navID, "panic", fmt.Sprint(r))
		}
	}()
	if err := v.AfterRender(ctx); err != nil {
		o.logger.Warn("after-render hook failed", "nav_id", navID, "error", err)
	}
}

func (o *Orchestrator) title(viewTitle string) string {
	switch {
	case viewTitle == "":
		return o.opts.SiteName
	case o.opts.SiteName == "" || viewTitle == o.opts.SiteName:
		return viewTitle
	default:
		return viewTitle + " | " + o.opts.SiteName
	}
}

func (o *Orchestrator) meta(key route.ViewKey, path string, v route.View) dom.Meta {
	m := dom.Meta{
		Description: v.Description,
		Canonical:   v.Canonical,
		Robots:      v.Robots,
	}
	if m.Description == "" {
		m.Description = o.opts.DefaultDescription
	}
	if m.Canonical == "" {
		m.Canonical = navpath.HrefFor(path, o.opts.BasePath)
	}
	if m.Robots == "" {
		m.Robots = RobotsIndex
		if key == route.ViewNotFound || key == route.ViewError {
			m.Robots = RobotsNoIndex
		}
	}
	return m
}

func (o *Orchestrator) placeholder(ctx context.Context, path string) string {
	s, err := renderComponent(ctx, o.opts.Loading(path))
	if err != nil || s == "" {
		return defaultPlaceholder
	}
	return s
}

func (o *Orchestrator) rebase(fragment string) string {
	out, err := dom.RebaseLinks(fragment, o.opts.BasePath)
	if err != nil {
		o.logger.Warn("link correction failed", "error", err)
		return fragment
	}
	return out
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	if c == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const defaultPlaceholder = `<div class="loading" role="status" aria-live="polite">Loading…</div>`

func defaultLoading(string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, defaultPlaceholder)
		return err
	})
}

func defaultErrorView(path string, err error) route.View {
	return route.View{
		Title:  "Something went wrong",
		Robots: RobotsNoIndex,
		Body: templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, werr := fmt.Fprintf(w,
				`<section class="error"><h1>Something went wrong</h1><p>%s</p><p><a href="/">Back to home</a></p></section>`,
				html.EscapeString(err.Error()))
			return werr
		}),
	}
}
