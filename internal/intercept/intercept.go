// Package intercept turns clicks and history moves into in-app navigations.
//
// A click is taken over only when the application opted in: an element
// carrying data-navigate, an element carrying a registered data-action, or
// an anchor marked data-link that points inside the application. Everything
// else (new-tab intents, downloads, foreign origins, links outside the base
// path) is left to the host's default behaviour.
package intercept

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/roach88/ueah/internal/navpath"
)

// Attributes the interceptor reacts to.
const (
	AttrNavigate = "data-navigate"
	AttrLink     = "data-link"
	AttrAction   = "data-action"
)

// Element is a node in the clicked element's ancestor chain.
type Element struct {
	Tag    string
	Attrs  map[string]string
	Parent *Element
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil || e.Attrs == nil {
		return "", false
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// Closest returns e or its nearest ancestor for which match is true.
func (e *Element) Closest(match func(*Element) bool) *Element {
	for el := e; el != nil; el = el.Parent {
		if match(el) {
			return el
		}
	}
	return nil
}

func hasAttr(name string) func(*Element) bool {
	return func(e *Element) bool {
		_, ok := e.Attr(name)
		return ok
	}
}

func isAnchor(e *Element) bool {
	return strings.EqualFold(e.Tag, "a")
}

// ClickEvent is a pointer activation.
type ClickEvent struct {
	Target *Element
	// Button is 0 for the primary button.
	Button           int
	Meta             bool
	Ctrl             bool
	Shift            bool
	Alt              bool
	DefaultPrevented bool
}

func (ev ClickEvent) modified() bool {
	return ev.Button != 0 || ev.Meta || ev.Ctrl || ev.Shift || ev.Alt
}

// History is the session history the interceptor writes to.
type History interface {
	Push(href string)
	Replace(href string)
	Location() navpath.Location
}

// Navigator starts a navigation to a normalized in-app path.
type Navigator func(path string)

// Action handles a click on an element carrying data-action.
type Action func(el *Element) error

// Options configures an Interceptor.
type Options struct {
	BasePath      string
	RedirectParam string
	Actions       map[string]Action
	Logger        *slog.Logger
}

// Interceptor routes clicks and history changes to a Navigator.
type Interceptor struct {
	history  History
	navigate Navigator
	opts     Options
	logger   *slog.Logger
}

// New creates an Interceptor.
func New(history History, navigate Navigator, opts Options) *Interceptor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		history:  history,
		navigate: navigate,
		opts:     opts,
		logger:   logger.With("component", "intercept"),
	}
}

// HandleClick reports whether the click was taken over, i.e. whether the
// host's default action must be prevented.
func (i *Interceptor) HandleClick(ev ClickEvent) bool {
	if ev.DefaultPrevented || ev.Target == nil {
		return false
	}

	if el := ev.Target.Closest(hasAttr(AttrNavigate)); el != nil {
		target, _ := el.Attr(AttrNavigate)
		i.Go(target)
		return true
	}

	if el := ev.Target.Closest(hasAttr(AttrAction)); el != nil {
		name, _ := el.Attr(AttrAction)
		if action, ok := i.opts.Actions[name]; ok {
			if err := action(el); err != nil {
				i.logger.Warn("action failed", "action", name, "error", err)
			}
			return true
		}
	}

	a := ev.Target.Closest(isAnchor)
	if a == nil {
		return false
	}
	if _, ok := a.Attr(AttrLink); !ok {
		return false
	}
	if ev.modified() {
		return false
	}
	if target, ok := a.Attr("target"); ok && target != "" && target != "_self" {
		return false
	}
	if _, ok := a.Attr("download"); ok {
		return false
	}
	href, _ := a.Attr("href")
	path, ok := i.inAppPath(href)
	if !ok {
		return false
	}
	i.transition(path)
	return true
}

// inAppPath resolves href against the live location and reports the in-app
// path it points to, or false when it leaves the application.
func (i *Interceptor) inAppPath(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	loc := i.history.Location()
	base := &url.URL{Scheme: loc.Scheme, Host: loc.Host, Path: loc.Path}
	abs := base.ResolveReference(ref)
	if !strings.EqualFold(abs.Scheme, loc.Scheme) || !strings.EqualFold(abs.Host, loc.Host) {
		return "", false
	}
	return navpath.StripBase(abs.EscapedPath(), i.opts.BasePath)
}

// Go navigates to path programmatically, recording a history entry.
func (i *Interceptor) Go(path string) {
	i.transition(navpath.Normalize(path))
}

func (i *Interceptor) transition(path string) {
	i.history.Push(navpath.HrefFor(path, i.opts.BasePath))
	i.navigate(path)
}

// HandlePopState navigates to the path the live location now shows. No
// history entry is added.
func (i *Interceptor) HandlePopState() {
	i.navigate(i.CurrentPath())
}

// CurrentPath derives the in-app path from the live location. A location
// outside the base path yields its normalized path, which resolves to
// not-found.
func (i *Interceptor) CurrentPath() string {
	loc := i.history.Location()
	if p, ok := navpath.StripBase(loc.Path, i.opts.BasePath); ok {
		return p
	}
	return navpath.Normalize(loc.Path)
}

// ApplyLegacyRedirect rewrites the current history entry to the target
// carried by the one-time redirect parameter. It must run before the first
// render. It reports the target and whether a redirect was applied.
func (i *Interceptor) ApplyLegacyRedirect() (string, bool) {
	target, ok := navpath.RedirectTarget(i.history.Location(), i.opts.RedirectParam)
	if !ok {
		return "", false
	}
	i.history.Replace(navpath.HrefFor(target, i.opts.BasePath))
	i.logger.Debug("legacy redirect applied", "path", target)
	return target, true
}
