// Package dom is the in-process stand-in for the browser document and
// history the router drives.
//
// Page holds the application root as an HTML fragment together with the
// document title, discoverability metadata, the active navigation section and
// the current focus target. History keeps the session history entries and the
// live location. Both are safe for concurrent use; the orchestrator remains
// their only writer during navigation.
package dom

import (
	"sync"
)

// Focus targets reported by Page.Focus.
const (
	FocusMain    = "main"
	FocusHeading = "h1"
)

// Meta is the discoverability metadata applied on commit.
type Meta struct {
	Description string `json:"description"`
	Canonical   string `json:"canonical"`
	Robots      string `json:"robots"`
}

// Snapshot is a point-in-time copy of the page state.
type Snapshot struct {
	Title         string `json:"title"`
	Meta          Meta   `json:"meta"`
	ActiveSection string `json:"active_section"`
	Content       string `json:"content"`
	Focus         string `json:"focus"`
	Writes        int    `json:"writes"`
}

// Page is an in-memory document with a single application root.
type Page struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewPage creates an empty page titled title.
func NewPage(title string) *Page {
	return &Page{snap: Snapshot{Title: title}}
}

// SetActiveSection marks the navigation affordance for section as active.
func (p *Page) SetActiveSection(section string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.ActiveSection = section
	p.snap.Writes++
}

// SetContent replaces the application root content.
func (p *Page) SetContent(fragment string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Content = fragment
	p.snap.Writes++
}

// SetTitle sets the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Title = title
	p.snap.Writes++
}

// SetMeta replaces the discoverability metadata.
func (p *Page) SetMeta(m Meta) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Meta = m
	p.snap.Writes++
}

// Focus moves focus into the freshly committed content and returns the
// chosen target.
func (p *Page) Focus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Focus = FocusTarget(p.snap.Content)
	p.snap.Writes++
	return p.snap.Focus
}

// Snapshot returns a copy of the current state.
func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Writes counts every mutation applied to the page so far.
func (p *Page) Writes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.Writes
}
