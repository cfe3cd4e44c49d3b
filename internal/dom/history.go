package dom

import (
	"net/url"
	"strings"
	"sync"

	"github.com/roach88/ueah/internal/navpath"
)

// Entry is one session-history entry.
type Entry struct {
	Path     string
	RawQuery string
	Fragment string
}

// History is session history with a cursor, like the browser's: pushing
// discards any forward entries, Back and Forward move the cursor and update
// the live location.
type History struct {
	mu      sync.Mutex
	origin  navpath.Location
	entries []Entry
	cursor  int
}

// NewHistory starts a history whose only entry is loc.
func NewHistory(loc navpath.Location) *History {
	return &History{
		origin: navpath.Location{Scheme: loc.Scheme, Host: loc.Host},
		entries: []Entry{{
			Path:     loc.Path,
			RawQuery: loc.RawQuery,
			Fragment: loc.Fragment,
		}},
	}
}

// Push appends href as the new current entry.
func (h *History) Push(href string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.cursor+1], parseHref(href))
	h.cursor = len(h.entries) - 1
}

// Replace rewrites the current entry in place.
func (h *History) Replace(href string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.cursor] = parseHref(href)
}

// Back moves to the previous entry. It reports false at the first entry.
func (h *History) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return false
	}
	h.cursor--
	return true
}

// Forward moves to the next entry. It reports false at the last entry.
func (h *History) Forward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.entries)-1 {
		return false
	}
	h.cursor++
	return true
}

// Location returns the live location.
func (h *History) Location() navpath.Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entries[h.cursor]
	loc := h.origin
	loc.Path = e.Path
	loc.RawQuery = e.RawQuery
	loc.Fragment = e.Fragment
	return loc
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func parseHref(href string) Entry {
	var e Entry
	if i := strings.IndexByte(href, '#'); i >= 0 {
		e.Fragment = href[i+1:]
		href = href[:i]
	}
	if i := strings.IndexByte(href, '?'); i >= 0 {
		e.RawQuery = href[i+1:]
		href = href[:i]
	}
	if u, err := url.Parse(href); err == nil && u.Scheme != "" {
		href = u.EscapedPath()
	}
	if href == "" {
		href = "/"
	}
	e.Path = href
	return e
}
