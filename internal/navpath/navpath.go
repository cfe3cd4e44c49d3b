// Package navpath normalizes in-app navigation paths and resolves them
// against an optional base path.
//
// Every href the application produces and every path the router consumes
// passes through Normalize, so the dispatcher and the rendered anchors always
// agree on one canonical form:
//   - always a leading "/"
//   - never a trailing "/" except for the root itself
//   - no query string or fragment
//   - repeated slashes collapsed, segments NFC normalized
//
// The package is pure: nothing here reads ambient state. The caller passes
// the live Location in.
package navpath

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Root is the normalized home path.
const Root = "/"

// Location is the part of the browser location the router cares about.
type Location struct {
	Scheme   string
	Host     string
	Path     string
	RawQuery string
	Fragment string
}

// ParseLocation parses an absolute URL into a Location.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, err
	}
	return Location{
		Scheme:   u.Scheme,
		Host:     u.Host,
		Path:     u.EscapedPath(),
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}, nil
}

// Origin returns scheme://host, or "" when the location has no host.
func (l Location) Origin() string {
	if l.Host == "" {
		return ""
	}
	return l.Scheme + "://" + l.Host
}

// String renders the location back to a URL.
func (l Location) String() string {
	var b strings.Builder
	b.WriteString(l.Origin())
	if l.Path == "" {
		b.WriteString("/")
	} else {
		b.WriteString(l.Path)
	}
	if l.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(l.RawQuery)
	}
	if l.Fragment != "" {
		b.WriteString("#")
		b.WriteString(l.Fragment)
	}
	return b.String()
}

// Hostname returns the host without any port.
func (l Location) Hostname() string {
	host := l.Host
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// HostingRule describes when the app is served under a fixed prefix, e.g. a
// repository-name prefix on a static-pages domain.
type HostingRule struct {
	DomainSuffix string
	BasePath     string
}

// DetectBasePath returns rule.BasePath when loc is served under it, else "".
// The result depends only on loc and rule.
func DetectBasePath(loc Location, rule HostingRule) string {
	if rule.BasePath == "" || rule.DomainSuffix == "" {
		return ""
	}
	if !strings.HasSuffix(loc.Hostname(), strings.ToLower(rule.DomainSuffix)) {
		return ""
	}
	base := Normalize(rule.BasePath)
	if base == Root {
		return ""
	}
	p := collapseSlashes(loc.Path)
	if p == base || strings.HasPrefix(p, base+"/") {
		return base
	}
	return ""
}

// Normalize returns the canonical NavigationPath for p.
//
// p may be a relative path, an absolute path, or an absolute URL; for a URL
// only the path component is kept. Query and fragment are always dropped.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return Root
	}

	if strings.Contains(p, "://") {
		if u, err := url.Parse(p); err == nil && u.Scheme != "" {
			p = u.EscapedPath()
		}
	}

	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)

	p = norm.NFC.String(p)

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = collapseSlashes(p)

	// Trailing whitespace and slashes can alternate, as in "/a/ /".
	p = strings.TrimRightFunc(p, func(r rune) bool { return r == '/' || unicode.IsSpace(r) })
	if p == "" {
		return Root
	}
	return p
}

// HrefFor is the single producer of navigation targets and anchor hrefs.
func HrefFor(p, basePath string) string {
	return basePath + Normalize(p)
}

// StripBase converts a live URL path into an in-app NavigationPath.
// It reports false when urlPath lies outside basePath.
func StripBase(urlPath, basePath string) (string, bool) {
	p := collapseSlashes(urlPath)
	if basePath == "" {
		return Normalize(p), true
	}
	if p == basePath || p == basePath+"/" {
		return Root, true
	}
	if strings.HasPrefix(p, basePath+"/") {
		return Normalize(p[len(basePath):]), true
	}
	return "", false
}

// Segments splits a path into its non-empty normalized segments.
func Segments(p string) []string {
	trimmed := strings.Trim(Normalize(p), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Section returns the first segment of p, or "" for the root. It is the
// coarse key used to highlight navigation affordances.
func Section(p string) string {
	segs := Segments(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// RedirectTarget extracts the legacy one-time redirect parameter that static
// hosts use to preserve a deep link through a custom 404 page.
func RedirectTarget(loc Location, param string) (string, bool) {
	if param == "" || loc.RawQuery == "" {
		return "", false
	}
	values, err := url.ParseQuery(loc.RawQuery)
	if err != nil {
		return "", false
	}
	target := values.Get(param)
	if strings.TrimSpace(target) == "" {
		return "", false
	}
	return Normalize(target), true
}

func collapseSlashes(p string) string {
	if !strings.Contains(p, "//") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
