package intercept

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ueah/internal/dom"
	"github.com/roach88/ueah/internal/navpath"
)

type recorder struct {
	paths []string
}

func (r *recorder) navigate(p string) { r.paths = append(r.paths, p) }

func setup(t *testing.T, start, base string, actions map[string]Action) (*Interceptor, *dom.History, *recorder) {
	t.Helper()
	loc, err := navpath.ParseLocation(start)
	require.NoError(t, err)
	h := dom.NewHistory(loc)
	rec := &recorder{}
	i := New(h, rec.navigate, Options{
		BasePath:      base,
		RedirectParam: "p",
		Actions:       actions,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return i, h, rec
}

func anchor(attrs map[string]string) *Element {
	return &Element{Tag: "a", Attrs: attrs}
}

func TestHandleClick_DataLink(t *testing.T) {
	i, h, rec := setup(t, "https://someone.github.io/ueah/", "/ueah", nil)

	span := &Element{Tag: "span", Parent: anchor(map[string]string{"href": "/ueah/resources/8-10/", "data-link": ""})}
	assert.True(t, i.HandleClick(ClickEvent{Target: span}))
	assert.Equal(t, []string{"/resources/8-10"}, rec.paths)
	assert.Equal(t, "/ueah/resources/8-10", h.Location().Path)
	assert.Equal(t, 2, h.Len())
}

func TestHandleClick_LeavesDefaultsAlone(t *testing.T) {
	link := func(extra map[string]string) *Element {
		attrs := map[string]string{"href": "/ueah/tests", "data-link": ""}
		for k, v := range extra {
			attrs[k] = v
		}
		return anchor(attrs)
	}
	tests := []struct {
		name string
		ev   ClickEvent
	}{
		{"no opt-in", ClickEvent{Target: anchor(map[string]string{"href": "/ueah/tests"})}},
		{"new tab target", ClickEvent{Target: link(map[string]string{"target": "_blank"})}},
		{"download", ClickEvent{Target: link(map[string]string{"download": ""})}},
		{"meta key", ClickEvent{Target: link(nil), Meta: true}},
		{"ctrl key", ClickEvent{Target: link(nil), Ctrl: true}},
		{"shift key", ClickEvent{Target: link(nil), Shift: true}},
		{"alt key", ClickEvent{Target: link(nil), Alt: true}},
		{"middle button", ClickEvent{Target: link(nil), Button: 1}},
		{"already prevented", ClickEvent{Target: link(nil), DefaultPrevented: true}},
		{"cross origin", ClickEvent{Target: link(map[string]string{"href": "https://example.org/ueah/tests"})}},
		{"outside base", ClickEvent{Target: link(map[string]string{"href": "/other/tests"})}},
		{"mailto", ClickEvent{Target: link(map[string]string{"href": "mailto:a@example.org"})}},
		{"fragment only", ClickEvent{Target: link(map[string]string{"href": "#top"})}},
		{"plain element", ClickEvent{Target: &Element{Tag: "div"}}},
		{"no target", ClickEvent{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, h, rec := setup(t, "https://someone.github.io/ueah/", "/ueah", nil)
			assert.False(t, i.HandleClick(tt.ev))
			assert.Empty(t, rec.paths)
			assert.Equal(t, 1, h.Len())
		})
	}
}

func TestHandleClick_SelfTargetAndRelativeHref(t *testing.T) {
	i, _, rec := setup(t, "https://someone.github.io/ueah/resources/8-10", "/ueah", nil)

	assert.True(t, i.HandleClick(ClickEvent{Target: anchor(map[string]string{
		"href": "8-10/reading", "data-link": "", "target": "_self",
	})}))
	assert.True(t, i.HandleClick(ClickEvent{Target: anchor(map[string]string{
		"href": "https://someone.github.io/ueah/tests?x=1", "data-link": "",
	})}))
	assert.Equal(t, []string{"/resources/8-10/reading", "/tests"}, rec.paths)
}

func TestHandleClick_DataNavigateOnAncestor(t *testing.T) {
	i, h, rec := setup(t, "http://localhost:8080/", "", nil)

	card := &Element{Tag: "div", Attrs: map[string]string{"data-navigate": "/tests/a1-starter/"}}
	img := &Element{Tag: "img", Parent: &Element{Tag: "figure", Parent: card}}

	// Modifier keys do not matter for explicit data-navigate targets.
	assert.True(t, i.HandleClick(ClickEvent{Target: img, Ctrl: true}))
	assert.Equal(t, []string{"/tests/a1-starter"}, rec.paths)
	assert.Equal(t, "/tests/a1-starter", h.Location().Path)
}

func TestHandleClick_Actions(t *testing.T) {
	var got []string
	actions := map[string]Action{
		"favourite-toggle": func(el *Element) error {
			slug, _ := el.Attr("data-slug")
			got = append(got, slug)
			return nil
		},
		"broken": func(*Element) error { return errors.New("boom") },
	}
	i, h, rec := setup(t, "http://localhost/", "", actions)

	button := &Element{Tag: "button", Attrs: map[string]string{"data-action": "favourite-toggle", "data-slug": "readworks"}}
	assert.True(t, i.HandleClick(ClickEvent{Target: &Element{Tag: "span", Parent: button}}))
	assert.Equal(t, []string{"readworks"}, got)

	assert.True(t, i.HandleClick(ClickEvent{Target: &Element{Tag: "button", Attrs: map[string]string{"data-action": "broken"}}}),
		"a failing action still owns the click")

	unknown := &Element{Tag: "button", Attrs: map[string]string{"data-action": "nope"}}
	assert.False(t, i.HandleClick(ClickEvent{Target: unknown}))

	assert.Empty(t, rec.paths)
	assert.Equal(t, 1, h.Len())
}

func TestHandlePopState(t *testing.T) {
	i, h, rec := setup(t, "https://someone.github.io/ueah/", "/ueah", nil)
	i.Go("tests")
	i.Go("/profile/")
	require.True(t, h.Back())

	i.HandlePopState()
	assert.Equal(t, []string{"/tests", "/profile", "/tests"}, rec.paths)
	assert.Equal(t, 3, h.Len(), "pop-state adds no entry")
}

func TestCurrentPath_OutsideBase(t *testing.T) {
	i, _, _ := setup(t, "https://someone.github.io/elsewhere/x/", "/ueah", nil)
	assert.Equal(t, "/elsewhere/x", i.CurrentPath())
}

func TestApplyLegacyRedirect(t *testing.T) {
	i, h, rec := setup(t, "https://someone.github.io/ueah/?p=%2Fresources%2F8-10%2F", "/ueah", nil)

	target, ok := i.ApplyLegacyRedirect()
	require.True(t, ok)
	assert.Equal(t, "/resources/8-10", target)
	assert.Equal(t, 1, h.Len(), "the entry is replaced, not pushed")
	assert.Equal(t, "/ueah/resources/8-10", h.Location().Path)
	assert.Empty(t, h.Location().RawQuery)
	assert.Equal(t, "/resources/8-10", i.CurrentPath())
	assert.Empty(t, rec.paths, "redirect happens before the first render")

	_, ok = i.ApplyLegacyRedirect()
	assert.False(t, ok, "one-time")
}
