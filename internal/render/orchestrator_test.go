package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ueah/internal/dom"
	"github.com/roach88/ueah/internal/route"
)

func fragment(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingDoc wraps a Page and remembers every content write in order.
type recordingDoc struct {
	*dom.Page
	mu       sync.Mutex
	contents []string
	titles   []string
}

func newRecordingDoc() *recordingDoc {
	return &recordingDoc{Page: dom.NewPage("UEAH")}
}

func (d *recordingDoc) SetContent(s string) {
	d.mu.Lock()
	d.contents = append(d.contents, s)
	d.mu.Unlock()
	d.Page.SetContent(s)
}

func (d *recordingDoc) SetTitle(s string) {
	d.mu.Lock()
	d.titles = append(d.titles, s)
	d.mu.Unlock()
	d.Page.SetTitle(s)
}

func (d *recordingDoc) Titles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.titles...)
}

func staticProducer(title, body string) route.Producer {
	return func(context.Context, route.Match) (route.View, error) {
		return route.View{Title: title, Body: fragment(body)}, nil
	}
}

func newTestOrchestrator(table *route.Table, doc Document, base string) *Orchestrator {
	return New(table, doc, Options{
		BasePath:           base,
		SiteName:           "UEAH",
		DefaultDescription: "Learning resources",
		NavIDs:             NewSequentialGenerator("nav"),
		Logger:             discardLogger(),
	})
}

func TestNavigate_CommitsView(t *testing.T) {
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewTests, staticProducer("Tests", `<h1>Tests</h1><a href="/tests/a1">A1</a>`))
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "/ueah")

	out := o.NavigateAndWait(context.Background(), "/tests/")
	require.NoError(t, out.Err)
	assert.True(t, out.Committed)
	assert.Equal(t, route.ViewTests, out.View)
	assert.Equal(t, "/tests", out.Path)
	assert.Equal(t, "nav-1", out.NavID)
	assert.Equal(t, Token(1), out.Token)

	snap := doc.Snapshot()
	assert.Equal(t, "Tests | UEAH", snap.Title)
	assert.Equal(t, "tests", snap.ActiveSection)
	assert.Equal(t, "Learning resources", snap.Meta.Description)
	assert.Equal(t, "/ueah/tests", snap.Meta.Canonical)
	assert.Equal(t, RobotsIndex, snap.Meta.Robots)
	assert.Equal(t, []string{"/ueah/tests/a1"}, dom.Hrefs(snap.Content))
	assert.Equal(t, dom.FocusHeading, snap.Focus)
}

func TestNavigate_PaintsPlaceholderBeforeReturning(t *testing.T) {
	release := make(chan struct{})
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewGames, func(ctx context.Context, _ route.Match) (route.View, error) {
			<-release
			return route.View{Title: "Games", Body: fragment("<h1>Games</h1>")}, nil
		})
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "")

	ch := o.Navigate(context.Background(), "/games")
	snap := doc.Snapshot()
	assert.Equal(t, "games", snap.ActiveSection)
	assert.Equal(t, defaultPlaceholder, snap.Content, "content is never blank while loading")

	close(release)
	out := <-ch
	assert.True(t, out.Committed)
	assert.Equal(t, "Games | UEAH", doc.Snapshot().Title)
}

func TestNavigate_LatestTokenWins(t *testing.T) {
	releaseA := make(chan struct{})
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewProfile, func(ctx context.Context, _ route.Match) (route.View, error) {
			<-releaseA
			return route.View{Title: "Profile", Body: fragment("<h1>Profile</h1>")}, nil
		}).
		Register(route.ViewContact, staticProducer("Contact", "<h1>Contact</h1>"))
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "")

	chA := o.Navigate(context.Background(), "/profile")
	outB := <-o.Navigate(context.Background(), "/contact")
	require.True(t, outB.Committed)

	writesAfterB := doc.Writes()
	close(releaseA)
	outA := <-chA

	assert.False(t, outA.Committed, "A resolved after B and must be discarded")
	assert.Equal(t, Token(1), outA.Token)
	assert.Equal(t, Token(2), outB.Token)
	assert.Equal(t, writesAfterB, doc.Writes(), "stale result must not touch the document")
	assert.Equal(t, "Contact | UEAH", doc.Snapshot().Title)
	assert.Equal(t, []string{"Contact | UEAH"}, doc.Titles())
}

func TestNavigate_SlowSecondStillWins(t *testing.T) {
	releaseB := make(chan struct{})
	// The first navigation is held until the second is minted, so it
	// settles first but against a stale token.
	gate := make(chan struct{})
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewProfile, func(ctx context.Context, _ route.Match) (route.View, error) {
			<-gate
			return route.View{Title: "Profile", Body: fragment("<h1>Profile</h1>")}, nil
		}).
		Register(route.ViewContact, func(ctx context.Context, _ route.Match) (route.View, error) {
			<-releaseB
			return route.View{Title: "Contact", Body: fragment("<h1>Contact</h1>")}, nil
		})
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "")

	chA := o.Navigate(context.Background(), "/profile")
	chB := o.Navigate(context.Background(), "/contact")
	close(gate)
	outA := <-chA
	assert.False(t, outA.Committed)

	close(releaseB)
	outB := <-chB
	assert.True(t, outB.Committed)
	assert.Equal(t, "Contact | UEAH", doc.Snapshot().Title)
}

func TestNavigate_ProducerErrorCommitsErrorView(t *testing.T) {
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewGames, func(context.Context, route.Match) (route.View, error) {
			return route.View{}, errors.New("pack unavailable")
		})
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "/ueah")

	out := o.NavigateAndWait(context.Background(), "/games")
	assert.True(t, out.Committed)
	assert.Equal(t, route.ViewError, out.View)
	require.Error(t, out.Err)
	assert.True(t, IsNavigationError(out.Err))

	snap := doc.Snapshot()
	assert.Contains(t, snap.Content, "pack unavailable")
	assert.Equal(t, RobotsNoIndex, snap.Meta.Robots)
	assert.Equal(t, []string{"/ueah/"}, dom.Hrefs(snap.Content))
}

func TestNavigate_ProducerPanicCommitsErrorView(t *testing.T) {
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewGames, func(context.Context, route.Match) (route.View, error) {
			panic("boom")
		})
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "")

	out := o.NavigateAndWait(context.Background(), "/games")
	assert.True(t, out.Committed)
	assert.Equal(t, route.ViewError, out.View)
	assert.Contains(t, doc.Snapshot().Content, "boom")
}

func TestNavigate_MissingProducer(t *testing.T) {
	doc := newRecordingDoc()
	o := newTestOrchestrator(route.NewTable(route.DefaultVocabulary()), doc, "")

	out := o.NavigateAndWait(context.Background(), "/nowhere")
	assert.True(t, out.Committed)
	assert.Equal(t, route.ViewError, out.View)
}

func TestNavigate_NotFoundDefaultsToNoIndex(t *testing.T) {
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewNotFound, staticProducer("Not found", "<h1>Not found</h1>"))
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "")

	out := o.NavigateAndWait(context.Background(), "/resources/99-100")
	assert.Equal(t, route.ViewNotFound, out.View)
	assert.Equal(t, RobotsNoIndex, doc.Snapshot().Meta.Robots)
}

func TestNavigate_AfterRenderFailureIsContained(t *testing.T) {
	var ran bool
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewHome, func(context.Context, route.Match) (route.View, error) {
			return route.View{
				Body: fragment("<main>home</main>"),
				AfterRender: func(context.Context) error {
					ran = true
					panic("hook exploded")
				},
			}, nil
		})
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "")

	out := o.NavigateAndWait(context.Background(), "/")
	require.NoError(t, out.Err)
	assert.True(t, out.Committed)
	assert.True(t, ran)
	assert.Equal(t, "UEAH", doc.Snapshot().Title)
	assert.Equal(t, dom.FocusMain, doc.Snapshot().Focus)
}

func TestNavigate_CancelledContextDiscards(t *testing.T) {
	table := route.NewTable(route.DefaultVocabulary()).
		Register(route.ViewGames, func(ctx context.Context, _ route.Match) (route.View, error) {
			<-ctx.Done()
			return route.View{}, ctx.Err()
		})
	doc := newRecordingDoc()
	o := newTestOrchestrator(table, doc, "")

	ctx, cancel := context.WithCancel(context.Background())
	ch := o.Navigate(ctx, "/games")
	before := doc.Writes()
	cancel()

	select {
	case out := <-ch:
		assert.False(t, out.Committed)
		assert.ErrorIs(t, out.Err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("navigation did not settle after cancel")
	}
	assert.Equal(t, before, doc.Writes())
}

func TestTokenClock(t *testing.T) {
	c := NewTokenClock()
	assert.Equal(t, Token(0), c.Current())
	t1 := c.Next()
	t2 := c.Next()
	assert.Less(t, int64(t1), int64(t2))
	assert.False(t, c.IsCurrent(t1))
	assert.True(t, c.IsCurrent(t2))

	resumed := NewTokenClockAt(41)
	assert.Equal(t, Token(42), resumed.Next())
}

func TestTokenClock_Concurrent(t *testing.T) {
	c := NewTokenClock()
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(c.Next(), true)
			assert.False(t, dup, "tokens are never reused")
		}()
	}
	wg.Wait()
	assert.Equal(t, Token(50), c.Current())
}

func TestNavIDGenerators(t *testing.T) {
	g := NewSequentialGenerator("nav")
	assert.Equal(t, "nav-1", g.Generate())
	assert.Equal(t, "nav-2", g.Generate())

	a := UUIDv7Generator{}.Generate()
	b := UUIDv7Generator{}.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
