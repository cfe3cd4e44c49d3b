package route

import (
	"context"
	"fmt"

	"github.com/a-h/templ"
)

// View is what a producer hands back to the orchestrator.
//
// Body is rendered into the application root at commit time. AfterRender,
// when set, runs once the body is in place; its failures never reach the
// caller.
type View struct {
	Title       string
	Description string
	Robots      string
	Canonical   string
	Body        templ.Component
	AfterRender func(ctx context.Context) error
}

// Producer builds the view for a match. It may block (e.g. while a content
// pack loads); the orchestrator always calls it off the commit path.
type Producer func(ctx context.Context, m Match) (View, error)

// Deferred is the uniform handle every dispatch returns, whether the view was
// available immediately or is still being acquired.
type Deferred struct {
	done chan struct{}
	view View
	err  error
}

// Ready returns a Deferred that is already resolved.
func Ready(v View) *Deferred {
	d := &Deferred{done: make(chan struct{})}
	d.view = v
	close(d.done)
	return d
}

// Failed returns a Deferred that is already rejected.
func Failed(err error) *Deferred {
	d := &Deferred{done: make(chan struct{})}
	d.err = err
	close(d.done)
	return d
}

// Acquire runs fn on its own goroutine. A panic inside fn rejects the
// Deferred instead of crashing the process.
func Acquire(ctx context.Context, fn func(ctx context.Context) (View, error)) *Deferred {
	d := &Deferred{done: make(chan struct{})}
	go func() {
		defer close(d.done)
		defer func() {
			if r := recover(); r != nil {
				d.err = fmt.Errorf("view panicked: %v", r)
			}
		}()
		d.view, d.err = fn(ctx)
	}()
	return d
}

// Await blocks until the Deferred settles or ctx is done.
func (d *Deferred) Await(ctx context.Context) (View, error) {
	select {
	case <-d.done:
		return d.view, d.err
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Done is closed once the Deferred settles.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Table dispatches resolved matches to registered producers.
type Table struct {
	vocab     Vocabulary
	producers map[ViewKey]Producer
}

// NewTable creates an empty table over vocab.
func NewTable(vocab Vocabulary) *Table {
	return &Table{
		vocab:     vocab,
		producers: make(map[ViewKey]Producer),
	}
}

// Register binds a producer to a view key, replacing any previous one.
func (t *Table) Register(key ViewKey, p Producer) *Table {
	t.producers[key] = p
	return t
}

// Vocabulary returns the vocabulary the table resolves against.
func (t *Table) Vocabulary() Vocabulary {
	return t.vocab
}

// Resolve is Resolve bound to the table's vocabulary.
func (t *Table) Resolve(path string) Match {
	return Resolve(path, t.vocab)
}

// Dispatch resolves path and starts acquiring its view.
func (t *Table) Dispatch(ctx context.Context, path string) (Match, *Deferred) {
	m := t.Resolve(path)
	p, ok := t.producers[m.View]
	if !ok {
		return m, Failed(fmt.Errorf("no view registered for %q", m.View))
	}
	return m, Acquire(ctx, func(ctx context.Context) (View, error) {
		return p(ctx, m)
	})
}
