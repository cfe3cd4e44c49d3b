package catalog

import (
	_ "embed"
	"fmt"
	"io/fs"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource []byte

// Error codes reported by LoadError.
const (
	ErrCodeNotFound    = "C001" // pack file missing
	ErrCodeBuildFailed = "C002" // CUE did not compile
	ErrCodeInvalid     = "C003" // pack does not satisfy the schema
	ErrCodeUnknownPack = "C004" // pack not listed in the index
)

// LoadError describes a pack that could not be loaded.
type LoadError struct {
	Code    string
	Pack    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Pack != "" {
		return fmt.Sprintf("%s: pack %s: %s", e.Code, e.Pack, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loader compiles pack sources against the embedded schema. A cue.Context is
// not safe for concurrent use, so every compile holds mu.
type loader struct {
	mu    sync.Mutex
	ctx   *cue.Context
	index cue.Value
	pack  cue.Value
}

func newLoader() (*loader, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("catalog: schema: %w", err)
	}
	return &loader{
		ctx:   ctx,
		index: schema.LookupPath(cue.ParsePath("#Index")),
		pack:  schema.LookupPath(cue.ParsePath("#Pack")),
	}, nil
}

func (l *loader) loadIndex(src fs.FS) (Index, error) {
	var idx Index
	if err := l.compile(src, "index", l.index, &idx); err != nil {
		return Index{}, err
	}
	return idx, nil
}

func (l *loader) loadPack(src fs.FS, name string) (*Pack, error) {
	p := &Pack{}
	if err := l.compile(src, name, l.pack, p); err != nil {
		return nil, err
	}
	if p.Name != name {
		return nil, &LoadError{
			Code:    ErrCodeInvalid,
			Pack:    name,
			Message: fmt.Sprintf("declares name %q", p.Name),
		}
	}

	for slug, r := range p.Resources {
		r.Slug = slug
		r.Age = name
		p.Resources[slug] = r
	}
	for slug, t := range p.Tests {
		t.Slug = slug
		for i, q := range t.Questions {
			if q.Answer >= len(q.Options) {
				return nil, &LoadError{
					Code:    ErrCodeInvalid,
					Pack:    name,
					Message: fmt.Sprintf("test %s question %d: answer out of range", slug, i+1),
				}
			}
		}
		p.Tests[slug] = t
	}
	return p, nil
}

func (l *loader) compile(src fs.FS, name string, schema cue.Value, out any) error {
	filename := name + ".cue"
	data, err := fs.ReadFile(src, filename)
	if err != nil {
		return &LoadError{Code: ErrCodeNotFound, Pack: name, Message: err.Error()}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return cueError(ErrCodeBuildFailed, name, err)
	}
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return cueError(ErrCodeInvalid, name, err)
	}
	if err := v.Decode(out); err != nil {
		return cueError(ErrCodeInvalid, name, err)
	}
	return nil
}

// cueError keeps the position of the first CUE error.
func cueError(code, pack string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Pack: pack, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Pack: pack, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
