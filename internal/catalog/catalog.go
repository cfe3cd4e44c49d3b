// Package catalog is the read-only content collaborator views read from.
//
// The index (age groups, skills, pack names) is loaded eagerly by Open, so a
// Catalog handle is usable as soon as it exists. Packs are loaded lazily by
// EnsurePack, the one suspension point views go through before reading a
// pack's resources or tests. Concurrent EnsurePack calls for the same pack
// share a single load.
package catalog

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TestsPack is the pack holding placement tests.
const TestsPack = "tests"

//go:embed packs/*.cue
var defaultPacks embed.FS

// Group is one entry of a closed vocabulary (an age group or a skill).
type Group struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Index lists what the catalog offers.
type Index struct {
	Ages   []Group  `json:"ages"`
	Skills []Group  `json:"skills"`
	Packs  []string `json:"packs"`
}

// Resource is one external learning resource.
type Resource struct {
	Slug        string   `json:"slug"`
	Age         string   `json:"age"`
	Skill       string   `json:"skill"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Link        string   `json:"link"`
	Tags        []string `json:"tags,omitempty"`
}

// Question is a single multiple-choice item.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// Test is a placement test.
type Test struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Age         string     `json:"age"`
	Description string     `json:"description,omitempty"`
	Skills      []string   `json:"skills"`
	Questions   []Question `json:"questions"`
}

// Pack is one loaded content pack.
type Pack struct {
	Name      string              `json:"name"`
	Label     string              `json:"label"`
	Resources map[string]Resource `json:"resources,omitempty"`
	Tests     map[string]Test     `json:"tests,omitempty"`
}

// Catalog serves content from a set of CUE packs.
//
// Thread-safety: all methods are safe for concurrent use.
type Catalog struct {
	src    fs.FS
	loader *loader
	index  Index
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	packs map[string]*Pack
}

// Open reads the index from src and returns a ready catalog. Packs named by
// the index are not read until requested.
func Open(src fs.FS, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ld, err := newLoader()
	if err != nil {
		return nil, err
	}
	idx, err := ld.loadIndex(src)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		src:    src,
		loader: ld,
		index:  idx,
		logger: logger.With("component", "catalog"),
		packs:  make(map[string]*Pack),
	}, nil
}

// OpenDefault opens the packs compiled into the binary.
func OpenDefault(logger *slog.Logger) (*Catalog, error) {
	sub, err := fs.Sub(defaultPacks, "packs")
	if err != nil {
		return nil, fmt.Errorf("catalog: embedded packs: %w", err)
	}
	return Open(sub, logger)
}

// Index returns the catalog index.
func (c *Catalog) Index() Index {
	return c.index
}

// AgeGroups returns the age group ids in index order.
func (c *Catalog) AgeGroups() []string {
	return groupIDs(c.index.Ages)
}

// Skills returns the skill ids in index order.
func (c *Catalog) Skills() []string {
	return groupIDs(c.index.Skills)
}

// Label returns the display label for an age group or skill id.
func (c *Catalog) Label(id string) string {
	for _, g := range c.index.Ages {
		if g.ID == id {
			return g.Label
		}
	}
	for _, g := range c.index.Skills {
		if g.ID == id {
			return g.Label
		}
	}
	return id
}

// EnsurePack loads the named pack if it is not loaded yet and returns it.
func (c *Catalog) EnsurePack(ctx context.Context, name string) (*Pack, error) {
	if p, ok := c.Pack(name); ok {
		return p, nil
	}
	if !slices.Contains(c.index.Packs, name) {
		return nil, &LoadError{Code: ErrCodeUnknownPack, Message: fmt.Sprintf("unknown pack %q", name)}
	}

	ch := c.group.DoChan(name, func() (any, error) {
		if p, ok := c.Pack(name); ok {
			return p, nil
		}
		p, err := c.loader.loadPack(c.src, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.packs[name] = p
		c.mu.Unlock()
		c.logger.Debug("pack loaded",
			"pack", name,
			"resources", len(p.Resources),
			"tests", len(p.Tests))
		return p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Pack), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pack returns a pack only if it is already loaded.
func (c *Catalog) Pack(name string) (*Pack, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.packs[name]
	return p, ok
}

// Resources lists the resources of an age group, optionally filtered by
// skill, sorted by title.
func (c *Catalog) Resources(ctx context.Context, age, skill string) ([]Resource, error) {
	p, err := c.EnsurePack(ctx, age)
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(p.Resources))
	for _, r := range p.Resources {
		if skill != "" && r.Skill != skill {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}

// Resource looks up a single resource. The skill must match the one the
// resource is filed under.
func (c *Catalog) Resource(ctx context.Context, age, skill, slug string) (Resource, bool, error) {
	p, err := c.EnsurePack(ctx, age)
	if err != nil {
		return Resource{}, false, err
	}
	r, ok := p.Resources[slug]
	if !ok || r.Skill != skill {
		return Resource{}, false, nil
	}
	return r, true, nil
}

// Tests lists the placement tests sorted by slug.
func (c *Catalog) Tests(ctx context.Context) ([]Test, error) {
	p, err := c.EnsurePack(ctx, TestsPack)
	if err != nil {
		return nil, err
	}
	out := make([]Test, 0, len(p.Tests))
	for _, t := range p.Tests {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// Test looks up a placement test by slug.
func (c *Catalog) Test(ctx context.Context, slug string) (Test, bool, error) {
	p, err := c.EnsurePack(ctx, TestsPack)
	if err != nil {
		return Test{}, false, err
	}
	t, ok := p.Tests[slug]
	return t, ok, nil
}

func groupIDs(groups []Group) []string {
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids
}
