// Package route maps normalized navigation paths to view keys.
//
// Resolution is a fixed decision tree over path segments. Dynamic segments
// are validated against closed vocabularies (age groups, skills); anything
// unknown resolves to ViewNotFound. Resolve never fails: not-found is an
// ordinary outcome, so a navigation can never be rejected at this stage.
package route

import (
	"slices"

	"github.com/roach88/ueah/internal/navpath"
)

// ViewKey identifies a view producer.
type ViewKey string

const (
	ViewHome           ViewKey = "home"
	ViewProfile        ViewKey = "profile"
	ViewContact        ViewKey = "contact"
	ViewFavourites     ViewKey = "favourites"
	ViewGames          ViewKey = "games"
	ViewTests          ViewKey = "tests"
	ViewTest           ViewKey = "test"
	ViewResources      ViewKey = "resources"
	ViewResourcesAge   ViewKey = "resources-age"
	ViewResourcesSkill ViewKey = "resources-skill"
	ViewResource       ViewKey = "resource"
	ViewNotFound       ViewKey = "not-found"

	// ViewError is never produced by Resolve. The orchestrator reports it
	// when acquisition failed and the error view was committed instead.
	ViewError ViewKey = "error"
)

// singletons are first segments that map to a view only when alone.
var singletons = map[string]ViewKey{
	"profile":    ViewProfile,
	"contact":    ViewContact,
	"favourites": ViewFavourites,
	"games":      ViewGames,
}

// Vocabulary holds the closed sets dynamic segments are checked against.
type Vocabulary struct {
	AgeGroups []string
	Skills    []string
}

// DefaultVocabulary is used when configuration does not override it.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		AgeGroups: []string{"4-7", "8-10", "11-13", "14-16"},
		Skills:    []string{"reading", "writing", "listening", "speaking", "grammar", "vocabulary"},
	}
}

// HasAge reports whether age is a known age group.
func (v Vocabulary) HasAge(age string) bool {
	return slices.Contains(v.AgeGroups, age)
}

// HasSkill reports whether skill is a known skill.
func (v Vocabulary) HasSkill(skill string) bool {
	return slices.Contains(v.Skills, skill)
}

// Params are the dynamic values captured from a path.
type Params struct {
	Age   string `json:"age,omitempty"`
	Skill string `json:"skill,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// Match is the result of resolving one path.
type Match struct {
	Path     string   `json:"path"`
	Segments []string `json:"segments"`
	View     ViewKey  `json:"view"`
	Params   Params   `json:"params"`
}

// Section is the coarse key used for active-navigation highlighting.
func (m Match) Section() string {
	if len(m.Segments) == 0 {
		return ""
	}
	return m.Segments[0]
}

// Resolve runs the decision tree for path. Identical inputs always yield
// identical matches.
func Resolve(path string, vocab Vocabulary) Match {
	p := navpath.Normalize(path)
	segs := navpath.Segments(p)
	m := Match{Path: p, Segments: segs, View: ViewNotFound}

	if len(segs) == 0 {
		m.View = ViewHome
		return m
	}

	if key, ok := singletons[segs[0]]; ok {
		if len(segs) == 1 {
			m.View = key
		}
		return m
	}

	switch segs[0] {
	case "tests":
		switch len(segs) {
		case 1:
			m.View = ViewTests
		case 2:
			// The slug is opaque here; the view checks that the test exists.
			m.View = ViewTest
			m.Params.Slug = segs[1]
		}
	case "resources":
		resolveResources(&m, segs, vocab)
	}
	return m
}

func resolveResources(m *Match, segs []string, vocab Vocabulary) {
	n := len(segs)
	if n == 1 {
		m.View = ViewResources
		return
	}
	if n > 4 || !vocab.HasAge(segs[1]) {
		return
	}
	if n >= 3 && !vocab.HasSkill(segs[2]) {
		return
	}

	m.Params.Age = segs[1]
	switch n {
	case 2:
		m.View = ViewResourcesAge
	case 3:
		m.Params.Skill = segs[2]
		m.View = ViewResourcesSkill
	case 4:
		m.Params.Skill = segs[2]
		m.Params.Slug = segs[3]
		m.View = ViewResource
	}
}
