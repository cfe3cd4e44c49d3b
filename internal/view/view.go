// Package view holds the built-in view producers and the shared context
// they read from.
//
// Producers are closures over a *Context registered on a route.Table by
// Register. Views that read catalog content call EnsurePack (through the
// catalog accessors) before reading, which is where acquisition may block.
package view

import (
	"context"
	"log/slog"

	"github.com/a-h/templ"

	"github.com/roach88/ueah/internal/catalog"
	"github.com/roach88/ueah/internal/navpath"
	"github.com/roach88/ueah/internal/prefs"
	"github.com/roach88/ueah/internal/route"
)

// Plan is a study recommendation for one learner.
type Plan struct {
	Age     string   `json:"age"`
	Focus   []string `json:"focus"`
	Summary string   `json:"summary"`
}

// PlanProvider computes study plans from the profile. The scoring itself
// lives outside this module.
type PlanProvider interface {
	Plan(ctx context.Context) (Plan, error)
	AgePlan(ctx context.Context, age string) (Plan, error)
}

// Context is what every producer can reach.
type Context struct {
	BasePath   string
	SiteName   string
	Catalog    *catalog.Catalog
	Profile    prefs.ProfileStore
	Favourites *prefs.Favourites
	// Plans is optional.
	Plans PlanProvider
	// Go performs a programmatic in-app navigation.
	Go     func(path string)
	Logger *slog.Logger
}

// Href returns the anchor href for an in-app path.
func (c *Context) Href(path string) string {
	return navpath.HrefFor(path, c.BasePath)
}

// Navigate performs a programmatic navigation when a navigator is wired.
func (c *Context) Navigate(path string) {
	if c.Go != nil {
		c.Go(path)
	}
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Register binds every built-in producer to table.
func Register(table *route.Table, vc *Context) *route.Table {
	return table.
		Register(route.ViewHome, vc.home).
		Register(route.ViewProfile, vc.profile).
		Register(route.ViewContact, vc.contact).
		Register(route.ViewFavourites, vc.favourites).
		Register(route.ViewGames, vc.games).
		Register(route.ViewTests, vc.tests).
		Register(route.ViewTest, vc.test).
		Register(route.ViewResources, vc.resources).
		Register(route.ViewResourcesAge, vc.resourcesAge).
		Register(route.ViewResourcesSkill, vc.resourcesSkill).
		Register(route.ViewResource, vc.resource).
		Register(route.ViewNotFound, vc.notFound)
}

// Loading is the placeholder painted while a view is acquired.
func Loading(string) templ.Component {
	return element("main", attrs("class", "loading", "id", "main", "role", "status", "aria-live", "polite"),
		text("Loading…"))
}

// ErrorView is committed in place of a view whose acquisition failed.
func ErrorView(_ string, err error) route.View {
	msg := "This page could not be shown."
	if err != nil {
		msg = err.Error()
	}
	return route.View{
		Title:  "Something went wrong",
		Robots: "noindex",
		Body: page("error", "Something went wrong",
			textElement("p", "error-detail", msg),
			element("p", "", appLink("/", "Back to home")),
		),
	}
}
