package view

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/roach88/ueah/internal/catalog"
	"github.com/roach88/ueah/internal/canonical"
	"github.com/roach88/ueah/internal/prefs"
	"github.com/roach88/ueah/internal/route"
)

func (c *Context) home(ctx context.Context, _ route.Match) (route.View, error) {
	count, err := c.Favourites.Count(ctx)
	if err != nil {
		return route.View{}, err
	}

	sections := []templ.Component{
		appLink(c.Href("/resources"), "Resources"),
		appLink(c.Href("/tests"), "Placement tests"),
		appLink(c.Href("/games"), "Games"),
		appLink(c.Href("/favourites"), fmt.Sprintf("Favourites (%d)", count)),
		appLink(c.Href("/profile"), "Your profile"),
	}
	return route.View{
		Body: page("home", c.SiteName,
			paragraph("Hand-picked English learning resources by age group and skill."),
			list("sections", sections),
		),
	}, nil
}

func (c *Context) profile(ctx context.Context, _ route.Match) (route.View, error) {
	p, err := c.Profile.All(ctx)
	if err != nil {
		return route.View{}, err
	}

	var body []templ.Component
	if len(p) == 0 {
		body = append(body, paragraph("No profile saved on this device yet."))
	} else {
		rows := make([]templ.Component, 0, len(p))
		for _, field := range canonical.SortedKeys(p) {
			rows = append(rows, group(
				textElement("dt", "", field),
				textElement("dd", "", displayValue(p[field])),
			))
		}
		body = append(body, element("dl", classAttr("profile-fields"), rows...))
	}

	if c.Plans != nil {
		plan, err := c.Plans.Plan(ctx)
		if err != nil {
			c.logger().Warn("study plan unavailable", "error", err)
		} else {
			body = append(body, planSection(c, plan))
		}
	}

	body = append(body, element("p", "", appLink(c.Href("/favourites"), "Saved resources")))
	return route.View{
		Title:       "Profile",
		Description: "Your learning profile, stored on this device.",
		Robots:      "noindex",
		Body:        page("profile", "Your profile", body...),
	}, nil
}

func planSection(c *Context, plan Plan) templ.Component {
	focus := make([]templ.Component, len(plan.Focus))
	for i, skill := range plan.Focus {
		focus[i] = appLink(c.Href("/resources/"+plan.Age+"/"+skill), c.Catalog.Label(skill))
	}
	return element("section", classAttr("plan"),
		textElement("h2", "", "Suggested plan"),
		paragraph(plan.Summary),
		list("plan-focus", focus),
	)
}

func displayValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		data, err := canonical.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func (c *Context) contact(context.Context, route.Match) (route.View, error) {
	return route.View{
		Title:       "Contact",
		Description: "How to reach the people behind this site.",
		Body: page("contact", "Contact",
			paragraph("Suggestions for new resources are always welcome."),
			element("p", "", externalLink("mailto:hello@ueah.example", "hello@ueah.example")),
		),
	}, nil
}

func (c *Context) favourites(ctx context.Context, _ route.Match) (route.View, error) {
	items, err := c.Favourites.List(ctx)
	if err != nil {
		return route.View{}, err
	}

	var body templ.Component
	if len(items) == 0 {
		body = group(
			paragraph("You have not saved anything yet."),
			element("p", "", appLink(c.Href("/resources"), "Browse resources")),
		)
	} else {
		rows := make([]templ.Component, len(items))
		for i, it := range items {
			rows[i] = favouriteRow(c, it)
		}
		body = list("favourites", rows)
	}

	return route.View{
		Title:       "Favourites",
		Description: "Resources you saved on this device.",
		Robots:      "noindex",
		Body:        page("favourites", fmt.Sprintf("Favourites (%d)", len(items)), body),
	}, nil
}

func favouriteRow(c *Context, it prefs.Favourite) templ.Component {
	title := it.Title
	if title == "" {
		title = it.Key
	}
	var label templ.Component
	switch {
	case it.Age != "" && it.Skill != "" && it.Slug != "":
		label = appLink(c.Href("/resources/"+it.Age+"/"+it.Skill+"/"+it.Slug), title)
	case it.Link != "":
		label = externalLink(it.Link, title)
	default:
		label = text(title)
	}
	remove := element("button", attrs("type", "button", "data-action", "favourite-remove", "data-key", it.Key), text("Remove"))
	return group(label, text(" "), remove)
}

func (c *Context) games(context.Context, route.Match) (route.View, error) {
	games := []string{"Word match", "Spelling bee", "Picture quiz"}
	items := make([]templ.Component, len(games))
	for i, g := range games {
		items[i] = text(g)
	}
	return route.View{
		Title:       "Games",
		Description: "Quick vocabulary games.",
		Body:        page("games", "Games", list("games", items)),
	}, nil
}

func (c *Context) tests(ctx context.Context, _ route.Match) (route.View, error) {
	all, err := c.Catalog.Tests(ctx)
	if err != nil {
		return route.View{}, err
	}
	items := make([]templ.Component, len(all))
	for i, t := range all {
		items[i] = card("/tests/"+t.Slug,
			appLink(c.Href("/tests/"+t.Slug), t.Title),
			text(" ("+c.Catalog.Label(t.Age)+")"),
		)
	}
	return route.View{
		Title:       "Placement tests",
		Description: "Short tests to find the right level.",
		Body:        page("tests", "Placement tests", list("tests", items)),
	}, nil
}

func (c *Context) test(ctx context.Context, m route.Match) (route.View, error) {
	t, ok, err := c.Catalog.Test(ctx, m.Params.Slug)
	if err != nil {
		return route.View{}, err
	}
	if !ok {
		return c.notFound(ctx, m)
	}

	questions := make([]templ.Component, len(t.Questions))
	for i, q := range t.Questions {
		questions[i] = questionBlock(t.Slug, i, q)
	}

	// Warm the pack the result page links into.
	age := t.Age
	afterRender := func(ctx context.Context) error {
		_, err := c.Catalog.EnsurePack(ctx, age)
		return err
	}

	return route.View{
		Title:       t.Title,
		Description: t.Description,
		Body: page("test", t.Title,
			paragraph(t.Description),
			element("ol", classAttr("questions"), questions...),
			element("p", "", appLink(c.Href("/tests"), "All tests")),
		),
		AfterRender: afterRender,
	}, nil
}

func questionBlock(slug string, index int, q catalog.Question) templ.Component {
	name := slug + "-q" + strconv.Itoa(index+1)
	opts := make([]templ.Component, len(q.Options))
	for i, o := range q.Options {
		opts[i] = element("label", "",
			void("input", attrs("type", "radio", "name", name, "value", strconv.Itoa(i))),
			text(" "+o),
		)
	}
	return element("li", "",
		textElement("p", "prompt", q.Prompt),
		element("fieldset", "", opts...),
	)
}

func (c *Context) resources(context.Context, route.Match) (route.View, error) {
	ages := c.Catalog.Index().Ages
	items := make([]templ.Component, len(ages))
	for i, g := range ages {
		items[i] = card("/resources/"+g.ID, appLink(c.Href("/resources/"+g.ID), g.Label))
	}
	return route.View{
		Title:       "Resources",
		Description: "Learning resources grouped by age.",
		Body:        page("resources", "Resources", list("ages", items)),
	}, nil
}

func (c *Context) resourcesAge(ctx context.Context, m route.Match) (route.View, error) {
	age := m.Params.Age
	pack, err := c.Catalog.EnsurePack(ctx, age)
	if err != nil {
		return route.View{}, err
	}

	counts := make(map[string]int)
	for _, r := range pack.Resources {
		counts[r.Skill]++
	}
	var items []templ.Component
	for _, skill := range c.Catalog.Skills() {
		if counts[skill] == 0 {
			continue
		}
		items = append(items, group(
			appLink(c.Href("/resources/"+age+"/"+skill), c.Catalog.Label(skill)),
			text(fmt.Sprintf(" (%d)", counts[skill])),
		))
	}

	label := c.Catalog.Label(age)
	children := []templ.Component{list("skills", items)}
	if c.Plans != nil {
		if plan, err := c.Plans.AgePlan(ctx, age); err == nil {
			if plan.Age == "" {
				plan.Age = age
			}
			children = append(children, planSection(c, plan))
		}
	}
	children = append(children, element("p", "", appLink(c.Href("/resources"), "All ages")))

	return route.View{
		Title:       label,
		Description: fmt.Sprintf("Resources for %s.", strings.ToLower(label)),
		Body:        page("resources-age", label, children...),
	}, nil
}

func (c *Context) resourcesSkill(ctx context.Context, m route.Match) (route.View, error) {
	age, skill := m.Params.Age, m.Params.Skill
	all, err := c.Catalog.Resources(ctx, age, skill)
	if err != nil {
		return route.View{}, err
	}

	items := make([]templ.Component, len(all))
	for i, r := range all {
		saved, err := c.Favourites.Has(ctx, prefs.DeriveKey(r.Age, r.Skill, r.Slug))
		if err != nil {
			return route.View{}, err
		}
		items[i] = group(
			appLink(c.Href("/resources/"+age+"/"+skill+"/"+r.Slug), r.Title),
			text(" "),
			favouriteButton(r, saved),
		)
	}

	heading := c.Catalog.Label(skill) + " · " + c.Catalog.Label(age)
	body := []templ.Component{list("resources", items)}
	if len(all) == 0 {
		body = []templ.Component{paragraph("Nothing here yet.")}
	}
	body = append(body, element("p", "", appLink(c.Href("/resources/"+age), "Back to "+c.Catalog.Label(age))))

	return route.View{
		Title:       heading,
		Description: fmt.Sprintf("%s resources, %s.", c.Catalog.Label(skill), strings.ToLower(c.Catalog.Label(age))),
		Body:        page("resources-skill", heading, body...),
	}, nil
}

func (c *Context) resource(ctx context.Context, m route.Match) (route.View, error) {
	p := m.Params
	r, ok, err := c.Catalog.Resource(ctx, p.Age, p.Skill, p.Slug)
	if err != nil {
		return route.View{}, err
	}
	if !ok {
		return c.notFound(ctx, m)
	}
	saved, err := c.Favourites.Has(ctx, prefs.DeriveKey(r.Age, r.Skill, r.Slug))
	if err != nil {
		return route.View{}, err
	}

	var tags templ.Component
	if len(r.Tags) > 0 {
		sorted := append([]string(nil), r.Tags...)
		sort.Strings(sorted)
		tags = textElement("p", "tags", strings.Join(sorted, ", "))
	}

	return route.View{
		Title:       r.Title,
		Description: r.Description,
		Body: page("resource", r.Title,
			paragraph(r.Description),
			tags,
			element("p", "", externalLink(r.Link, "Open "+r.Title)),
			element("p", "", favouriteButton(r, saved)),
			element("p", "", appLink(c.Href("/resources/"+p.Age+"/"+p.Skill), "Back to "+c.Catalog.Label(p.Skill))),
		),
	}, nil
}

func favouriteButton(r catalog.Resource, saved bool) templ.Component {
	label, pressed := "Save", "false"
	if saved {
		label, pressed = "Saved", "true"
	}
	return element("button", attrs(
		"type", "button",
		"data-action", "favourite-toggle",
		"data-age", r.Age,
		"data-skill", r.Skill,
		"data-slug", r.Slug,
		"data-title", r.Title,
		"data-url", r.Link,
		"aria-pressed", pressed,
	), text(label))
}

func (c *Context) notFound(context.Context, route.Match) (route.View, error) {
	return route.View{
		Title:  "Page not found",
		Robots: "noindex",
		Body: page("not-found", "Page not found",
			paragraph("We could not find that page."),
			element("p", "", appLink(c.Href("/"), "Back to home")),
		),
	}, nil
}
