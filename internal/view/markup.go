package view

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Small building blocks for view bodies. Every text value goes through
// templ.EscapeString and every href through templ.URL.

func write(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}

func renderAll(ctx context.Context, w io.Writer, children []templ.Component) error {
	for _, c := range children {
		if c == nil {
			continue
		}
		if err := c.Render(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// element wraps children in an element whose attributes are already
// escaped.
func element(tag, attrs string, children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		open := "<" + tag
		if attrs != "" {
			open += " " + attrs
		}
		if err := write(w, open+">"); err != nil {
			return err
		}
		if err := renderAll(ctx, w, children); err != nil {
			return err
		}
		return write(w, "</"+tag+">")
	})
}

func void(tag, attrs string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w, "<"+tag+" "+attrs+">")
	})
}

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w, templ.EscapeString(s))
	})
}

func textElement(tag, class, s string) templ.Component {
	return element(tag, classAttr(class), text(s))
}

func classAttr(class string) string {
	if class == "" {
		return ""
	}
	return attr("class", class)
}

func attr(name, value string) string {
	return fmt.Sprintf(`%s="%s"`, name, templ.EscapeString(value))
}

func attrs(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, attr(pairs[i], pairs[i+1]))
	}
	return strings.Join(parts, " ")
}

// page is the frame every view body shares: a main landmark with a primary
// heading.
func page(class, heading string, children ...templ.Component) templ.Component {
	head := textElement("h1", "", heading)
	return element("main", attrs("class", class, "id", "main"), append([]templ.Component{head}, children...)...)
}

// appLink is an in-app link opted into client-side navigation.
func appLink(href, label string) templ.Component {
	return element("a", attr("href", string(templ.URL(href)))+" data-link", text(label))
}

// card makes its whole area a click target for the in-app path target.
func card(target string, children ...templ.Component) templ.Component {
	return element("div", attrs("class", "card", "data-navigate", target), children...)
}

// externalLink opens outside the application.
func externalLink(href, label string) templ.Component {
	return element("a", attrs(
		"href", string(templ.URL(href)),
		"target", "_blank",
		"rel", "noopener noreferrer",
	), text(label))
}

func list(class string, items []templ.Component) templ.Component {
	lis := make([]templ.Component, len(items))
	for i, it := range items {
		lis[i] = element("li", "", it)
	}
	return element("ul", classAttr(class), lis...)
}

func paragraph(s string) templ.Component {
	if s == "" {
		return nil
	}
	return textElement("p", "", s)
}

func group(children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return renderAll(ctx, w, children)
	})
}
