package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RebaseLinks prefixes every root-relative anchor href in fragment with
// basePath. Hrefs already under basePath, protocol-relative hrefs and
// non-root-relative hrefs are left alone, so applying it twice is harmless.
func RebaseLinks(fragment, basePath string) (string, error) {
	if basePath == "" || !strings.Contains(fragment, "href") {
		return fragment, nil
	}

	nodes, err := parseFragment(fragment)
	if err != nil {
		return "", err
	}

	changed := false
	for _, n := range nodes {
		walk(n, func(el *html.Node) {
			if el.DataAtom != atom.A {
				return
			}
			for i, attr := range el.Attr {
				if attr.Key != "href" {
					continue
				}
				if rebased, ok := rebaseHref(attr.Val, basePath); ok {
					el.Attr[i].Val = rebased
					changed = true
				}
			}
		})
	}
	if !changed {
		return fragment, nil
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func rebaseHref(href, basePath string) (string, bool) {
	if !strings.HasPrefix(href, "/") || strings.HasPrefix(href, "//") {
		return "", false
	}
	if href == basePath || strings.HasPrefix(href, basePath+"/") ||
		strings.HasPrefix(href, basePath+"?") || strings.HasPrefix(href, basePath+"#") {
		return "", false
	}
	return basePath + href, true
}

// FocusTarget picks where focus lands after a commit: the primary heading
// when the content has one, otherwise the main landmark.
func FocusTarget(fragment string) string {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return FocusMain
	}
	found := false
	for _, n := range nodes {
		walk(n, func(el *html.Node) {
			if el.DataAtom == atom.H1 {
				found = true
			}
		})
	}
	if found {
		return FocusHeading
	}
	return FocusMain
}

// Text returns the concatenated text content of fragment.
func Text(fragment string) string {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return ""
	}
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	for _, n := range nodes {
		collect(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Hrefs lists every anchor href in fragment in document order.
func Hrefs(fragment string) []string {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return nil
	}
	var out []string
	for _, n := range nodes {
		walk(n, func(el *html.Node) {
			if el.DataAtom != atom.A {
				return
			}
			for _, attr := range el.Attr {
				if attr.Key == "href" {
					out = append(out, attr.Val)
				}
			}
		})
	}
	return out
}

func parseFragment(fragment string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(fragment), body)
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
