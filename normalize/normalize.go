// Package normalize turns page markup into Markdown-like plain text.
//
// Headings become "#" lines, list items become "- " lines indented two
// spaces per nesting level, and block elements are separated by blank
// lines, so the chunker can still see the document's structure. Links are
// reduced to their text. Navigation and footers are dropped.
package normalize

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/poiesic/lumina/core"
)

// dropped elements never contribute text.
var dropped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Ins:      true,
	atom.Template: true,
	atom.Img:      true,
	atom.Nav:      true,
	atom.Footer:   true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Main: true, atom.Header: true, atom.Aside: true, atom.Blockquote: true, atom.Pre: true, atom.Table: true,
	atom.Form: true, atom.Figure: true, atom.Ul: true, atom.Ol: true,
	atom.Dl: true, atom.Hr: true, atom.Body: true, atom.Address: true,
	atom.Details: true, atom.Summary: true, atom.Figcaption: true,
}

// HTML converts markup to structured text. A document with no visible
// text yields core.ErrExtractionEmpty.
func HTML(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("%w: parsing html: %w", core.ErrExtractionEmpty, err)
	}

	r := &renderer{}
	r.walk(MainContent(doc))
	text := r.String()
	if text == "" {
		return "", fmt.Errorf("%w: no text in document", core.ErrExtractionEmpty)
	}
	return text, nil
}

// MainContent picks the node most likely to hold the page body: the first
// main, then article, then an element with id "content", then one with
// class "content", then body.
func MainContent(doc *html.Node) *html.Node {
	preds := []func(*html.Node) bool{
		isAtom(atom.Main),
		isAtom(atom.Article),
		func(n *html.Node) bool { return attr(n, "id") == "content" },
		func(n *html.Node) bool { return hasClass(n, "content") },
		isAtom(atom.Body),
	}
	for _, pred := range preds {
		if n := find(doc, pred); n != nil {
			return n
		}
	}
	return doc
}

type renderer struct {
	lines  []string
	inline strings.Builder
	prefix string
	// items holds the marker of each open list item, innermost last.
	items []string
}

func (r *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.inline.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if dropped[n.DataAtom] {
			return
		}
	}

	a := n.DataAtom
	switch {
	case n.Type != html.ElementNode:
		r.children(n)

	case isHeading(a):
		r.paragraph()
		r.prefix = strings.Repeat("#", headingLevel(a)) + " "
		r.children(n)
		r.paragraph()
		r.prefix = ""

	case a == atom.Li || a == atom.Dt || a == atom.Dd:
		r.flush()
		marker := strings.Repeat("  ", len(r.items)) + "- "
		r.items = append(r.items, marker)
		r.prefix = marker
		r.children(n)
		r.flush()
		r.items = r.items[:len(r.items)-1]
		r.prefix = ""

	case a == atom.Br || a == atom.Tr:
		r.children(n)
		r.flush()

	case a == atom.Td || a == atom.Th:
		r.inline.WriteByte(' ')
		r.children(n)
		r.inline.WriteByte(' ')

	case blocks[a]:
		if len(r.items) > 0 {
			// Text after a nested block continues the enclosing item.
			r.flush()
			r.children(n)
			r.flush()
			r.prefix = r.items[len(r.items)-1]
			return
		}
		r.paragraph()
		r.children(n)
		r.paragraph()

	default:
		r.children(n)
	}
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
}

// flush ends the current line.
func (r *renderer) flush() {
	text := strings.Join(strings.Fields(r.inline.String()), " ")
	r.inline.Reset()
	if text == "" {
		return
	}
	r.lines = append(r.lines, r.prefix+text)
	r.prefix = ""
}

// paragraph ends the current line and starts a new block.
func (r *renderer) paragraph() {
	r.flush()
	if len(r.lines) > 0 && r.lines[len(r.lines)-1] != "" {
		r.lines = append(r.lines, "")
	}
}

func (r *renderer) String() string {
	r.flush()
	return strings.TrimSpace(strings.Join(r.lines, "\n"))
}

func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func isAtom(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.DataAtom == a }
}

func attr(n *html.Node, key string) string {
	for _, at := range n.Attr {
		if at.Key == key {
			return at.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isHeading(a atom.Atom) bool {
	return headingLevel(a) > 0
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}
