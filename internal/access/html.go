package access

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLScope adapts a parsed HTML tree to Scope so server-rendered form
// fragments can be gated before they are written out.
type HTMLScope struct {
	root *html.Node
}

type htmlControl struct {
	node *html.Node
}

// SetDisabled adds or removes the boolean disabled attribute.
func (c htmlControl) SetDisabled(disabled bool) {
	attrs := c.node.Attr[:0]
	for _, attr := range c.node.Attr {
		if attr.Namespace == "" && attr.Key == "disabled" {
			continue
		}
		attrs = append(attrs, attr)
	}
	if disabled {
		attrs = append(attrs, html.Attribute{Key: "disabled", Val: "disabled"})
	}
	c.node.Attr = attrs
}

// ParseHTMLScope parses a form fragment. The fragment is parsed in a body
// context so bare <form> markup round-trips without an html/head wrapper.
func ParseHTMLScope(r io.Reader) (*HTMLScope, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, context)
	if err != nil {
		return nil, fmt.Errorf("access: parse fragment: %w", err)
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &HTMLScope{root: root}, nil
}

// Controls implements Scope.
func (s *HTMLScope) Controls() []Control {
	var out []Control
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && IsInteractiveTag(n.Data) {
			out = append(out, htmlControl{node: n})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(s.root)
	return out
}

// Render writes the (possibly modified) fragment back out.
func (s *HTMLScope) Render(w io.Writer) error {
	for c := s.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return fmt.Errorf("access: render fragment: %w", err)
		}
	}
	return nil
}

// String renders the fragment to a string.
func (s *HTMLScope) String() string {
	var buf bytes.Buffer
	_ = s.Render(&buf)
	return buf.String()
}
