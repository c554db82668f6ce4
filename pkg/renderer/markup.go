package renderer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseMarkup parses an HTML fragment into renderer nodes. Whitespace-only
// text that spans lines is formatting and is dropped.
func ParseMarkup(markup string) ([]*Node, error) {
	context := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	parsed, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	nodes := make([]*Node, 0, len(parsed))
	for _, p := range parsed {
		if n := convertHTML(p); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// convertHTML converts one parsed HTML node and its subtree
func convertHTML(h *html.Node) *Node {
	switch h.Type {
	case html.TextNode:
		if strings.TrimSpace(h.Data) == "" && strings.Contains(h.Data, "\n") {
			return nil
		}
		return NewTextNode(h.Data)

	case html.CommentNode:
		return NewCommentNode(h.Data)

	case html.ElementNode:
		n := NewNode(h.Data)
		for _, a := range h.Attr {
			name := a.Key
			if a.Namespace != "" {
				name = a.Namespace + ":" + a.Key
			}
			n.SetAttribute(name, a.Val)
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if child := convertHTML(c); child != nil {
				child.SetParent(n)
				n.Children = append(n.Children, child)
			}
		}
		return n
	}
	return nil
}
