package html

import (
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pupperjs/core-sub000/pkg/vdom"
)

// voidElements are HTML elements that cannot have children
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// booleanAttributes are HTML attributes that are boolean flags
var booleanAttributes = map[string]bool{
	"checked":   true,
	"disabled":  true,
	"readonly":  true,
	"required":  true,
	"selected":  true,
	"defer":     true,
	"async":     true,
	"multiple":  true,
	"autofocus": true,
	"hidden":    true,
}

// IsVoid reports whether tag is a void element
func IsVoid(tag string) bool {
	return voidElements[tag]
}

// Options control serialization
type Options struct {
	// HydrationIDs adds a data-hid attribute to elements with listeners
	HydrationIDs bool
	// Properties renders value/checked property intents as attributes
	Properties bool
}

// HTMLApplier renders VNodes to HTML
type HTMLApplier struct {
	w              io.Writer
	opts           Options
	hydrationIDGen *HydrationIDGenerator
	err            error
}

// HydrationIDGenerator generates unique IDs for hydration
type HydrationIDGenerator struct {
	mu      sync.Mutex
	counter uint32
}

// NewHydrationIDGenerator creates a new hydration ID generator
func NewHydrationIDGenerator() *HydrationIDGenerator {
	return &HydrationIDGenerator{counter: 1}
}

// Next returns the next hydration ID
func (g *HydrationIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.counter
	g.counter++
	return fmt.Sprintf("h%d", id)
}

// NewHTMLApplier creates a new HTML applier
func NewHTMLApplier(w io.Writer, opts Options) *HTMLApplier {
	return &HTMLApplier{
		w:              w,
		opts:           opts,
		hydrationIDGen: NewHydrationIDGenerator(),
	}
}

// Apply renders a VNode tree to HTML
func (a *HTMLApplier) Apply(prev, next *vdom.VNode) error {
	if prev != nil {
		return fmt.Errorf("htmlApplier does not support incremental updates")
	}

	if next == nil {
		return nil
	}

	a.renderNode(next)
	return a.err
}

// ApplyChildren renders the children of node without the node itself
func (a *HTMLApplier) ApplyChildren(node *vdom.VNode) error {
	if node == nil {
		return nil
	}
	for i := range node.Kids {
		a.renderNode(&node.Kids[i])
	}
	return a.err
}

// write helper that tracks errors
func (a *HTMLApplier) write(s string) {
	if a.err != nil {
		return
	}
	_, a.err = io.WriteString(a.w, s)
}

// renderNode renders a single VNode
func (a *HTMLApplier) renderNode(node *vdom.VNode) {
	if node == nil || a.err != nil {
		return
	}

	switch node.Kind {
	case vdom.KindText:
		a.write(html.EscapeString(node.Text))

	case vdom.KindComment:
		a.write("<!--")
		a.write(strings.ReplaceAll(node.Text, "--", "- -"))
		a.write("-->")

	case vdom.KindElement:
		a.renderElement(node)
	}
}

// renderElement renders an element node
func (a *HTMLApplier) renderElement(node *vdom.VNode) {
	a.write("<")
	a.write(node.Tag)

	if a.opts.HydrationIDs && len(node.Listeners) > 0 {
		a.write(fmt.Sprintf(` data-hid="%s"`, a.hydrationIDGen.Next()))
	}

	attrs := node.Props
	if a.opts.Properties && len(node.Properties) > 0 {
		attrs = make(vdom.Props, len(node.Props)+len(node.Properties))
		for k, v := range node.Props {
			attrs[k] = v
		}
		for k, v := range node.Properties {
			attrs[k] = v
		}
	}

	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "key" {
			continue
		}
		value := attrs[key]

		if b, ok := value.(bool); ok {
			if b {
				a.write(" ")
				a.write(key)
				continue
			}
			if booleanAttributes[key] {
				continue
			}
		}

		valueStr := vdom.PropToString(value)

		// Security: prevent javascript: URLs in href/src attributes
		if (key == "href" || key == "src") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(valueStr)), "javascript:") {
			valueStr = "#"
		}

		a.write(" ")
		a.write(key)
		a.write(`="`)
		a.write(html.EscapeString(valueStr))
		a.write(`"`)
	}

	a.write(">")

	if voidElements[node.Tag] {
		return
	}

	// Script and style content is written unescaped
	isRawTextElement := node.Tag == "script" || node.Tag == "style"
	for i := range node.Kids {
		if isRawTextElement {
			a.renderRawNode(&node.Kids[i])
		} else {
			a.renderNode(&node.Kids[i])
		}
	}

	a.write("</")
	a.write(node.Tag)
	a.write(">")
}

// renderRawNode renders a node without HTML escaping (for script/style content)
func (a *HTMLApplier) renderRawNode(node *vdom.VNode) {
	if node == nil || a.err != nil {
		return
	}

	switch node.Kind {
	case vdom.KindText:
		a.write(node.Text)
	default:
		a.renderNode(node)
	}
}

// RenderToString is a convenience function to render a VNode to a string
func RenderToString(node *vdom.VNode) (string, error) {
	var buf strings.Builder
	applier := NewHTMLApplier(&buf, Options{})
	err := applier.Apply(nil, node)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderChildrenToString renders the children of node, as innerHTML would
func RenderChildrenToString(node *vdom.VNode) (string, error) {
	var buf strings.Builder
	applier := NewHTMLApplier(&buf, Options{})
	if err := applier.ApplyChildren(node); err != nil {
		return "", err
	}
	return buf.String(), nil
}
