package renderer

import (
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Priority is the fixed evaluation order of the built-in directives.
// Directives registered under other names run after these, in
// registration order.
var Priority = []string{
	"ref", "id", "component", "bind", "if", "for", "on", "text", "html", "show", "model",
}

// Invocation is one directive attribute resolved against a node
type Invocation struct {
	Type       string
	Value      string
	Modifiers  []string
	Expression string
	Scope      *Scope

	// Attribute is the attribute name the invocation was parsed from
	Attribute string
}

// HasModifier reports whether mod was given
func (inv *Invocation) HasModifier(mod string) bool {
	for _, m := range inv.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// Directive handles one invocation on a node
type Directive func(r *Renderer, n *Node, inv *Invocation) Outcome

var invocationPattern = regexp.MustCompile(`^x-([a-z]+)(?::([^.]+))?((?:\.[^.]+)*)$`)

// ParseInvocation parses a directive attribute name such as
// "x-on:click.prevent". It reports false for non-directive attributes.
func ParseInvocation(name string, value any) (*Invocation, bool) {
	m := invocationPattern.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}
	inv := &Invocation{
		Type:      m[1],
		Value:     m[2],
		Attribute: name,
	}
	if m[3] != "" {
		inv.Modifiers = strings.Split(m[3][1:], ".")
	}
	if s, ok := value.(string); ok {
		inv.Expression = s
	}
	return inv, true
}

// Registry maps directive types to handlers
type Registry struct {
	handlers map[string]Directive
	rank     map[string]int
	warned   map[string]bool
	logger   *log.Logger
}

// NewRegistry creates a registry holding the built-in directives
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	reg := &Registry{
		handlers: make(map[string]Directive),
		rank:     make(map[string]int),
		warned:   make(map[string]bool),
		logger:   logger,
	}
	for i, name := range Priority {
		reg.rank[name] = i
	}
	registerBuiltins(reg)
	return reg
}

// Register adds or replaces the handler for a directive type
func (reg *Registry) Register(name string, d Directive) {
	if _, ok := reg.rank[name]; !ok {
		reg.rank[name] = len(reg.rank)
	}
	reg.handlers[name] = d
}

// Lookup returns the handler for a directive type. Unknown types are
// reported once, with a suggestion when a registered name is close.
func (reg *Registry) Lookup(name string) Directive {
	if d, ok := reg.handlers[name]; ok {
		return d
	}
	if !reg.warned[name] {
		reg.warned[name] = true
		if s := reg.suggest(name); s != "" {
			reg.logger.Printf("pupper: unknown directive x-%s (did you mean x-%s?)", name, s)
		} else {
			reg.logger.Printf("pupper: unknown directive x-%s", name)
		}
	}
	return nil
}

func (reg *Registry) suggest(name string) string {
	names := make([]string, 0, len(reg.handlers))
	for k := range reg.handlers {
		names = append(names, k)
	}
	sort.Strings(names)
	return Suggest(name, names)
}

// Suggest returns the candidate closest to name, or "" when none is
// close enough to be a likely misspelling.
func Suggest(name string, candidates []string) string {
	ranks := fuzzy.RankFindFold(name, candidates)
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(name, c); d <= 2 {
			ranks = append(ranks, fuzzy.Rank{Source: name, Target: c, Distance: d})
		}
	}
	if len(ranks) == 0 {
		return ""
	}
	sort.Stable(ranks)
	return ranks[0].Target
}

// Invocations returns the directive invocations of n in priority order
func (reg *Registry) Invocations(n *Node) []*Invocation {
	var out []*Invocation
	scope := n.Scope()
	for _, a := range n.Attrs {
		inv, ok := ParseInvocation(a.Name, a.Value)
		if !ok || inv.Type == "escape" {
			continue
		}
		inv.Scope = scope
		out = append(out, inv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return reg.order(out[i].Type) < reg.order(out[j].Type)
	})
	return out
}

func (reg *Registry) order(name string) int {
	if r, ok := reg.rank[name]; ok {
		return r
	}
	return len(reg.rank)
}
