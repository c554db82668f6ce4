package styling

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComponentStyle is the stylesheet of one component
type ComponentStyle struct {
	// Hash identifies the stylesheet; it is derived from the CSS
	Hash string

	// CSS is the stylesheet as written
	CSS string

	// Scoped is CSS with every selector limited to elements carrying
	// Attribute()
	Scoped string
}

// Style creates a ComponentStyle for css
func Style(css string) *ComponentStyle {
	h := sha256.New()
	h.Write([]byte(css))
	hash := hex.EncodeToString(h.Sum(nil))[:8]

	style := &ComponentStyle{Hash: hash, CSS: css}
	style.Scoped = scope(removeComments(css), "["+style.Attribute()+"]")
	return style
}

// Attribute returns the attribute that marks the component's elements
func (c *ComponentStyle) Attribute() string {
	if c == nil {
		return ""
	}
	return "data-p" + c.Hash
}

// GetHash returns the hash for this component's styles
func (c *ComponentStyle) GetHash() string {
	if c == nil {
		return ""
	}
	return c.Hash
}

// groupingRules hold rules whose selectors must be scoped too
var groupingRules = []string{"@media", "@supports", "@container", "@layer", "@document"}

// scope appends attr to the last compound selector of every rule in css.
// Keyframes and font faces are copied unchanged.
func scope(css, attr string) string {
	var out strings.Builder
	i := 0
	for i < len(css) {
		open := nextDelimiter(css, i)
		if open < 0 {
			out.WriteString(css[i:])
			break
		}
		if css[open] == ';' || css[open] == '}' {
			out.WriteString(css[i : open+1])
			i = open + 1
			continue
		}

		prelude := css[i:open]
		lead := prelude[:len(prelude)-len(strings.TrimLeft(prelude, " \t\r\n"))]
		prelude = strings.TrimSpace(prelude)
		end := matchingBrace(css, open)
		body := css[open+1 : end]

		out.WriteString(lead)
		switch {
		case isGrouping(prelude):
			out.WriteString(prelude + " {" + scope(body, attr) + "}")
		case strings.HasPrefix(prelude, "@"):
			out.WriteString(prelude + " {" + body + "}")
		default:
			selectors := splitTopLevel(prelude, ',')
			for j, sel := range selectors {
				selectors[j] = scopeSelector(strings.TrimSpace(sel), attr)
			}
			out.WriteString(strings.Join(selectors, ", ") + " {" + body + "}")
		}
		i = end + 1
	}
	return out.String()
}

func isGrouping(prelude string) bool {
	for _, rule := range groupingRules {
		if strings.HasPrefix(prelude, rule) {
			return true
		}
	}
	return false
}

// nextDelimiter returns the index of the next '{', ';' or '}' outside
// strings, or -1
func nextDelimiter(css string, from int) int {
	for i := from; i < len(css); i++ {
		switch css[i] {
		case '"', '\'':
			i = skipString(css, i)
		case '{', ';', '}':
			return i
		}
	}
	return -1
}

// matchingBrace returns the index of the brace closing the one at open,
// or the end of css when it is unterminated
func matchingBrace(css string, open int) int {
	depth := 0
	for i := open; i < len(css); i++ {
		switch css[i] {
		case '"', '\'':
			i = skipString(css, i)
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(css) - 1
}

func skipString(css string, i int) int {
	quote := css[i]
	for i++; i < len(css) && css[i] != quote; i++ {
		if css[i] == '\\' {
			i++
		}
	}
	return i
}

// splitTopLevel splits s at sep outside brackets and parentheses
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// scopeSelector inserts attr into the last compound of sel, before its
// pseudo classes and elements
func scopeSelector(sel, attr string) string {
	compound := 0
	depth := 0
	for i := 0; i < len(sel); i++ {
		switch c := sel[i]; {
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case depth == 0 && strings.IndexByte(" >+~", c) >= 0:
			compound = i + 1
		}
	}

	depth = 0
	for i := compound; i < len(sel); i++ {
		switch sel[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ':':
			if depth == 0 {
				return sel[:i] + attr + sel[i:]
			}
		}
	}
	return sel + attr
}

// removeComments removes CSS comments from the string
func removeComments(css string) string {
	var result strings.Builder
	i := 0
	for i < len(css) {
		if i < len(css)-1 && css[i] == '/' && css[i+1] == '*' {
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				break
			}
			i += end + 4
			continue
		}
		result.WriteByte(css[i])
		i++
	}
	return result.String()
}
