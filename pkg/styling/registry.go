package styling

import (
	"strings"
	"sync"
)

// StyleRegistry collects component styles, once per hash, in
// registration order
type StyleRegistry struct {
	mu     sync.RWMutex
	order  []string
	styles map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *StyleRegistry {
	return &StyleRegistry{styles: make(map[string]string)}
}

var globalRegistry = NewRegistry()

// Add registers a stylesheet. Identical stylesheets are kept once.
func (r *StyleRegistry) Add(css string) {
	if strings.TrimSpace(css) == "" {
		return
	}
	key := Style(css).Hash

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.styles[key]; ok {
		return
	}
	r.order = append(r.order, key)
	r.styles[key] = css
}

// Register adds the output of a component style, scoped when it has
// been scoped
func (r *StyleRegistry) Register(style *ComponentStyle) {
	if style == nil {
		return
	}
	if style.Scoped != "" {
		r.Add(style.Scoped)
		return
	}
	r.Add(style.CSS)
}

// CSS returns every registered stylesheet
func (r *StyleRegistry) CSS() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, key := range r.order {
		b.WriteString(strings.TrimSpace(r.styles[key]))
		b.WriteString("\n")
	}
	return b.String()
}

// Len returns the number of registered stylesheets
func (r *StyleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Reset clears the registry
func (r *StyleRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.styles = make(map[string]string)
}

// Register adds a component style to the global registry
func Register(style *ComponentStyle) {
	globalRegistry.Register(style)
}

// GetAllCSS returns all globally registered CSS as a single string
func GetAllCSS() string {
	return globalRegistry.CSS()
}

// Reset clears the global registry
func Reset() {
	globalRegistry.Reset()
}
