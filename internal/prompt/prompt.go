// Package prompt renders the fixed, versioned prompt templates sent to the
// inference service. Rendering fails closed: a template never leaves a
// placeholder unfilled.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"
)

// Template is one registered prompt. Placeholders use text/template syntax
// against a string map, e.g. {{.goal}}.
type Template struct {
	ID       string
	Body     string
	Required []string
	Optional []string

	tmpl *template.Template
}

type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry returns a registry preloaded with the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]*Template)}
	for _, t := range builtins() {
		if err := r.Register(t); err != nil {
			panic(fmt.Sprintf("prompt: built-in template %s: %v", t.ID, err))
		}
	}
	return r
}

// Register parses t and rejects bodies that reference parameters t does not declare.
func (r *Registry) Register(t Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTemplate)
	}
	tmpl, err := template.New(t.ID).Option("missingkey=error").Parse(t.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, t.ID, err)
	}

	probe := make(map[string]string, len(t.Required)+len(t.Optional))
	for _, p := range t.Required {
		probe[p] = p
	}
	for _, p := range t.Optional {
		probe[p] = p
	}
	if err := tmpl.Execute(&strings.Builder{}, probe); err != nil {
		return fmt.Errorf("%w: %s references an undeclared parameter: %v", ErrInvalidTemplate, t.ID, err)
	}

	t.tmpl = tmpl
	r.mu.Lock()
	r.templates[t.ID] = &t
	r.mu.Unlock()
	return nil
}

func (r *Registry) Lookup(id string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return Template{}, false
	}
	return *t, true
}

// IDs returns the registered template ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render fills template id with params. Every required parameter must carry a
// non-empty value; optional parameters default to "".
func (r *Registry) Render(id string, params map[string]string) (string, error) {
	r.mu.RLock()
	t, ok := r.templates[id]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}

	data := make(map[string]string, len(t.Required)+len(t.Optional))
	for _, p := range t.Required {
		v, ok := params[p]
		if !ok || strings.TrimSpace(v) == "" {
			return "", &MissingParamError{TemplateID: id, Param: p}
		}
		data[p] = v
	}
	for _, p := range t.Optional {
		data[p] = params[p]
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	return b.String(), nil
}
