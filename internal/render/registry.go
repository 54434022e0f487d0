// Package render is the templating collaborator used by grids and pages.
//
// Templates are looked up by name from a Registry and turn an arbitrary
// context object into an HTML fragment. A missing template is a setup defect
// and surfaces as ErrTemplateNotFound at render time.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/a-h/templ"
)

// ErrTemplateNotFound is returned when a template name is not registered.
var ErrTemplateNotFound = errors.New("template not found")

// Template turns a context object into an HTML component.
type Template func(data any) templ.Component

// Registry maps template names to templates.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// Register adds a template under name.
// Panics if the name is already registered or the template is nil.
func (r *Registry) Register(name string, t Template) {
	if t == nil {
		panic(fmt.Sprintf("render: nil template %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[name]; exists {
		panic(fmt.Sprintf("template already registered: %s", name))
	}
	r.templates[name] = t
}

// RegisterString adds a template whose body is produced as an HTML string.
// The string is written as-is, so fn must escape anything user-supplied.
func (r *Registry) RegisterString(name string, fn func(data any) (string, error)) {
	r.Register(name, func(data any) templ.Component {
		html, err := fn(data)
		return templ.Raw(html, err)
	})
}

// Lookup returns the template registered under name.
func (r *Registry) Lookup(name string) (Template, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t, nil
}

// Render writes template name applied to data.
func (r *Registry) Render(ctx context.Context, w io.Writer, name string, data any) error {
	t, err := r.Lookup(name)
	if err != nil {
		return err
	}
	c := t(data)
	if c == nil {
		return nil
	}
	return c.Render(ctx, w)
}

// HTML renders template name applied to data into a string.
func (r *Registry) HTML(ctx context.Context, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(ctx, &buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Names returns every registered template name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
