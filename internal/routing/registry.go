package routing

import (
	"fmt"
	"sort"

	"github.com/dsisson/welkin/internal/page"
)

// Registry holds the routing tables of every application known to a
// process. It is built once at startup and passed explicitly.
type Registry struct {
	tables map[string]*Table
}

// NewRegistry indexes tables by application name.
func NewRegistry(tables ...*Table) (*Registry, error) {
	r := &Registry{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, dup := r.tables[t.App]; dup {
			return nil, fmt.Errorf("application %q registered twice", t.App)
		}
		r.tables[t.App] = t
	}
	return r, nil
}

// Table returns the routing table of app.
func (r *Registry) Table(app string) (*Table, error) {
	t, ok := r.tables[app]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownApp, app)
	}
	return t, nil
}

// Apps returns the registered application names, sorted.
func (r *Registry) Apps() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up (app, id, mode).
func (r *Registry) Resolve(app, id string, mode page.Mode) (Entry, error) {
	t, err := r.Table(app)
	if err != nil {
		return Entry{}, err
	}
	return Resolve(t, id, mode)
}
