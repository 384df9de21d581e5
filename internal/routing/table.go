// Package routing maps page identifiers to page-object factories, one table
// per application, split into an unauthenticated and an optional
// authenticated partition.
package routing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dsisson/welkin/internal/page"
)

var (
	// ErrUnresolvedDestination means the identifier has no entry in the
	// requested partition. This is a defect in a table or a caller.
	ErrUnresolvedDestination = errors.New("unresolved destination")

	// ErrModeUnimplemented means the application does not implement the
	// requested partition at all. This is expected for most applications.
	ErrModeUnimplemented = errors.New("auth mode not implemented")

	// ErrUnknownMode is returned for a mode other than noauth or auth.
	ErrUnknownMode = errors.New("unknown auth mode")

	// ErrUnknownApp is returned by a Registry for an unregistered application.
	ErrUnknownApp = errors.New("unknown application")
)

// ResolveError carries the lookup that failed.
type ResolveError struct {
	App  string
	ID   string
	Mode page.Mode
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %q in %s/%s: %v", e.ID, e.App, e.Mode, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Descriptor is one routing entry: where the page object lives and the URL
// path it is served from.
type Descriptor struct {
	ID     string `yaml:"-"`
	Module string `yaml:"module"`
	Object string `yaml:"object"`
	Path   string `yaml:"path"`
}

// Kind is the "module.object" key used to bind a descriptor to a factory.
func (d Descriptor) Kind() string {
	return d.Module + "." + d.Object
}

// Entry is a descriptor bound to the factory that implements it.
type Entry struct {
	Descriptor
	New page.Factory
}

// Factory returns a page.Factory that stamps the entry's identifier and
// path onto the options before constructing.
func (e Entry) Factory() page.Factory {
	return func(o page.Options) *page.Page {
		o.Name = e.ID
		o.Path = e.Path
		return e.New(o)
	}
}

// Partition holds the entries of one auth mode. A nil Partition means the
// mode is unimplemented; an empty non-nil one is implemented but has no pages.
type Partition map[string]Entry

// Table is the routing table of one application. It is immutable once built.
type Table struct {
	App    string
	Domain string
	Start  string
	NoAuth Partition
	Auth   Partition
}

// Resolve looks id up in the partition selected by mode. It never mutates t.
func Resolve(t *Table, id string, mode page.Mode) (Entry, error) {
	part, err := t.partition(mode)
	if err != nil {
		return Entry{}, &ResolveError{App: t.App, ID: id, Mode: mode, Err: err}
	}
	e, ok := part[id]
	if !ok {
		return Entry{}, &ResolveError{App: t.App, ID: id, Mode: mode, Err: ErrUnresolvedDestination}
	}
	return e, nil
}

// Resolve implements page.Resolver.
func (t *Table) Resolve(id string, mode page.Mode) (page.Factory, error) {
	e, err := Resolve(t, id, mode)
	if err != nil {
		return nil, err
	}
	return e.Factory(), nil
}

func (t *Table) partition(mode page.Mode) (Partition, error) {
	var part Partition
	switch mode {
	case page.NoAuth:
		part = t.NoAuth
	case page.Auth:
		part = t.Auth
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
	if part == nil {
		return nil, ErrModeUnimplemented
	}
	return part, nil
}

// Implements reports whether the table has a partition for mode.
func (t *Table) Implements(mode page.Mode) bool {
	_, err := t.partition(mode)
	return err == nil
}

// IDs returns the sorted identifiers of the partition selected by mode.
func (t *Table) IDs(mode page.Mode) []string {
	part, err := t.partition(mode)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(part))
	for id := range part {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WithDomain returns a copy of t serving from domain. Partitions are shared;
// they are never written after construction.
func (t *Table) WithDomain(domain string) *Table {
	c := *t
	c.Domain = domain
	return &c
}

// Validate checks the table's invariants: the start page exists in the
// noauth partition, identifiers are unique across partitions, and every
// link of every page points at an identifier present in the partition of
// the link's mode.
func (t *Table) Validate() error {
	var errs []error

	if _, err := Resolve(t, t.Start, page.NoAuth); err != nil {
		errs = append(errs, fmt.Errorf("start page: %w", err))
	}

	for id := range t.Auth {
		if _, dup := t.NoAuth[id]; dup {
			errs = append(errs, fmt.Errorf("%s: identifier %q is in both partitions", t.App, id))
		}
	}

	for _, mode := range []page.Mode{page.NoAuth, page.Auth} {
		for _, id := range t.IDs(mode) {
			e, _ := Resolve(t, id, mode)
			if e.New == nil {
				errs = append(errs, fmt.Errorf("%s: %q has no factory", t.App, id))
				continue
			}
			p := e.Factory()(page.Options{Domain: t.Domain})
			if p == nil {
				errs = append(errs, fmt.Errorf("%s: factory for %q returned no page", t.App, id))
				continue
			}
			for _, name := range sortedLinks(p) {
				l := p.Links[name]
				if _, err := Resolve(t, l.Destination, l.Mode); err != nil {
					errs = append(errs, fmt.Errorf("%s: link %q on %q: %w", t.App, name, id, err))
				}
				if err := l.Primary.Validate(); err != nil {
					errs = append(errs, fmt.Errorf("%s: link %q on %q: %w", t.App, name, id, err))
				}
			}
			for _, name := range p.TopLevel {
				if _, ok := p.Links[name]; !ok {
					errs = append(errs, fmt.Errorf("%s: top-level link %q on %q is not declared", t.App, name, id))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func sortedLinks(p *page.Page) []string {
	names := make([]string, 0, len(p.Links))
	for name := range p.Links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
