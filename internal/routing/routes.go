package routing

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dsisson/welkin/internal/page"
	"gopkg.in/yaml.v3"
)

// RoutesFile is the on-disk routing configuration of one application.
// A null or absent auth_pageobjects marks the auth mode unimplemented.
type RoutesFile struct {
	App    string                `yaml:"app"`
	Domain string                `yaml:"domain"`
	Start  string                `yaml:"start"`
	NoAuth map[string]Descriptor `yaml:"noauth_pageobjects"`
	Auth   map[string]Descriptor `yaml:"auth_pageobjects"`
}

// Kinds is the compile-time catalog of factories an application provides,
// keyed by Descriptor.Kind().
type Kinds map[string]page.Factory

// LoadRoutes decodes a routing configuration. Unknown keys are rejected.
func LoadRoutes(r io.Reader) (*RoutesFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f RoutesFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse routes: %w", err)
	}
	if f.App == "" {
		return nil, fmt.Errorf("routes: app name is required")
	}
	if f.NoAuth == nil {
		return nil, fmt.Errorf("routes %s: noauth_pageobjects is required", f.App)
	}
	return &f, nil
}

// Bind joins every descriptor with its factory and returns the table.
func Bind(f *RoutesFile, kinds Kinds) (*Table, error) {
	t := &Table{App: f.App, Domain: f.Domain, Start: f.Start}

	var errs []error
	t.NoAuth = bindPartition(f.App, f.NoAuth, kinds, &errs)
	if f.Auth != nil {
		t.Auth = bindPartition(f.App, f.Auth, kinds, &errs)
		for id := range f.Auth {
			if _, dup := f.NoAuth[id]; dup {
				errs = append(errs, fmt.Errorf("%s: identifier %q is in both partitions", f.App, id))
			}
		}
	}
	if _, ok := t.NoAuth[f.Start]; !ok {
		errs = append(errs, fmt.Errorf("%s: start page %q is not a noauth page", f.App, f.Start))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

func bindPartition(app string, descs map[string]Descriptor, kinds Kinds, errs *[]error) Partition {
	part := make(Partition, len(descs))

	ids := make([]string, 0, len(descs))
	for id := range descs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		d := descs[id]
		d.ID = id
		factory, ok := kinds[d.Kind()]
		if !ok {
			*errs = append(*errs, fmt.Errorf("%s: %q refers to unknown page object %s", app, id, d.Kind()))
			continue
		}
		part[id] = Entry{Descriptor: d, New: factory}
	}
	return part
}

// Marshal renders t back into the routing configuration format. An
// unimplemented auth partition is written as null, never as an empty map.
func Marshal(t *Table) ([]byte, error) {
	out := struct {
		App    string                `yaml:"app"`
		Domain string                `yaml:"domain"`
		Start  string                `yaml:"start"`
		NoAuth map[string]Descriptor `yaml:"noauth_pageobjects"`
		Auth   any                   `yaml:"auth_pageobjects"`
	}{
		App:    t.App,
		Domain: t.Domain,
		Start:  t.Start,
		NoAuth: descriptors(t.NoAuth),
	}
	if t.Auth != nil {
		out.Auth = descriptors(t.Auth)
	}
	return yaml.Marshal(out)
}

func descriptors(p Partition) map[string]Descriptor {
	if p == nil {
		return nil
	}
	out := make(map[string]Descriptor, len(p))
	for id, e := range p {
		out[id] = e.Descriptor
	}
	return out
}
