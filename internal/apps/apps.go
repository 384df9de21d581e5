// Package apps assembles the catalogs of every application under test into
// a routing.Registry.
package apps

import (
	"bytes"
	"fmt"

	"github.com/dsisson/welkin/internal/apps/example"
	"github.com/dsisson/welkin/internal/apps/herokuapp"
	"github.com/dsisson/welkin/internal/apps/pythonorg"
	"github.com/dsisson/welkin/internal/config"
	"github.com/dsisson/welkin/internal/routing"
)

// Catalog is one application's routing configuration and page objects.
type Catalog struct {
	Routes []byte
	Kinds  routing.Kinds
}

// Catalogs returns every shipped application.
func Catalogs() []Catalog {
	return []Catalog{
		{Routes: example.Routes, Kinds: example.Kinds()},
		{Routes: herokuapp.Routes, Kinds: herokuapp.Kinds()},
		{Routes: pythonorg.Routes, Kinds: pythonorg.Kinds()},
	}
}

// Build parses and binds one catalog, applies the configured domain
// override and validates the resulting table.
func Build(c Catalog, overrides map[string]config.AppConfig) (*routing.Table, error) {
	f, err := routing.LoadRoutes(bytes.NewReader(c.Routes))
	if err != nil {
		return nil, err
	}
	t, err := routing.Bind(f, c.Kinds)
	if err != nil {
		return nil, err
	}
	if o, ok := overrides[t.App]; ok && o.Domain != "" {
		t = t.WithDomain(o.Domain)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid routing table %s: %w", t.App, err)
	}
	return t, nil
}

// Load builds the registry of all shipped applications.
func Load(cfg *config.Config) (*routing.Registry, error) {
	var overrides map[string]config.AppConfig
	if cfg != nil {
		overrides = cfg.Apps
	}

	var tables []*routing.Table
	for _, c := range Catalogs() {
		t, err := Build(c, overrides)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return routing.NewRegistry(tables...)
}
