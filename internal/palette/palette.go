// Package palette is the catalog of furniture items a user can drop on
// the floor plan.
package palette

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

var ErrUnknownItem = errors.New("unknown furniture item")

// Item is one placeable furniture type. Sizes are in meters.
type Item struct {
	Type  string  `yaml:"type" json:"type"`
	Label string  `yaml:"label" json:"label"`
	Icon  string  `yaml:"icon" json:"icon"`
	Width float64 `yaml:"width" json:"width"`
	Depth float64 `yaml:"depth" json:"depth"`
}

type file struct {
	Items []Item `yaml:"items"`
}

// Catalog is safe for concurrent use; Reload swaps the item set atomically.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]Item
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("palette: built-in catalog: %v", err))
	}
	return c
}

// Load reads a YAML catalog. An empty path yields the built-in one.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	items, err := decode(data)
	if err != nil {
		return nil, err
	}
	return &Catalog{items: items}, nil
}

func decode(data []byte) (map[string]Item, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse palette: %w", err)
	}
	items := make(map[string]Item, len(f.Items))
	for _, it := range f.Items {
		if it.Type == "" {
			return nil, errors.New("parse palette: item without type")
		}
		if it.Width <= 0 || it.Depth <= 0 {
			return nil, fmt.Errorf("parse palette: item %q needs positive width and depth", it.Type)
		}
		if _, dup := items[it.Type]; dup {
			return nil, fmt.Errorf("parse palette: duplicate item %q", it.Type)
		}
		if it.Label == "" {
			it.Label = it.Type
		}
		items[it.Type] = it
	}
	return items, nil
}

func (c *Catalog) Lookup(itemType string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[itemType]
	return it, ok
}

// Items lists the catalog sorted by type.
func (c *Catalog) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Reload replaces the items from data. On error the old set stays.
func (c *Catalog) Reload(data []byte) error {
	items, err := decode(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}
