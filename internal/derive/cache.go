package derive

import (
	"reflect"
	"sync"

	"github.com/kailas-cloud/esmap/internal/mapping"
)

type cacheKey struct {
	typ    reflect.Type
	method string
}

type cacheEntry struct {
	once sync.Once
	tree *PartTree
	err  error
}

// Deriver parses derived method names against entity metadata and caches
// the resulting trees, so each method name is analyzed once per entity type.
type Deriver struct {
	reg *mapping.Registry

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

// NewDeriver creates a Deriver backed by the given metadata registry.
func NewDeriver(reg *mapping.Registry) *Deriver {
	return &Deriver{reg: reg, entries: make(map[cacheKey]*cacheEntry)}
}

// Tree returns the parsed tree for the method name on the entity type,
// computing and caching it on first use. Parse failures are cached too.
func (d *Deriver) Tree(t reflect.Type, method string) (*PartTree, error) {
	key := cacheKey{typ: t, method: method}

	d.mu.Lock()
	entry, ok := d.entries[key]
	if !ok {
		entry = &cacheEntry{}
		d.entries[key] = entry
	}
	d.mu.Unlock()

	entry.once.Do(func() {
		e, err := d.reg.Entity(t)
		if err != nil {
			entry.err = err
			return
		}
		entry.tree, entry.err = Parse(d.reg, e, method)
	})
	return entry.tree, entry.err
}
