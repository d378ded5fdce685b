package mapping

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/kailas-cloud/esmap/internal/domain"
)

// NamingStrategy derives an index name from a type name.
type NamingStrategy func(typeName string) string

// SnakeCaseNaming is the default naming strategy: CamelCase → snake_case.
func SnakeCaseNaming(typeName string) string {
	var b strings.Builder
	for i, r := range typeName {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Registry is the process-wide entity metadata cache. Concurrent first
// access to the same type builds the entity exactly once; every caller
// observes the same instance.
type Registry struct {
	naming NamingStrategy

	mu      sync.Mutex
	entries map[reflect.Type]*entityEntry

	aliasMu sync.RWMutex
	aliases map[string]reflect.Type // alias → concrete type
	byType  map[reflect.Type]string
}

type entityEntry struct {
	once   sync.Once
	entity *Entity
	err    error
}

// NewRegistry creates a registry with the given naming strategy,
// defaulting to SnakeCaseNaming.
func NewRegistry(naming NamingStrategy) *Registry {
	if naming == nil {
		naming = SnakeCaseNaming
	}
	return &Registry{
		naming:  naming,
		entries: make(map[reflect.Type]*entityEntry),
		aliases: make(map[string]reflect.Type),
		byType:  make(map[reflect.Type]string),
	}
}

// Entity returns the metadata for t, building and caching it on first access.
func (r *Registry) Entity(t reflect.Type) (*Entity, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.Lock()
	entry, ok := r.entries[t]
	if !ok {
		entry = &entityEntry{}
		r.entries[t] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.entity, entry.err = buildEntity(t, r.naming, r.AliasFor(t))
	})
	return entry.entity, entry.err
}

// EntityOf returns the metadata for the dynamic type of v.
func (r *Registry) EntityOf(v any) (*Entity, error) {
	return r.Entity(reflect.TypeOf(v))
}

// RegisterSubtype maps a persisted type alias to a concrete type, enabling
// polymorphic read-back. Must be called before the type's entity is first
// built so the alias is written on save.
func (r *Registry) RegisterSubtype(alias string, prototype any) error {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("esmap: subtype %s is not a struct", t)
	}

	r.aliasMu.Lock()
	defer r.aliasMu.Unlock()
	if existing, ok := r.aliases[alias]; ok && existing != t {
		return fmt.Errorf("esmap: alias %q already registered for %s", alias, existing)
	}
	r.aliases[alias] = t
	r.byType[t] = alias
	return nil
}

// SubtypeFor resolves an alias to its registered concrete type.
// Fails with domain.ErrUnknownAlias for unregistered aliases.
func (r *Registry) SubtypeFor(alias string) (reflect.Type, error) {
	r.aliasMu.RLock()
	defer r.aliasMu.RUnlock()
	t, ok := r.aliases[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAlias, alias)
	}
	return t, nil
}

// AliasFor returns the registered alias for t, empty if none.
func (r *Registry) AliasFor(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.aliasMu.RLock()
	defer r.aliasMu.RUnlock()
	return r.byType[t]
}
