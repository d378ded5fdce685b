// Package mapping builds and caches the persistent metadata model: a
// reflection-derived description of each mapped type, its properties, and
// their store-side names and categories. Entities are built once per type
// and are immutable afterwards.
package mapping

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/kailas-cloud/esmap/internal/domain"
)

const tagKey = "esmap"

// Entity is the cached metadata of one mapped domain type.
type Entity struct {
	typ       reflect.Type
	name      string
	indexName string
	alias     string

	props   []*Property
	byName  map[string]*Property
	byStore map[string]*Property

	id          *Property
	version     *Property
	score       *Property
	seqNo       *Property
	primaryTerm *Property
}

// Type returns the entity's runtime type handle.
func (e *Entity) Type() reflect.Type { return e.typ }

// Name returns the entity's simple type name.
func (e *Entity) Name() string { return e.name }

// IndexName returns the declared or derived index name.
func (e *Entity) IndexName() string { return e.indexName }

// Alias returns the type alias persisted for polymorphic storage,
// empty if the type is not registered as a subtype.
func (e *Entity) Alias() string { return e.alias }

// Properties returns the mapped properties in declaration order.
func (e *Entity) Properties() []*Property { return e.props }

// Property resolves a property by Go field name or store-side name.
// Fails with domain.ErrUnknownProperty if absent.
func (e *Entity) Property(name string) (*Property, error) {
	if p, ok := e.byName[name]; ok {
		return p, nil
	}
	if p, ok := e.byStore[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s has no property %q", domain.ErrUnknownProperty, e.name, name)
}

// PropertyFold resolves a property by case-insensitive Go field name.
// Used by method-name derivation where the case of the first rune is lost.
func (e *Entity) PropertyFold(name string) (*Property, bool) {
	for _, p := range e.props {
		if strings.EqualFold(p.name, name) {
			return p, true
		}
	}
	return nil, false
}

// IDProperty returns the identifier property, nil if none is declared.
func (e *Entity) IDProperty() *Property { return e.id }

// VersionProperty returns the version property, nil if none is declared.
func (e *Entity) VersionProperty() *Property { return e.version }

// ScoreProperty returns the score write-back property, nil if none.
func (e *Entity) ScoreProperty() *Property { return e.score }

// SeqNoProperty returns the sequence-number write-back property, nil if none.
func (e *Entity) SeqNoProperty() *Property { return e.seqNo }

// PrimaryTermProperty returns the primary-term write-back property, nil if none.
func (e *Entity) PrimaryTermProperty() *Property { return e.primaryTerm }

// buildEntity walks the struct type and classifies each field, flattening
// embedded structs into the property list (composition over inheritance).
func buildEntity(t reflect.Type, naming NamingStrategy, alias string) (*Entity, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("esmap: type %s is not a struct", t)
	}

	e := &Entity{
		typ:       t,
		name:      t.Name(),
		indexName: naming(t.Name()),
		alias:     alias,
		byName:    make(map[string]*Property),
		byStore:   make(map[string]*Property),
	}

	if err := collectProperties(e, t, nil); err != nil {
		return nil, err
	}
	if len(e.props) == 0 {
		return nil, fmt.Errorf("esmap: type %s has no mapped fields", t)
	}
	return e, nil
}

func collectProperties(e *Entity, t reflect.Type, prefix []int) error {
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "-" {
			continue
		}

		idx := append(append([]int{}, prefix...), i)

		// Embedded structs contribute their properties by inclusion. The
		// embedded type itself may be unexported; its promoted exported
		// fields stay settable through the flattened index path.
		if f.Anonymous && structKind(f.Type) {
			if err := collectProperties(e, deref(f.Type), idx); err != nil {
				return err
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		p, err := buildProperty(f, idx, tag)
		if err != nil {
			return fmt.Errorf("esmap: field %s.%s: %w", e.name, f.Name, err)
		}
		if err := addProperty(e, p); err != nil {
			return fmt.Errorf("esmap: field %s.%s: %w", e.name, f.Name, err)
		}
	}
	return nil
}

func addProperty(e *Entity, p *Property) error {
	if _, dup := e.byStore[p.storeName]; dup {
		return fmt.Errorf("duplicate store field name %q", p.storeName)
	}
	if p.isID {
		if e.id != nil {
			return fmt.Errorf("duplicate id property (already on %s)", e.id.name)
		}
		e.id = p
	}
	if p.isVersion {
		if e.version != nil {
			return fmt.Errorf("duplicate version property (already on %s)", e.version.name)
		}
		if !numericKind(p.typ) {
			return fmt.Errorf("version property must be numeric, got %s", p.typ)
		}
		e.version = p
	}
	if p.isScore {
		e.score = p
	}
	if p.isSeqNo {
		e.seqNo = p
	}
	if p.isPrimaryTerm {
		e.primaryTerm = p
	}

	e.props = append(e.props, p)
	e.byName[p.name] = p
	e.byStore[p.storeName] = p
	return nil
}

// buildProperty parses the esmap tag: `esmap:"storeName,modifier,..."`.
// Recognized modifiers: id, version, score, seqno, primary_term, a field
// type (text, keyword, long, integer, double, float, boolean, date, object,
// nested, geo_point), and converter=NAME.
func buildProperty(f reflect.StructField, idx []int, tag string) (*Property, error) {
	p := &Property{
		name:  f.Name,
		index: idx,
		typ:   f.Type,
	}
	if t := deref(f.Type); t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		p.elemType = t.Elem()
	}

	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		p.storeName = parts[0]
	} else {
		p.storeName = defaultStoreName(f.Name)
	}

	for _, mod := range parts[1:] {
		switch mod {
		case "id":
			p.isID = true
		case "version":
			p.isVersion = true
		case "score":
			p.isScore = true
		case "seqno":
			p.isSeqNo = true
		case "primary_term":
			p.isPrimaryTerm = true
		case "text", "keyword", "long", "integer", "double", "float",
			"boolean", "date", "object", "nested", "geo_point":
			if p.fieldType != FieldAuto {
				return nil, fmt.Errorf("conflicting field types %q and %q", p.fieldType, mod)
			}
			p.fieldType = FieldType(mod)
		case "":
			// trailing comma, ignore
		default:
			if name, ok := strings.CutPrefix(mod, "converter="); ok {
				p.converter = name
				continue
			}
			return nil, fmt.Errorf("unknown modifier %q", mod)
		}
	}

	if p.fieldType == FieldAuto {
		p.fieldType = inferFieldType(p.valueType())
	}
	return p, nil
}

// defaultStoreName lowercases the first rune of the Go field name.
func defaultStoreName(name string) string {
	return strings.ToLower(name[:1]) + name[1:]
}

func deref(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func structKind(t reflect.Type) bool {
	return deref(t).Kind() == reflect.Struct
}

func numericKind(t reflect.Type) bool {
	switch deref(t).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
