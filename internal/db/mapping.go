package db

import (
	"fmt"
	"reflect"

	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

// BuildMapping renders the field mapping for an entity as a document, in
// the shape index-creation APIs expect: a properties object keyed by store
// name, with nested entities expanded recursively.
func BuildMapping(reg *mapping.Registry, e *mapping.Entity) (*document.Document, error) {
	props, err := buildProperties(reg, e, make(map[*mapping.Entity]bool))
	if err != nil {
		return nil, fmt.Errorf("build mapping for %s: %w", e.Name(), err)
	}
	out := document.New()
	out.Set("properties", props)
	return out, nil
}

func buildProperties(reg *mapping.Registry, e *mapping.Entity, visiting map[*mapping.Entity]bool) (*document.Document, error) {
	if visiting[e] {
		return nil, fmt.Errorf("mapping cycle through %s", e.Name())
	}
	visiting[e] = true
	defer delete(visiting, e)

	props := document.New()
	for _, p := range e.Properties() {
		// The identifier travels as document metadata, and the score,
		// sequence number, and primary term are read-only response
		// attributes. None of them belong in the field mapping.
		if p.IsID() || p.IsScore() || p.IsSeqNo() || p.IsPrimaryTerm() {
			continue
		}

		field := document.New()
		ft := p.FieldType()

		nestedType := p.Type()
		if p.IsCollection() {
			nestedType = p.ElemType()
		}
		for nestedType.Kind() == reflect.Pointer {
			nestedType = nestedType.Elem()
		}

		if p.IsEntity() && nestedType.Kind() == reflect.Struct {
			nested, err := reg.Entity(nestedType)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", p.Name(), err)
			}
			inner, err := buildProperties(reg, nested, visiting)
			if err != nil {
				return nil, err
			}
			if ft == mapping.FieldNested {
				field.Set("type", string(mapping.FieldNested))
			}
			field.Set("properties", inner)
		} else {
			field.Set("type", string(ft))
		}

		props.Set(p.StoreName(), field)
	}
	return props, nil
}
