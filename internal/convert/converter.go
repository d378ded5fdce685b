// Package convert implements the bidirectional mapper between generic
// documents and typed domain instances, driven by the entity metadata model.
package convert

import (
	"fmt"
	"reflect"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/geo"
	"github.com/kailas-cloud/esmap/internal/mapping"
)

// TypeAliasKey is the document key carrying the polymorphic type alias.
const TypeAliasKey = "_type"

// FieldConverter converts one field value between its Go form and its
// store form. Registered per name (bound via the converter= tag modifier)
// or per declared Go type.
type FieldConverter interface {
	ToStore(v any) (any, error)
	FromStore(v any) (any, error)
}

// Converter maps entities to documents and back.
type Converter struct {
	reg    *mapping.Registry
	byName map[string]FieldConverter
	byType map[reflect.Type]FieldConverter
}

// New creates a converter over the given metadata registry.
func New(reg *mapping.Registry) *Converter {
	return &Converter{
		reg:    reg,
		byName: make(map[string]FieldConverter),
		byType: make(map[reflect.Type]FieldConverter),
	}
}

// RegisterNamed registers a custom converter addressable from the
// converter= tag modifier.
func (c *Converter) RegisterNamed(name string, fc FieldConverter) {
	c.byName[name] = fc
}

// RegisterForType registers a custom converter for every property whose
// declared type matches t.
func (c *Converter) RegisterForType(t reflect.Type, fc FieldConverter) {
	c.byType[t] = fc
}

// fieldConverter resolves the custom converter for a property:
// exact-field binding wins over declared-type binding.
func (c *Converter) fieldConverter(p *mapping.Property) FieldConverter {
	if name := p.Converter(); name != "" {
		if fc, ok := c.byName[name]; ok {
			return fc
		}
	}
	if fc, ok := c.byType[p.Type()]; ok {
		return fc
	}
	return nil
}

// Write converts an entity instance into a Document. The type alias is
// written first when the entity's type is a registered polymorphic subtype.
func (c *Converter) Write(v any) (*document.Document, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	e, err := c.reg.Entity(rv.Type())
	if err != nil {
		return nil, err
	}

	doc := document.New()
	if e.Alias() != "" {
		doc.Set(TypeAliasKey, e.Alias())
	}

	for _, p := range e.Properties() {
		// Score and concurrency metadata flow store-to-entity only.
		if p.IsScore() || p.IsSeqNo() || p.IsPrimaryTerm() {
			continue
		}
		fv := rv.FieldByIndex(p.FieldIndex())
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}

		out, err := c.writeValue(p, fv)
		if err != nil {
			return nil, fmt.Errorf("write %s.%s: %w", e.Name(), p.Name(), err)
		}
		doc.Set(p.StoreName(), out)
	}
	return doc, nil
}

func (c *Converter) writeValue(p *mapping.Property, fv reflect.Value) (any, error) {
	if fc := c.fieldConverter(p); fc != nil {
		return fc.ToStore(fv.Interface())
	}
	if p.IsCollection() && fv.Kind() == reflect.Slice {
		out := make([]any, fv.Len())
		for i := range fv.Len() {
			ev, err := c.writeScalar(p, fv.Index(i))
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	}
	return c.writeScalar(p, fv)
}

func (c *Converter) writeScalar(p *mapping.Property, fv reflect.Value) (any, error) {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, nil
		}
		fv = fv.Elem()
	}

	switch v := fv.Interface().(type) {
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case geo.Point:
		pt := document.New()
		pt.Set("lat", v.Lat)
		pt.Set("lon", v.Lon)
		return pt, nil
	}

	switch fv.Kind() {
	case reflect.Struct:
		// Nested entity: recurse through the metadata model so subtype
		// aliases inside nested documents survive the round trip.
		return c.Write(fv.Interface())
	case reflect.Map:
		out := document.New()
		iter := fv.MapRange()
		for iter.Next() {
			key, ok := iter.Key().Interface().(string)
			if !ok {
				return nil, domain.NewConversionError(
					iter.Key().Interface(), "string", "map keys must be strings")
			}
			out.Set(key, iter.Value().Interface())
		}
		return out, nil
	default:
		return fv.Interface(), nil
	}
}

// Read converts a Document into an instance of target (or of the subtype
// named by the document's type alias). The result is a value of the
// resolved struct type.
func (c *Converter) Read(doc *document.Document, target reflect.Type) (any, error) {
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	typ, err := c.resolveType(doc, target)
	if err != nil {
		return nil, err
	}
	e, err := c.reg.Entity(typ)
	if err != nil {
		return nil, err
	}

	rv := reflect.New(typ).Elem()
	for _, p := range e.Properties() {
		raw, ok := doc.Get(p.StoreName())
		if !ok || raw == nil {
			continue
		}
		fv := rv.FieldByIndex(p.FieldIndex())
		if err := c.readValue(p, raw, fv); err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", e.Name(), p.Name(), err)
		}
	}
	return rv.Interface(), nil
}

// resolveType picks the concrete type to instantiate: the alias-named
// subtype when present and registered, otherwise the requested target.
func (c *Converter) resolveType(doc *document.Document, target reflect.Type) (reflect.Type, error) {
	alias, ok := doc.GetString(TypeAliasKey)
	if !ok {
		return target, nil
	}
	typ, err := c.reg.SubtypeFor(alias)
	if err != nil {
		return nil, domain.NewConversionError(alias, target.String(),
			"document names an unregistered type alias")
	}
	return typ, nil
}

func (c *Converter) readValue(p *mapping.Property, raw any, fv reflect.Value) error {
	if fc := c.fieldConverter(p); fc != nil {
		out, err := fc.FromStore(raw)
		if err != nil {
			return err
		}
		return assign(out, fv)
	}

	if p.IsCollection() {
		arr, ok := raw.([]any)
		if !ok {
			// A single value for a collection property becomes a one-element slice.
			arr = []any{raw}
		}
		slice := reflect.MakeSlice(fv.Type(), len(arr), len(arr))
		for i, el := range arr {
			if err := c.readScalar(el, slice.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		fv.Set(slice)
		return nil
	}
	return c.readScalar(raw, fv)
}

func (c *Converter) readScalar(raw any, fv reflect.Value) error {
	target := fv.Type()
	if target.Kind() == reflect.Pointer {
		ptr := reflect.New(target.Elem())
		if err := c.readScalar(raw, ptr.Elem()); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}

	switch target {
	case timeType:
		s, ok := raw.(string)
		if !ok {
			return domain.NewConversionError(raw, "time.Time", "expected RFC 3339 string")
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return domain.NewConversionError(raw, "time.Time", err.Error())
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	case geoPointType:
		nd, ok := raw.(*document.Document)
		if !ok {
			return domain.NewConversionError(raw, "geo.Point", "expected lat/lon object")
		}
		lat, latOK := numeric(nd, "lat")
		lon, lonOK := numeric(nd, "lon")
		if !latOK || !lonOK {
			return domain.NewConversionError(raw, "geo.Point", "missing lat or lon")
		}
		fv.Set(reflect.ValueOf(geo.Point{Lat: lat, Lon: lon}))
		return nil
	}

	if target.Kind() == reflect.Struct {
		nd, ok := raw.(*document.Document)
		if !ok {
			return domain.NewConversionError(raw, target.String(), "expected nested document")
		}
		out, err := c.Read(nd, target)
		if err != nil {
			return err
		}
		ov := reflect.ValueOf(out)
		if !ov.Type().AssignableTo(target) {
			return domain.NewConversionError(out, target.String(),
				"alias-resolved subtype is not assignable to the declared type")
		}
		fv.Set(ov)
		return nil
	}
	if target.Kind() == reflect.Map {
		nd, ok := raw.(*document.Document)
		if !ok {
			return domain.NewConversionError(raw, target.String(), "expected nested document")
		}
		mv := reflect.MakeMapWithSize(target, nd.Len())
		err := nd.Walk(func(k string, v any) error {
			ev := reflect.New(target.Elem()).Elem()
			if err := coerce(v, ev); err != nil {
				return err
			}
			mv.SetMapIndex(reflect.ValueOf(k), ev)
			return nil
		})
		if err != nil {
			return err
		}
		fv.Set(mv)
		return nil
	}

	return coerce(raw, fv)
}

func numeric(d *document.Document, key string) (float64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func assign(v any, fv reflect.Value) error {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	return coerce(v, fv)
}

var timeType = reflect.TypeOf(time.Time{})
var geoPointType = reflect.TypeOf(geo.Point{})
