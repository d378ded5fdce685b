package mapping

import (
	"reflect"
	"time"

	"github.com/kailas-cloud/esmap/internal/domain/geo"
)

// FieldType is the store-side type category of a mapped property.
type FieldType string

const (
	// FieldAuto lets the field type be inferred from the Go type.
	FieldAuto FieldType = ""
	// FieldText is an analyzed full-text field.
	FieldText FieldType = "text"
	// FieldKeyword is an exact-value string field.
	FieldKeyword FieldType = "keyword"
	// FieldLong is a 64-bit integer field.
	FieldLong FieldType = "long"
	// FieldInteger is a 32-bit integer field.
	FieldInteger FieldType = "integer"
	// FieldDouble is a 64-bit float field.
	FieldDouble FieldType = "double"
	// FieldFloat is a 32-bit float field.
	FieldFloat FieldType = "float"
	// FieldBoolean is a boolean field.
	FieldBoolean FieldType = "boolean"
	// FieldDate is a date field serialized as RFC 3339.
	FieldDate FieldType = "date"
	// FieldObject is an embedded object field.
	FieldObject FieldType = "object"
	// FieldNested is a nested object field indexed independently.
	FieldNested FieldType = "nested"
	// FieldGeoPoint is a geographic point field.
	FieldGeoPoint FieldType = "geo_point"
)

var timeType = reflect.TypeOf(time.Time{})
var geoPointType = reflect.TypeOf(geo.Point{})

// Property describes one mapped field of an entity.
type Property struct {
	name      string
	storeName string
	index     []int // reflect field index path (embedded structs flattened)
	typ       reflect.Type
	elemType  reflect.Type // element type for slices, nil otherwise
	fieldType FieldType

	isID          bool
	isVersion     bool
	isScore       bool
	isSeqNo       bool
	isPrimaryTerm bool

	converter string // registered custom converter name, "" if none
}

// Name returns the Go field name.
func (p *Property) Name() string { return p.name }

// StoreName returns the store-side field name.
func (p *Property) StoreName() string { return p.storeName }

// FieldIndex returns the reflect field index path.
func (p *Property) FieldIndex() []int { return p.index }

// Type returns the declared Go type.
func (p *Property) Type() reflect.Type { return p.typ }

// ElemType returns the collection element type, or nil for scalars.
func (p *Property) ElemType() reflect.Type { return p.elemType }

// FieldType returns the store-side type category.
func (p *Property) FieldType() FieldType { return p.fieldType }

// IsID reports whether the property holds the document identifier.
func (p *Property) IsID() bool { return p.isID }

// IsVersion reports whether the property holds the document version.
func (p *Property) IsVersion() bool { return p.isVersion }

// IsScore reports whether the property receives the search score.
func (p *Property) IsScore() bool { return p.isScore }

// IsSeqNo reports whether the property receives the sequence number.
func (p *Property) IsSeqNo() bool { return p.isSeqNo }

// IsPrimaryTerm reports whether the property receives the primary term.
func (p *Property) IsPrimaryTerm() bool { return p.isPrimaryTerm }

// IsEntity reports whether the property's value type is a mappable struct
// (object or nested category).
func (p *Property) IsEntity() bool {
	return p.fieldType == FieldObject || p.fieldType == FieldNested
}

// IsCollection reports whether the property is slice-valued.
func (p *Property) IsCollection() bool { return p.elemType != nil }

// Converter returns the registered custom converter name.
func (p *Property) Converter() string { return p.converter }

// valueType returns the scalar or element type the field type derives from.
func (p *Property) valueType() reflect.Type {
	if p.elemType != nil {
		return p.elemType
	}
	return p.typ
}

// inferFieldType maps a Go type to its default store-side category.
func inferFieldType(t reflect.Type) FieldType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == timeType:
		return FieldDate
	case t == geoPointType:
		return FieldGeoPoint
	}
	switch t.Kind() {
	case reflect.String:
		return FieldKeyword
	case reflect.Bool:
		return FieldBoolean
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return FieldLong
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return FieldInteger
	case reflect.Float64:
		return FieldDouble
	case reflect.Float32:
		return FieldFloat
	case reflect.Struct, reflect.Map:
		return FieldObject
	default:
		return FieldKeyword
	}
}
