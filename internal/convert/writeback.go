package convert

import (
	"fmt"
	"reflect"

	"github.com/kailas-cloud/esmap/internal/domain"
)

// ApplyIndexedInfo writes the store-assigned identifier and concurrency
// metadata back onto the saved object. target must be a struct pointer.
func (c *Converter) ApplyIndexedInfo(target any, info domain.IndexedInfo) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("esmap: write-back target must be a struct pointer, got %T", target)
	}
	rv = rv.Elem()

	e, err := c.reg.Entity(rv.Type())
	if err != nil {
		return err
	}

	if p := e.IDProperty(); p != nil && info.ID != "" {
		fv := rv.FieldByIndex(p.FieldIndex())
		if fv.Kind() == reflect.String && fv.String() == "" {
			fv.SetString(info.ID)
		}
	}
	if p := e.VersionProperty(); p != nil && info.Version > 0 {
		setInt(rv.FieldByIndex(p.FieldIndex()), info.Version)
	}
	if p := e.SeqNoProperty(); p != nil && info.SeqNo >= 0 {
		setInt(rv.FieldByIndex(p.FieldIndex()), info.SeqNo)
	}
	if p := e.PrimaryTermProperty(); p != nil && info.PrimaryTerm > 0 {
		setInt(rv.FieldByIndex(p.FieldIndex()), info.PrimaryTerm)
	}
	return nil
}

// ApplyScore writes a search score onto the hydrated object's score
// property, if it declares one. target must be a struct pointer.
func (c *Converter) ApplyScore(target any, score float64) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("esmap: score target must be a struct pointer, got %T", target)
	}
	rv = rv.Elem()

	e, err := c.reg.Entity(rv.Type())
	if err != nil {
		return err
	}
	p := e.ScoreProperty()
	if p == nil {
		return nil
	}
	fv := rv.FieldByIndex(p.FieldIndex())
	switch fv.Kind() {
	case reflect.Float32, reflect.Float64:
		fv.SetFloat(score)
	}
	return nil
}

// EntityID extracts the identifier value of an entity instance as a string.
func (c *Converter) EntityID(v any) (string, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	e, err := c.reg.Entity(rv.Type())
	if err != nil {
		return "", err
	}
	p := e.IDProperty()
	if p == nil {
		return "", fmt.Errorf("esmap: type %s declares no id property", e.Name())
	}
	fv := rv.FieldByIndex(p.FieldIndex())
	switch fv.Kind() {
	case reflect.String:
		return fv.String(), nil
	case reflect.Int, reflect.Int64:
		return fmt.Sprintf("%d", fv.Int()), nil
	default:
		return fmt.Sprint(fv.Interface()), nil
	}
}

func setInt(fv reflect.Value, v int64) {
	switch fv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fv.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fv.SetUint(uint64(v))
	case reflect.Float32, reflect.Float64:
		fv.SetFloat(float64(v))
	}
}
