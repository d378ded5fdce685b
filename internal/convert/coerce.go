package convert

import (
	"reflect"
	"strconv"

	"github.com/kailas-cloud/esmap/internal/domain"
)

// coerce performs the generic best-effort value coercion used when no
// custom converter matches and the raw value is not directly assignable:
// numeric widening/narrowing, string to named string types, string to
// numbers. Fails with a ConversionError on anything ambiguous.
func coerce(raw any, fv reflect.Value) error {
	target := fv.Type()
	rv := reflect.ValueOf(raw)

	if rv.Type().AssignableTo(target) {
		fv.Set(rv)
		return nil
	}

	switch target.Kind() {
	case reflect.String:
		if rv.Kind() == reflect.String {
			fv.SetString(rv.String())
			return nil
		}
	case reflect.Bool:
		if rv.Kind() == reflect.Bool {
			fv.SetBool(rv.Bool())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f, ok := asFloat(rv); ok {
			fv.SetInt(int64(f))
			return nil
		}
		if s, ok := raw.(string); ok {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return domain.NewConversionError(raw, target.String(), "not an integer string")
			}
			fv.SetInt(n)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f, ok := asFloat(rv); ok && f >= 0 {
			fv.SetUint(uint64(f))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := asFloat(rv); ok {
			fv.SetFloat(f)
			return nil
		}
		if s, ok := raw.(string); ok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return domain.NewConversionError(raw, target.String(), "not a numeric string")
			}
			fv.SetFloat(f)
			return nil
		}
	case reflect.Interface:
		if rv.Type().Implements(target) || target.NumMethod() == 0 {
			fv.Set(rv)
			return nil
		}
	}

	if rv.Type().ConvertibleTo(target) && rv.Kind() == target.Kind() {
		fv.Set(rv.Convert(target))
		return nil
	}

	return domain.NewConversionError(raw, target.String(), "no applicable coercion")
}

func asFloat(rv reflect.Value) (float64, bool) {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}
