package project

import (
	"reflect"
	"strconv"
	"strings"
)

// renderResults flattens the result sets from a single JSONPath evaluation
// into a rendered scalar string, or reports ok=false when the path resolved
// to nothing renderable (absent, or object-valued).
func renderResults(results [][]reflect.Value) (string, bool) {
	var parts []string
	for _, set := range results {
		for _, v := range set {
			rendered, ok := renderValue(v)
			if !ok {
				continue
			}
			parts = append(parts, rendered)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ","), true
}

// renderValue renders one reflect.Value per the projector's rules:
// scalar string/number/bool render as their textual form; arrays of
// scalars comma-join; objects (maps/structs) are omitted.
func renderValue(v reflect.Value) (string, bool) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), true
	case reflect.Slice, reflect.Array:
		var elems []string
		for i := 0; i < v.Len(); i++ {
			rendered, ok := renderValue(v.Index(i))
			if !ok {
				// An array containing an object element has no well-defined
				// scalar rendering; omit the whole path rather than emit a
				// partial, confusing comma list.
				return "", false
			}
			elems = append(elems, rendered)
		}
		return strings.Join(elems, ","), true
	default:
		// Maps, structs, funcs, channels: object-valued, omitted.
		return "", false
	}
}
