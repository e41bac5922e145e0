package formatters

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

const maxSafeDepth = 10

// marshalSafe marshals v, falling back to a copy with cycles and unsupported
// values replaced by placeholders when plain encoding fails.
func marshalSafe(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err == nil {
		return data, nil
	}
	return json.Marshal(safeCopy(v, make(map[uintptr]bool), 0))
}

// safeCopy recursively copies value with circular reference detection
func safeCopy(value interface{}, visited map[uintptr]bool, depth int) interface{} {
	if depth > maxSafeDepth {
		return "[max depth exceeded]"
	}
	if value == nil {
		return nil
	}
	if m, ok := value.(json.Marshaler); ok {
		if _, err := m.MarshalJSON(); err == nil {
			return value
		}
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if visited[addr] {
			return "[circular reference]"
		}
		visited[addr] = true
		defer delete(visited, addr)

		result := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			result[fmt.Sprint(iter.Key().Interface())] = safeCopy(iter.Value().Interface(), visited, depth+1)
		}
		return result

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if visited[addr] {
			return "[circular reference]"
		}
		visited[addr] = true
		defer delete(visited, addr)
		fallthrough

	case reflect.Array:
		result := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			result[i] = safeCopy(v.Index(i).Interface(), visited, depth+1)
		}
		return result

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		addr := v.Pointer()
		if visited[addr] {
			return "[circular reference]"
		}
		visited[addr] = true
		defer delete(visited, addr)
		return safeCopy(v.Elem().Interface(), visited, depth+1)

	case reflect.Struct:
		if _, err := json.Marshal(value); err == nil {
			return value
		}
		result := make(map[string]interface{})
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			if field.IsExported() {
				result[field.Name] = safeCopy(v.Field(i).Interface(), visited, depth+1)
			}
		}
		return result

	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("[%s]", v.Kind())

	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return value

	default:
		return value
	}
}

// sanitizeEntry replaces values in the entry's context and meta that cannot
// be JSON encoded.
func sanitizeEntry(entry types.LogEntry) types.LogEntry {
	visited := make(map[uintptr]bool)
	if entry.Context != nil {
		entry.Context, _ = safeCopy(entry.Context, visited, 0).(map[string]interface{})
	}
	if entry.Meta != nil {
		entry.Meta, _ = safeCopy(entry.Meta, visited, 0).(map[string]interface{})
	}
	return entry
}
