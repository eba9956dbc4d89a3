// Package serialize converts arbitrary Go values into JSON-safe form.
//
// Tool results, event payloads, and extracted pipeline outputs pass through
// Normalize before they are persisted or sent over the wire, so callers never
// have to worry about a value that encoding/json cannot handle.
package serialize

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// maxDepth bounds recursion so cyclic structures degrade to a string
// instead of overflowing the stack.
const maxDepth = 32

// Normalize returns a value composed only of JSON-safe types: nil, bool,
// float64/int64, string, []any, and map[string]any.
//
// Dispatch rules:
//   - time.Time renders as RFC3339, time.Duration as its String form
//   - []byte is base64-encoded
//   - error values render as their message
//   - map keys are stringified, struct fields honor json tags
//   - channels, funcs, and unsafe pointers degrade to a type-name string
func Normalize(v any) any {
	return normalize(reflect.ValueOf(v), 0)
}

func normalize(rv reflect.Value, depth int) any {
	if !rv.IsValid() {
		return nil
	}
	if depth > maxDepth {
		return fmt.Sprintf("<max depth exceeded: %s>", rv.Type())
	}

	// Concrete-type dispatch before kind dispatch.
	switch val := rv.Interface().(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339)
	case time.Duration:
		return val.String()
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(val, &decoded); err == nil {
			return decoded
		}
		return string(val)
	case error:
		return val.Error()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalize(rv.Index(i), depth+1)
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[stringifyKey(iter.Key())] = normalize(iter.Value(), depth+1)
		}
		return out
	case reflect.Struct:
		return normalizeStruct(rv, depth)
	default:
		// Chan, Func, UnsafePointer and anything else without a JSON shape.
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("<%s>", rv.Type())
	}
}

func normalizeStruct(rv reflect.Value, depth int) map[string]any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		omitEmpty := false
		if tag, ok := field.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}

		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}

		if field.Anonymous && fv.Kind() == reflect.Struct && !hasJSONTag(field) {
			// Embedded structs flatten like encoding/json does.
			for k, v := range normalizeStruct(fv, depth+1) {
				if _, exists := out[k]; !exists {
					out[k] = v
				}
			}
			continue
		}

		out[name] = normalize(fv, depth+1)
	}
	return out
}

func hasJSONTag(field reflect.StructField) bool {
	_, ok := field.Tag.Lookup("json")
	return ok
}

func stringifyKey(key reflect.Value) string {
	switch key.Kind() {
	case reflect.String:
		return key.String()
	default:
		return fmt.Sprintf("%v", key.Interface())
	}
}

// ToStruct converts a map[string]any into a typed struct.
// This uses a JSON round trip to handle type conversion properly.
func ToStruct(m map[string]any, target any) error {
	if m == nil {
		return nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return nil
}
