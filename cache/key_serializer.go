package cache

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter between the endpoint and the
// serialized parameter segment of a query key.
const KeySeparator = "::"

// maxSerializeDepth bounds the reflection walk so that pathological inputs
// fail with a ConfigError instead of exhausting the stack.
const maxSerializeDepth = 32

// defaultKeySerializer implements KeySerializer using a reflection walk that
// sorts map keys and struct fields lexicographically and omits nil values,
// so parameter order and absent parameters never change the key. Serialized
// segments longer than maxInline collapse to an xxhash digest; the digest is
// a pure function of the canonical form, so determinism is preserved.
type defaultKeySerializer struct {
	maxInline int
}

// NewDefaultKeySerializer creates a key serializer with the default inline
// length limit.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{maxInline: DefaultConfig().MaxInlineKeyLength}
}

// NewKeySerializerWithLimit creates a key serializer that collapses
// parameter segments longer than maxInline bytes to a digest.
func NewKeySerializerWithLimit(maxInline int) KeySerializer {
	if maxInline < 16 {
		maxInline = 16
	}
	return &defaultKeySerializer{maxInline: maxInline}
}

// SerializeKey builds the deterministic query key for endpoint and params.
// Two parameter values that are deep-equal after dropping nil-valued members
// produce the same key. Params containing functions, channels, complex
// numbers, or circular references fail with a ConfigError.
func (s *defaultKeySerializer) SerializeKey(endpoint string, params any) (string, error) {
	if endpoint == "" {
		return "", &ConfigError{Field: "endpoint", Message: "must not be empty"}
	}
	if params == nil {
		return endpoint, nil
	}

	canonical, present, err := s.serializeValue(reflect.ValueOf(params), map[uintptr]struct{}{}, 0)
	if err != nil {
		return "", err
	}
	if !present {
		return endpoint, nil
	}
	if len(canonical) > s.maxInline {
		canonical = fmt.Sprintf("#%016x", xxhash.Sum64String(canonical))
	}
	return endpoint + KeySeparator + canonical, nil
}

// serializeValue walks one value. The present return is false when the value
// is a nil pointer, nil interface, nil map, or nil slice; such values are
// treated as absent parameters and omitted from the canonical form.
func (s *defaultKeySerializer) serializeValue(v reflect.Value, seen map[uintptr]struct{}, depth int) (string, bool, error) {
	if depth > maxSerializeDepth {
		return "", false, &ConfigError{Field: "params", Message: "too deeply nested or circular"}
	}
	if !v.IsValid() {
		return "", false, nil
	}

	// Types that know their own canonical text form, e.g. time.Time.
	if v.CanInterface() {
		if tm, ok := v.Interface().(encoding.TextMarshaler); ok {
			if v.Kind() == reflect.Ptr && v.IsNil() {
				return "", false, nil
			}
			b, err := tm.MarshalText()
			if err != nil {
				return "", false, &ConfigError{Field: "params", Message: "text marshaling failed: " + err.Error()}
			}
			return string(b), true, nil
		}
	}

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return "", false, nil
		}
		addr := v.Pointer()
		if _, ok := seen[addr]; ok {
			return "", false, &ConfigError{Field: "params", Message: "circular reference"}
		}
		seen[addr] = struct{}{}
		out, present, err := s.serializeValue(v.Elem(), seen, depth+1)
		delete(seen, addr)
		return out, present, err

	case reflect.Interface:
		if v.IsNil() {
			return "", false, nil
		}
		return s.serializeValue(v.Elem(), seen, depth+1)

	case reflect.Map:
		if v.IsNil() {
			return "", false, nil
		}
		addr := v.Pointer()
		if _, ok := seen[addr]; ok {
			return "", false, &ConfigError{Field: "params", Message: "circular reference"}
		}
		seen[addr] = struct{}{}
		out, err := s.serializeMap(v, seen, depth)
		delete(seen, addr)
		return out, true, err

	case reflect.Slice:
		if v.IsNil() {
			return "", false, nil
		}
		addr := v.Pointer()
		if _, ok := seen[addr]; ok {
			return "", false, &ConfigError{Field: "params", Message: "circular reference"}
		}
		seen[addr] = struct{}{}
		out, err := s.serializeList(v, seen, depth)
		delete(seen, addr)
		return out, true, err

	case reflect.Array:
		out, err := s.serializeList(v, seen, depth)
		return out, true, err

	case reflect.Struct:
		out, err := s.serializeStruct(v, seen, depth)
		return out, true, err

	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return fmt.Sprintf("%v", v.Interface()), true, nil

	case reflect.Func:
		return "", false, &ConfigError{Field: "params", Message: "func values are not serializable"}
	case reflect.Chan:
		return "", false, &ConfigError{Field: "params", Message: "chan values are not serializable"}
	case reflect.Complex64, reflect.Complex128:
		return "", false, &ConfigError{Field: "params", Message: "complex values are not serializable"}
	default:
		return "", false, &ConfigError{Field: "params", Message: "unsupported kind " + v.Kind().String()}
	}
}

// serializeMap emits sorted key=value pairs, skipping absent values so a
// map with a nil member keys identically to the map without it.
func (s *defaultKeySerializer) serializeMap(v reflect.Value, seen map[uintptr]struct{}, depth int) (string, error) {
	pairs := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		keyStr, keyPresent, err := s.serializeValue(iter.Key(), seen, depth+1)
		if err != nil {
			return "", err
		}
		if !keyPresent {
			return "", &ConfigError{Field: "params", Message: "map key serialized to nothing"}
		}
		valStr, valPresent, err := s.serializeValue(iter.Value(), seen, depth+1)
		if err != nil {
			return "", err
		}
		if !valPresent {
			continue
		}
		pairs = append(pairs, keyStr+"="+valStr)
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}", nil
}

// serializeList emits ordered elements; element order is significant.
func (s *defaultKeySerializer) serializeList(v reflect.Value, seen map[uintptr]struct{}, depth int) (string, error) {
	parts := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem, present, err := s.serializeValue(v.Index(i), seen, depth+1)
		if err != nil {
			return "", err
		}
		if !present {
			elem = "nil"
		}
		parts = append(parts, elem)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// serializeStruct emits exported fields sorted by name, skipping fields
// whose value is absent. Declaration order never affects the key.
func (s *defaultKeySerializer) serializeStruct(v reflect.Value, seen map[uintptr]struct{}, depth int) (string, error) {
	t := v.Type()
	pairs := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		valStr, present, err := s.serializeValue(v.Field(i), seen, depth+1)
		if err != nil {
			return "", err
		}
		if !present {
			continue
		}
		pairs = append(pairs, field.Name+"="+valStr)
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}", nil
}
