// Package record provides the value tree that codecs read from and decode
// into, and the lookups that walk it by dotted path.
package record

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"

	bynerr "github.com/byntic/byntic-go/internal/errors"
)

// TagName is the struct tag that names fields of Go records.
const TagName = "byntic"

// Fielder is implemented by anything that exposes named fields.
type Fielder interface {
	// Field returns the value of the named field and whether it exists.
	Field(name string) (any, bool)
}

// Record is a decoded record. Nested records are Records; lists of records
// are []any of Records.
type Record map[string]any

// Field implements Fielder.
func (r Record) Field(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

// Lookup resolves a dotted path such as "roles.role_id".
func (r Record) Lookup(path string) (any, error) {
	return Resolve(r, strings.Split(path, "."))
}

type mapFielder map[string]any

func (m mapFielder) Field(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// structView exposes the tagged fields of a struct value.
type structView struct {
	v     reflect.Value
	index map[string][]int
}

func (s structView) Field(name string) (any, bool) {
	idx, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.v.FieldByIndex(idx).Interface(), true
}

var structIndexes = xsync.NewMapOf[reflect.Type, map[string][]int]()

func indexOf(t reflect.Type) map[string][]int {
	idx, _ := structIndexes.LoadOrCompute(t, func() map[string][]int {
		out := make(map[string][]int, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			name, ok := FieldName(sf)
			if ok {
				out[name] = sf.Index
			}
		}
		return out
	})
	return idx
}

// FieldName returns the wire name of a struct field and whether it takes part
// in encoding at all.
func FieldName(sf reflect.StructField) (string, bool) {
	tag, ok := sf.Tag.Lookup(TagName)
	if !ok || tag == "-" || !sf.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name = strings.TrimSpace(name); name == "" {
		name = sf.Name
	}
	return name, true
}

// Of returns a Fielder over v. Records, maps with string keys, Fielders,
// structs and non-nil pointers to structs are supported.
func Of(v any) (Fielder, bool) {
	switch x := v.(type) {
	case Fielder:
		return x, true
	case map[string]any:
		return mapFielder(x), true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	if f, ok := rv.Interface().(Fielder); ok {
		return f, true
	}
	return structView{v: rv, index: indexOf(rv.Type())}, true
}

// IsList reports whether v is a list in the value tree: any slice other than
// a byte slice.
func IsList(v any) bool {
	if _, ok := v.([]any); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8
}

// Each calls fn for every element of a list and returns its length. It
// returns -1 when v is not a list.
func Each(v any, fn func(i int, elem any) error) (int, error) {
	if l, ok := v.([]any); ok {
		for i, e := range l {
			if err := fn(i, e); err != nil {
				return len(l), err
			}
		}
		return len(l), nil
	}
	if !IsList(v) {
		return -1, nil
	}
	rv := reflect.ValueOf(v)
	n := rv.Len()
	for i := 0; i < n; i++ {
		if err := fn(i, rv.Index(i).Interface()); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Resolve applies each segment in turn. When the current value is a list the
// segment is applied to every element, so "roles.role_id" on a record with a
// list of roles yields the list of their ids.
func Resolve(v any, segments []string) (any, error) {
	cur := v
	for i, seg := range segments {
		next, err := apply(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("%w at %q", err, strings.Join(segments[:i+1], "."))
		}
		cur = next
	}
	return cur, nil
}

func apply(v any, seg string) (any, error) {
	if IsList(v) {
		var out []any
		n, err := Each(v, func(_ int, elem any) error {
			x, err := apply(elem, seg)
			if err != nil {
				return err
			}
			out = append(out, x)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = make([]any, 0, n)
		}
		return out, nil
	}

	f, ok := Of(v)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no fields", bynerr.ErrTypeMismatch, v)
	}
	x, ok := f.Field(seg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", bynerr.ErrMissingField, seg)
	}
	return x, nil
}
