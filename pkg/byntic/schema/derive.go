package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/goccy/go-json"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/types"
)

// TagName is the struct tag read by Derive.
const TagName = "byntic"

// Derive builds a Schema from a struct type. v may be a struct value, a
// pointer to one, or a reflect.Type.
//
// Only exported fields carrying a tag take part, in declaration order:
//
//	ID    uint32   `byntic:"id,UInt32"`
//	Name  string   `byntic:"name,FixedString(8, 'UTF-16LE')"`
//	Tags  []string `byntic:"tags,String"`
//	Roles []Role   `byntic:"roles"`
//	Addr  Address  `byntic:"addr"`
//	Note  string   `byntic:"note,Skip,default=D"`
//	Tmp   string   `byntic:"-"`
//
// A struct field without a type becomes Nested, a slice of structs becomes
// ListOf, and a slice with a type becomes a List of that codec. JSON codecs
// always take the whole field, and a byte slice is one value for codecs that
// take bytes (String, FixedString, UUID) and a list of bytes otherwise. A default option is parsed as the field's Go
// type; strings are taken verbatim and everything else as JSON.
func Derive(v any) (*Schema, error) {
	rt, ok := v.(reflect.Type)
	if !ok {
		rt = reflect.TypeOf(v)
	}
	if rt == nil {
		return nil, bynerr.Errorf("cannot derive a schema from nil")
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return derive(rt, map[reflect.Type]bool{})
}

func derive(rt reflect.Type, visiting map[reflect.Type]bool) (*Schema, error) {
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", bynerr.ErrInvalidSchema, rt)
	}
	if visiting[rt] {
		return nil, fmt.Errorf("%w: %v refers to itself", bynerr.ErrInvalidSchema, rt)
	}
	visiting[rt] = true
	defer delete(visiting, rt)

	var fields []Field
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}
		f, err := deriveField(sf, tag, visiting)
		if err != nil {
			return nil, fmt.Errorf("%v.%s: %w", rt, sf.Name, err)
		}
		fields = append(fields, f.withIndex(sf.Index))
	}

	s, err := New(rt.Name(), fields...)
	if err != nil {
		return nil, err
	}
	s.goType = rt
	return s, nil
}

func deriveField(sf reflect.StructField, tag string, visiting map[reflect.Type]bool) (Field, error) {
	parts := splitTag(tag)
	name := strings.TrimSpace(parts[0])
	if name == "" {
		name = sf.Name
	}

	var (
		typeName string
		opts     []Option
	)
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if key, val, ok := strings.Cut(p, "="); ok && strings.TrimSpace(key) == "default" {
			def, err := parseDefault(sf.Type, val)
			if err != nil {
				return Field{}, err
			}
			opts = append(opts, Default(def))
			continue
		}
		if typeName != "" {
			return Field{}, fmt.Errorf("%w: unexpected tag option %q", bynerr.ErrInvalidSchema, p)
		}
		typeName = p
	}

	ft := sf.Type
	if typeName == "" {
		switch {
		case isRecord(ft):
			elem, err := derive(ft, visiting)
			if err != nil {
				return Field{}, err
			}
			return Nested(name, elem, opts...), nil
		case ft.Kind() == reflect.Slice && isRecord(ft.Elem()):
			elem, err := derive(ft.Elem(), visiting)
			if err != nil {
				return Field{}, err
			}
			return ListOf(name, elem, opts...), nil
		}
		return Field{}, fmt.Errorf("%w: field %q needs a type", bynerr.ErrInvalidSchema, name)
	}

	codec, err := types.Parse(typeName)
	if err != nil {
		return Field{}, fmt.Errorf("%w: field %q: %w", bynerr.ErrInvalidSchema, name, err)
	}
	switch {
	case codec == types.Skip:
		return Skip(name, opts...), nil
	case codec == types.JSON:
		return Leaf(name, codec, opts...), nil
	case ft.Kind() == reflect.Slice && (ft.Elem().Kind() != reflect.Uint8 || !types.TakesBytes(codec)):
		return List(name, codec, opts...), nil
	}
	return Leaf(name, codec, opts...), nil
}

// leafStructs are struct types that codecs read and write as scalars.
var leafStructs = map[string]bool{
	"time.Time":       true,
	"civil.Date":      true,
	"decimal.Decimal": true,
	"big.Int":         true,
	"types.Uint128":   true,
}

// isRecord reports whether t should be derived as a nested record.
func isRecord(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && !leafStructs[t.String()]
}

// splitTag splits a tag on commas outside parentheses and quotes.
func splitTag(tag string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, ch := range tag {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case ch == ',' && depth == 0:
			parts = append(parts, tag[start:i])
			start = i + 1
		}
	}
	return append(parts, tag[start:])
}

func parseDefault(t reflect.Type, raw string) (any, error) {
	if t.Kind() == reflect.String {
		return reflect.ValueOf(raw).Convert(t).Interface(), nil
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
		return nil, fmt.Errorf("%w: default %q for %v: %v", bynerr.ErrInvalidSchema, raw, t, err)
	}
	return ptr.Elem().Interface(), nil
}
