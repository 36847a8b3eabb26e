// Package schema describes record layouts and linearizes them into the flat,
// ordered column list that the dumper and parser walk.
//
// A Schema is an ordered list of field declarations. Declaration order is the
// wire order; there are no field tags on the wire. Each declaration is one of:
//
//	Leaf(name, codec)      one scalar
//	List(name, codec)      a list of scalars
//	ListOf(name, schema)   a list of records, stored column by column
//	Nested(name, schema)   a record embedded in place
//	Skip(name)             excluded from the wire, filled from a default
//
// Linearization happens once in New and the result is reused for every encode
// and decode. Schemas are immutable afterwards and safe for concurrent use.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/types"
)

// Descriptor is one column of the linearized schema.
type Descriptor struct {
	// Path is the dotted location of the value, e.g. "roles.role_id".
	Path     string
	Segments []string
	Codec    types.Codec

	// Depth is the number of list levels on the wire: 0 for a plain leaf,
	// 1 for a list of scalars or a leaf inside a list of records, and one
	// more for every further enclosing list.
	Depth int

	// Outer is the number of enclosing lists of records.
	Outer int

	// Field is the declaration the column came from.
	Field *Field
}

// IsList reports whether the column carries a count prefix.
func (d Descriptor) IsList() bool {
	return d.Depth > 0
}

// ElemDefault returns the default of the column within one record of its
// innermost enclosing list of records, or of the top-level record.
func (d Descriptor) ElemDefault() any {
	if v, ok := d.Field.DefaultValue(); ok {
		return v
	}
	if d.Depth > d.Outer {
		return []any{}
	}
	return d.Codec.Zero()
}

// SkipField is a Skip declaration located in the schema tree.
type SkipField struct {
	Path     string
	Segments []string

	// Outer is the number of enclosing lists of records. When it is non-zero
	// the default is repeated once per element.
	Outer int

	Field *Field
}

// Value returns the default for one record.
func (s SkipField) Value() any {
	v, _ := s.Field.DefaultValue()
	return v
}

// Schema is an immutable record layout.
type Schema struct {
	Name   string
	Fields []Field

	goType reflect.Type

	descs []Descriptor
	paths []string
	skips []SkipField
	lists map[string]int
	index map[string]int
}

// New validates the field declarations and linearizes them.
func New(name string, fields ...Field) (*Schema, error) {
	s := &Schema{Name: name, Fields: append([]Field(nil), fields...)}
	if err := s.validate(); err != nil {
		return nil, err
	}
	s.linearize()
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(name string, fields ...Field) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		switch {
		case f.Name == "":
			return s.invalid("field %d has no name", i)
		case strings.Contains(f.Name, "."):
			return s.invalid("field name %q contains '.'", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return s.invalid("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Kind {
		case KindLeaf:
			if f.Codec == nil {
				return s.invalid("leaf %q has no codec", f.Name)
			}
		case KindList:
			switch {
			case f.Codec == nil && f.Elem == nil:
				return s.invalid("list %q has neither codec nor element schema", f.Name)
			case f.Codec != nil && f.Elem != nil:
				return s.invalid("list %q has both codec and element schema", f.Name)
			case f.Elem != nil && len(f.Elem.descs) == 0:
				return s.invalid("list %q: element schema %q has no wire fields", f.Name, f.Elem.Name)
			}
		case KindNested:
			if f.Elem == nil {
				return s.invalid("nested %q has no schema", f.Name)
			}
		case KindSkip:
		default:
			return s.invalid("field %q has unknown kind %v", f.Name, f.Kind)
		}
	}
	return nil
}

func (s *Schema) invalid(format string, args ...any) error {
	return fmt.Errorf("%w: schema %q: %s", bynerr.ErrInvalidSchema, s.Name, fmt.Sprintf(format, args...))
}

// linearize flattens the declarations depth-first in declaration order.
func (s *Schema) linearize() {
	s.lists = make(map[string]int)
	s.flatten(s.Fields, nil, 0, 0)

	s.paths = make([]string, len(s.descs))
	s.index = make(map[string]int, len(s.descs))
	for i, d := range s.descs {
		s.paths[i] = d.Path
		s.index[d.Path] = i
	}
}

// flatten appends the columns of fields. depth counts enclosing lists and
// outer counts enclosing record lists.
func (s *Schema) flatten(fields []Field, prefix []string, depth, outer int) {
	for i := range fields {
		f := &fields[i]
		segs := append(append([]string(nil), prefix...), f.Name)
		path := strings.Join(segs, ".")

		switch f.Kind {
		case KindLeaf:
			s.descs = append(s.descs, Descriptor{Path: path, Segments: segs, Codec: f.Codec, Depth: depth, Outer: outer, Field: f})
		case KindSkip:
			s.skips = append(s.skips, SkipField{Path: path, Segments: segs, Outer: outer, Field: f})
		case KindNested:
			s.flatten(f.Elem.Fields, segs, depth, outer)
		case KindList:
			if f.Elem == nil {
				s.descs = append(s.descs, Descriptor{Path: path, Segments: segs, Codec: f.Codec, Depth: depth + 1, Outer: outer, Field: f})
				continue
			}
			s.lists[path] = outer + 1
			s.flatten(f.Elem.Fields, segs, depth+1, outer+1)
		}
	}
}

// Descriptors returns the linearized columns in wire order.
func (s *Schema) Descriptors() []Descriptor {
	return s.descs
}

// Paths returns the dotted path of every column in wire order.
func (s *Schema) Paths() []string {
	return s.paths
}

// Descriptor looks up a column by dotted path.
func (s *Schema) Descriptor(path string) (Descriptor, bool) {
	i, ok := s.index[path]
	if !ok {
		return Descriptor{}, false
	}
	return s.descs[i], true
}

// SkipFields returns every Skip declaration, including those inside nested
// records and record lists.
func (s *Schema) SkipFields() []SkipField {
	return s.skips
}

// ListPaths maps the dotted path of every list of records to its nesting
// level: 1 for an outermost list, 2 for a list inside one, and so on.
func (s *Schema) ListPaths() map[string]int {
	out := make(map[string]int, len(s.lists))
	for k, v := range s.lists {
		out[k] = v
	}
	return out
}

// IsRecordList reports whether path names a list of records.
func (s *Schema) IsRecordList(path string) bool {
	_, ok := s.lists[path]
	return ok
}

// GoType returns the struct type a derived schema was built from, or nil.
func (s *Schema) GoType() reflect.Type {
	return s.goType
}

func (s *Schema) String() string {
	return fmt.Sprintf("schema %s (%d columns)", s.Name, len(s.descs))
}
