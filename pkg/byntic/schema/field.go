package schema

import (
	"fmt"

	"github.com/byntic/byntic-go/pkg/byntic/types"
)

// Kind identifies the variant of a field declaration.
type Kind uint8

const (
	// KindLeaf is a single scalar written with its codec.
	KindLeaf Kind = iota
	// KindList is a list of scalars, or a list of records when Elem is set.
	KindList
	// KindNested is an embedded record whose fields are written in place.
	KindNested
	// KindSkip is never written; decoding fills it from its default.
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindList:
		return "list"
	case KindNested:
		return "nested"
	case KindSkip:
		return "skip"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Field is one declaration of a record schema.
type Field struct {
	Name string
	Kind Kind

	// Codec is set for leaves and lists of scalars.
	Codec types.Codec

	// Elem is set for nested records and lists of records.
	Elem *Schema

	// GoIndex is the struct field index for schemas derived from a Go type,
	// or nil.
	GoIndex []int

	def     any
	defFunc func() any
	hasDef  bool
}

// Option customizes a field declaration.
type Option func(*Field)

// Default sets the value a field takes when it is skipped or missing from a
// shorter payload.
func Default(v any) Option {
	return func(f *Field) {
		f.def = v
		f.defFunc = nil
		f.hasDef = true
	}
}

// DefaultFunc is like Default but calls fn for every decoded record, so
// mutable defaults such as maps or slices are never shared.
func DefaultFunc(fn func() any) Option {
	return func(f *Field) {
		f.def = nil
		f.defFunc = fn
		f.hasDef = fn != nil
	}
}

func newField(name string, kind Kind, opts []Option) Field {
	f := Field{Name: name, Kind: kind}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Leaf declares a scalar field.
func Leaf(name string, codec types.Codec, opts ...Option) Field {
	f := newField(name, KindLeaf, opts)
	f.Codec = codec
	return f
}

// List declares a list of scalars.
func List(name string, codec types.Codec, opts ...Option) Field {
	f := newField(name, KindList, opts)
	f.Codec = codec
	return f
}

// ListOf declares a list of records. On the wire it becomes one list column
// per leaf of elem.
func ListOf(name string, elem *Schema, opts ...Option) Field {
	f := newField(name, KindList, opts)
	f.Elem = elem
	return f
}

// Nested declares an embedded record.
func Nested(name string, elem *Schema, opts ...Option) Field {
	f := newField(name, KindNested, opts)
	f.Elem = elem
	return f
}

// Skip declares a field that is excluded from the wire.
func Skip(name string, opts ...Option) Field {
	return newField(name, KindSkip, opts)
}

// IsRecordList reports whether f is a list of records.
func (f *Field) IsRecordList() bool {
	return f.Kind == KindList && f.Elem != nil
}

// DefaultValue returns the declared default, calling the default function if
// one was given. ok is false when no default was declared.
func (f *Field) DefaultValue() (v any, ok bool) {
	if !f.hasDef {
		return nil, false
	}
	if f.defFunc != nil {
		return f.defFunc(), true
	}
	return f.def, true
}

// withIndex records the Go struct field index for derived schemas.
func (f Field) withIndex(index []int) Field {
	f.GoIndex = index
	return f
}
