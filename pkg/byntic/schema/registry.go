package schema

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	bynerr "github.com/byntic/byntic-go/internal/errors"
)

// Registry caches schemas per Go struct type so each type is derived once.
// It is safe for concurrent use.
type Registry struct {
	schemas *xsync.MapOf[reflect.Type, *Schema]
	log     *logrus.Entry
}

// NewRegistry returns an empty registry. A nil logger uses the standard
// logrus logger.
func NewRegistry(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		schemas: xsync.NewMapOf[reflect.Type, *Schema](),
		log:     log.WithField("component", "schema-registry"),
	}
}

var defaultRegistry = NewRegistry(nil)

// DefaultRegistry returns the process-wide registry used by the package-level
// helpers.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func typeOf(v any) reflect.Type {
	rt, ok := v.(reflect.Type)
	if !ok {
		rt = reflect.TypeOf(v)
	}
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt
}

// Register derives and caches the schema of v's type. Registering a type
// again returns the cached schema.
func (r *Registry) Register(v any) (*Schema, error) {
	rt := typeOf(v)
	if rt == nil {
		return nil, bynerr.Errorf("cannot register nil type")
	}
	if s, ok := r.schemas.Load(rt); ok {
		return s, nil
	}
	s, err := Derive(rt)
	if err != nil {
		return nil, err
	}
	actual, loaded := r.schemas.LoadOrStore(rt, s)
	if !loaded {
		r.log.WithFields(logrus.Fields{
			"type":    rt.String(),
			"columns": len(s.Descriptors()),
			"skipped": len(s.SkipFields()),
		}).Info("registered schema")
	}
	return actual, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(v any) *Schema {
	s, err := r.Register(v)
	if err != nil {
		panic(err)
	}
	return s
}

// Add stores a hand-built schema for v's type, replacing any cached one.
func (r *Registry) Add(v any, s *Schema) error {
	rt := typeOf(v)
	if rt == nil || s == nil {
		return bynerr.Errorf("cannot add nil type or schema")
	}
	r.schemas.Store(rt, s)
	r.log.WithFields(logrus.Fields{
		"type":    rt.String(),
		"columns": len(s.Descriptors()),
	}).Info("added schema")
	return nil
}

// Lookup returns the cached schema of v's type.
func (r *Registry) Lookup(v any) (*Schema, bool) {
	rt := typeOf(v)
	if rt == nil {
		return nil, false
	}
	return r.schemas.Load(rt)
}

// Len returns the number of cached schemas.
func (r *Registry) Len() int {
	return r.schemas.Size()
}

// Register derives v's schema in the default registry.
func Register(v any) (*Schema, error) {
	return defaultRegistry.Register(v)
}

// MustRegister is like Register but panics on error.
func MustRegister(v any) *Schema {
	return defaultRegistry.MustRegister(v)
}

// Lookup returns v's schema from the default registry.
func Lookup(v any) (*Schema, bool) {
	return defaultRegistry.Lookup(v)
}
