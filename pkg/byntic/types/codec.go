// Package types holds the leaf codecs: the encoders and decoders for every
// scalar wire type a schema field can declare.
//
// Codecs are stateless values. Parameterized codecs (fixed strings, 64-bit
// timestamps, decimals) fix their parameters at construction and are safe to
// share between goroutines afterwards.
package types

import (
	"fmt"
	"math"
	"reflect"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
)

// Codec reads and writes one scalar wire type.
type Codec interface {
	// Name returns the type name, in the form accepted by Parse.
	Name() string
	// Read consumes one value from b.
	Read(b *buffer.Buffer) (any, error)
	// Write appends v to b.
	Write(b *buffer.Buffer, v any) error
	// Zero returns the value used for a field missing from a shorter payload.
	Zero() any
}

// TakesBytes reports whether c writes a []byte as one value. A byte slice
// declared with any other codec is a list of bytes.
func TakesBytes(c Codec) bool {
	switch x := c.(type) {
	case stringCodec, fixedStringCodec, uuidCodec, jsonCodec:
		return true
	case nullableCodec:
		return TakesBytes(x.inner)
	}
	return false
}

func encodeError(typ, reason string, err error) error {
	return &bynerr.EncodingError{Type: typ, Reason: reason, Err: err}
}

func decodeError(typ, reason string, err error) error {
	return &bynerr.DecodingError{Type: typ, Reason: reason, Err: err}
}

func mismatch(typ string, v any) error {
	return encodeError(typ, fmt.Sprintf("cannot encode %T", v), bynerr.ErrTypeMismatch)
}

func outOfRange(typ string, v any) error {
	return encodeError(typ, fmt.Sprintf("value %v does not fit", v), bynerr.ErrEncodingRange)
}

// integerOf extracts an integer from any integer kind, including named types.
// Floats are accepted when they hold an integral value, which is what a
// decoded JSON number looks like.
func integerOf(v any) (i int64, u uint64, signed bool, ok bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), 0, true, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return 0, rv.Uint(), false, true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, 0, false, false
		}
		if f < 0 {
			if f < math.MinInt64 {
				return 0, 0, false, false
			}
			return int64(f), 0, true, true
		}
		if f >= math.MaxUint64 {
			return 0, 0, false, false
		}
		return 0, uint64(f), false, true
	}
	return 0, 0, false, false
}

// signedIn coerces v to an int64 within [min, max].
func signedIn(typ string, v any, min, max int64) (int64, error) {
	i, u, signed, ok := integerOf(v)
	if !ok {
		return 0, mismatch(typ, v)
	}
	if !signed {
		if u > uint64(max) {
			return 0, outOfRange(typ, v)
		}
		return int64(u), nil
	}
	if i < min || i > max {
		return 0, outOfRange(typ, v)
	}
	return i, nil
}

// unsignedIn coerces v to a uint64 no larger than max.
func unsignedIn(typ string, v any, max uint64) (uint64, error) {
	i, u, signed, ok := integerOf(v)
	if !ok {
		return 0, mismatch(typ, v)
	}
	if signed {
		if i < 0 {
			return 0, outOfRange(typ, v)
		}
		u = uint64(i)
	}
	if u > max {
		return 0, outOfRange(typ, v)
	}
	return u, nil
}

// floatOf accepts any float or integer kind.
func floatOf(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

// deref follows non-nil pointers. It reports false for a nil pointer.
func deref(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, false
	}
	return rv.Interface(), true
}
