package record

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/types"
)

// Bind copies a decoded record into out, which must be a non-nil pointer to
// a struct with byntic tags. Integers are converted between widths with
// overflow checks; JSON objects are re-decoded into map or struct fields.
// Dates, UUIDs, decimals and 128-bit integers bind to the alternative Go
// types their codecs accept on encode.
// Fields missing from rec are left untouched.
func Bind(rec Record, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return bynerr.Errorf("bind target must be a non-nil pointer, got %T", out)
	}
	if rv.Elem().Kind() != reflect.Struct {
		return bynerr.Errorf("bind target must point to a struct, got %T", out)
	}
	return bindStruct(rv.Elem(), rec, "")
}

func bindStruct(dst reflect.Value, src Fielder, path string) error {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, ok := FieldName(sf)
		if !ok {
			continue
		}
		v, ok := src.Field(name)
		if !ok {
			continue
		}
		if err := assign(dst.Field(i), v, join(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func bindError(path string, v any, dst reflect.Type, err error) error {
	return &bynerr.DecodingError{
		Type:   dst.String(),
		Path:   path,
		Reason: fmt.Sprintf("cannot bind %T", v),
		Err:    err,
	}
}

func assign(dst reflect.Value, v any, path string) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	src := reflect.ValueOf(v)
	dt := dst.Type()
	if src.Type().AssignableTo(dt) {
		dst.Set(src)
		return nil
	}
	if cv, ok := convertScalar(v, dt); ok {
		dst.Set(cv)
		return nil
	}

	switch dst.Kind() {
	case reflect.Pointer:
		p := reflect.New(dt.Elem())
		if err := assign(p.Elem(), v, path); err != nil {
			return err
		}
		dst.Set(p)
		return nil

	case reflect.Struct:
		if f, ok := v.(Fielder); ok {
			return bindStruct(dst, f, path)
		}
		// plain maps come from JSON leaves and follow json tags
		if _, ok := v.(map[string]any); ok {
			return viaJSON(dst, v, path)
		}

	case reflect.Slice:
		if dt.Elem().Kind() == reflect.Uint8 && src.Kind() == reflect.String {
			dst.SetBytes([]byte(src.String()))
			return nil
		}
		if IsList(v) {
			out := reflect.MakeSlice(dt, src.Len(), src.Len())
			_, err := Each(v, func(i int, elem any) error {
				return assign(out.Index(i), elem, fmt.Sprintf("%s[%d]", path, i))
			})
			if err != nil {
				return err
			}
			dst.Set(out)
			return nil
		}

	case reflect.Map:
		switch v.(type) {
		case map[string]any, Record:
			return viaJSON(dst, v, path)
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !isNumber(src) {
			return bindError(path, v, dt, bynerr.ErrTypeMismatch)
		}
		i, ok := signedOf(src)
		if !ok || dst.OverflowInt(i) {
			return bindError(path, v, dt, bynerr.ErrEncodingRange)
		}
		dst.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if !isNumber(src) {
			return bindError(path, v, dt, bynerr.ErrTypeMismatch)
		}
		u, ok := unsignedOf(src)
		if !ok || dst.OverflowUint(u) {
			return bindError(path, v, dt, bynerr.ErrEncodingRange)
		}
		dst.SetUint(u)
		return nil

	case reflect.Float32, reflect.Float64:
		var f float64
		switch src.Kind() {
		case reflect.Float32, reflect.Float64:
			f = src.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(src.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(src.Uint())
		default:
			return bindError(path, v, dt, bynerr.ErrTypeMismatch)
		}
		if dst.OverflowFloat(f) {
			return bindError(path, v, dt, bynerr.ErrEncodingRange)
		}
		dst.SetFloat(f)
		return nil
	}

	if src.Kind() == dst.Kind() && src.Type().ConvertibleTo(dt) {
		dst.Set(src.Convert(dt))
		return nil
	}
	return bindError(path, v, dt, bynerr.ErrTypeMismatch)
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	bigIntType = reflect.TypeOf(&big.Int{})
)

// convertScalar maps a decoded leaf onto another Go type its codec accepts on
// encode. A Date binds to time.Time at midnight UTC.
func convertScalar(v any, dt reflect.Type) (reflect.Value, bool) {
	var out any
	switch x := v.(type) {
	case civil.Date:
		if dt == timeType {
			out = x.In(time.UTC)
		}
	case uuid.UUID:
		switch {
		case dt.Kind() == reflect.String:
			out = x.String()
		case dt.Kind() == reflect.Slice && dt.Elem().Kind() == reflect.Uint8:
			out = x[:]
		}
	case decimal.Decimal:
		switch dt.Kind() {
		case reflect.String:
			out = x.String()
		case reflect.Float32, reflect.Float64:
			out = x.InexactFloat64()
		}
	case types.Uint128:
		switch {
		case dt == bigIntType:
			out = x.Big()
		case dt.Kind() == reflect.String:
			out = x.String()
		}
	}
	if out == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(out)
	if !rv.Type().ConvertibleTo(dt) {
		return reflect.Value{}, false
	}
	return rv.Convert(dt), true
}

func isNumber(src reflect.Value) bool {
	switch src.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// signedOf reads any integer or integral float as an int64.
func signedOf(src reflect.Value) (int64, bool) {
	switch src.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return src.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := src.Uint()
		return int64(u), u <= math.MaxInt64
	case reflect.Float32, reflect.Float64:
		f := src.Float()
		return int64(f), f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
	}
	return 0, false
}

// unsignedOf reads any non-negative integer or integral float as a uint64.
func unsignedOf(src reflect.Value) (uint64, bool) {
	switch src.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := src.Int()
		return uint64(i), i >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return src.Uint(), true
	case reflect.Float32, reflect.Float64:
		f := src.Float()
		return uint64(f), f == math.Trunc(f) && f >= 0 && f < math.MaxUint64
	}
	return 0, false
}

// viaJSON re-decodes a JSON-shaped value into dst.
func viaJSON(dst reflect.Value, v any, path string) error {
	p, err := json.Marshal(v)
	if err != nil {
		return bindError(path, v, dst.Type(), err)
	}
	ptr := reflect.New(dst.Type())
	if err := json.Unmarshal(p, ptr.Interface()); err != nil {
		return bindError(path, v, dst.Type(), fmt.Errorf("%w: %v", bynerr.ErrTypeMismatch, err))
	}
	dst.Set(ptr.Elem())
	return nil
}
