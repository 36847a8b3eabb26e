// Package byntic provides a schema-driven binary codec for Go records.
//
// A record type is described by an ordered list of fields: scalars, lists of
// scalars, nested records, lists of records and skipped fields. Field order
// is the wire order and the payload carries no tags, lengths or version:
// reader and writer must agree on the schema. Lists of records are stored
// column by column and zipped back into records on decode.
//
// Schemas are usually derived from struct tags:
//
//	type Role struct {
//		ID   uint32 `byntic:"role_id,UInt32"`
//		Name string `byntic:"name,String"`
//	}
//
//	type User struct {
//		ID    uint32  `byntic:"id,UInt32"`
//		Email *string `byntic:"email,Nullable(String)"`
//		Roles []Role  `byntic:"roles"`
//		Note  string  `byntic:"note,Skip,default=D"`
//	}
//
//	data, err := byntic.Serialize(user)
//	...
//	var out User
//	err = byntic.Deserialize(data, &out)
//
// Schemas can also be built by hand with the schema package and used with
// codec.New, which also accepts compression transforms and decode options.
package byntic

// Re-export the building blocks for convenience
import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/codec"
	"github.com/byntic/byntic-go/pkg/byntic/compress"
	"github.com/byntic/byntic-go/pkg/byntic/record"
	"github.com/byntic/byntic-go/pkg/byntic/schema"
	"github.com/byntic/byntic-go/pkg/byntic/types"
)

// Core types
type (
	// Record is a decoded record
	Record = record.Record

	// Schema is a linearized record layout
	Schema = schema.Schema

	// Codec encodes and decodes records of one schema
	Codec = codec.Codec

	// Option configures a Codec
	Option = codec.Option

	// Transform compresses whole payloads
	Transform = compress.Transform

	// Uint128 is the value type of UInt128 fields
	Uint128 = types.Uint128

	// EncodingError represents an error while writing a value
	EncodingError = bynerr.EncodingError

	// DecodingError represents an error while reading a value
	DecodingError = bynerr.DecodingError

	// LengthMismatchError reports sibling lists of different lengths
	LengthMismatchError = bynerr.LengthMismatchError
)

// Error kinds, for use with errors.Is
var (
	ErrBufferUnderrun        = bynerr.ErrBufferUnderrun
	ErrVarintOverflow        = bynerr.ErrVarintOverflow
	ErrEncodingRange         = bynerr.ErrEncodingRange
	ErrTimezoneMismatch      = bynerr.ErrTimezoneMismatch
	ErrMismatchedArrayLength = bynerr.ErrMismatchedArrayLength
	ErrMalformedJSON         = bynerr.ErrMalformedJSON
	ErrInvalidUTF8           = bynerr.ErrInvalidUTF8
	ErrTrailingBytes         = bynerr.ErrTrailingBytes
	ErrListTooLong           = bynerr.ErrListTooLong
	ErrTypeMismatch          = bynerr.ErrTypeMismatch
	ErrInvalidValue          = bynerr.ErrInvalidValue
	ErrInvalidSchema         = bynerr.ErrInvalidSchema
	ErrMissingField          = bynerr.ErrMissingField
)

// Codec options and helpers
var (
	WithTransform     = codec.WithTransform
	WithCompressor    = codec.WithCompressor
	WithDecompressor  = codec.WithDecompressor
	WithLogger        = codec.WithLogger
	WithConfig        = codec.WithConfig
	WithZipSingleKey  = codec.WithZipSingleKey
	WithHeuristicZip  = codec.WithHeuristicZip
	WithMaxListLen    = codec.WithMaxListLen
	NewCodec          = codec.New
	ParseType         = types.Parse
	CompressionByName = compress.ByName
	DeriveSchema      = schema.Derive
	LookupSchema      = schema.Lookup
	DefaultRegistry   = schema.DefaultRegistry
	NewSchemaRegistry = schema.NewRegistry
	BindRecord        = record.Bind
	ResolvePath       = record.Resolve
)

// codecs caches the option-less codec of every registered schema.
var codecs = xsync.NewMapOf[*schema.Schema, *codec.Codec]()

// Register derives and caches the schema of v's struct type.
func Register(v any) (*Schema, error) {
	return schema.Register(v)
}

// MustRegister is like Register but panics on error.
func MustRegister(v any) *Schema {
	return schema.MustRegister(v)
}

// CodecFor returns a codec for v's struct type, registering it if needed.
// Without options the codec is cached and shared.
func CodecFor(v any, opts ...Option) (*Codec, error) {
	s, err := Register(v)
	if err != nil {
		return nil, err
	}
	if len(opts) > 0 {
		return codec.New(s, opts...)
	}
	if c, ok := codecs.Load(s); ok {
		return c, nil
	}
	c, err := codec.New(s)
	if err != nil {
		return nil, err
	}
	c, _ = codecs.LoadOrStore(s, c)
	return c, nil
}

// Serialize encodes a struct value with byntic tags.
func Serialize(v any, opts ...Option) ([]byte, error) {
	c, err := CodecFor(v, opts...)
	if err != nil {
		return nil, err
	}
	return c.Encode(v)
}

// Deserialize decodes data into out, a pointer to a struct with byntic tags.
func Deserialize(data []byte, out any, opts ...Option) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return bynerr.Errorf("deserialize target must be a non-nil pointer, got %T", out)
	}
	c, err := CodecFor(out, opts...)
	if err != nil {
		return err
	}
	return c.DecodeInto(data, out)
}

// DeserializeRecord decodes data for the type of v into a Record without
// binding it.
func DeserializeRecord(data []byte, v any, opts ...Option) (Record, error) {
	c, err := CodecFor(v, opts...)
	if err != nil {
		return nil, err
	}
	return c.Decode(data)
}
