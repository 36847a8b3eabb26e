package types

import (
	"fmt"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
)

const (
	nullFlag    = 1
	presentFlag = 0
)

// Skip consumes and produces nothing. Fields declared Skip never reach the
// wire; their value comes from the schema default.
var Skip Codec = skipCodec{}

type skipCodec struct{}

func (skipCodec) Name() string                     { return "Skip" }
func (skipCodec) Zero() any                        { return nil }
func (skipCodec) Read(*buffer.Buffer) (any, error) { return nil, nil }
func (skipCodec) Write(*buffer.Buffer, any) error  { return nil }

type nullableCodec struct {
	inner Codec
}

// Nullable wraps inner with a one-byte presence flag: 1 for null, 0 followed
// by the inner encoding otherwise. A nil interface or nil pointer encodes as
// null; other pointers are dereferenced.
func Nullable(inner Codec) Codec {
	if n, ok := inner.(nullableCodec); ok {
		return n
	}
	return nullableCodec{inner: inner}
}

// Inner returns the wrapped codec of a Nullable, or nil.
func Inner(c Codec) Codec {
	if n, ok := c.(nullableCodec); ok {
		return n.inner
	}
	return nil
}

func (c nullableCodec) Name() string { return fmt.Sprintf("Nullable(%s)", c.inner.Name()) }
func (nullableCodec) Zero() any      { return nil }

func (c nullableCodec) Read(b *buffer.Buffer) (any, error) {
	flag, err := b.ReadUint8()
	if err != nil {
		return nil, decodeError(c.Name(), "read flag failed", err)
	}
	switch flag {
	case nullFlag:
		return nil, nil
	case presentFlag:
		return c.inner.Read(b)
	}
	return nil, decodeError(c.Name(), fmt.Sprintf("invalid null flag 0x%02x", flag), bynerr.ErrInvalidValue)
}

func (c nullableCodec) Write(b *buffer.Buffer, v any) error {
	x, ok := deref(v)
	if !ok {
		b.WriteUint8(nullFlag)
		return nil
	}
	b.WriteUint8(presentFlag)
	return c.inner.Write(b, x)
}
