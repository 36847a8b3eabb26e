package types

import (
	"fmt"
	"math"
	"math/big"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
)

// Fixed-width scalar codecs.
var (
	Bool Codec = boolCodec{}

	Int8  Codec = intCodec{name: "Int8", bits: 8, signed: true}
	Int16 Codec = intCodec{name: "Int16", bits: 16, signed: true}
	Int32 Codec = intCodec{name: "Int32", bits: 32, signed: true}
	Int64 Codec = intCodec{name: "Int64", bits: 64, signed: true}

	UInt8  Codec = intCodec{name: "UInt8", bits: 8}
	UInt16 Codec = intCodec{name: "UInt16", bits: 16}
	UInt32 Codec = intCodec{name: "UInt32", bits: 32}
	UInt64 Codec = intCodec{name: "UInt64", bits: 64}

	UInt128 Codec = uint128Codec{}

	Float32 Codec = floatCodec{name: "Float32", bits: 32}
	Float64 Codec = floatCodec{name: "Float64", bits: 64}
)

type boolCodec struct{}

func (boolCodec) Name() string { return "Bool" }
func (boolCodec) Zero() any    { return false }

func (c boolCodec) Read(b *buffer.Buffer) (any, error) {
	v, err := b.ReadUint8()
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return nil, decodeError(c.Name(), fmt.Sprintf("invalid byte 0x%02x", v), bynerr.ErrInvalidValue)
}

func (c boolCodec) Write(b *buffer.Buffer, v any) error {
	x, ok := v.(bool)
	if !ok {
		return mismatch(c.Name(), v)
	}
	if x {
		b.WriteUint8(1)
	} else {
		b.WriteUint8(0)
	}
	return nil
}

// intCodec covers every fixed-width integer. Decoded values carry the exact Go
// type of the wire width.
type intCodec struct {
	name   string
	bits   int
	signed bool
}

func (c intCodec) Name() string { return c.name }

func (c intCodec) Zero() any {
	switch {
	case c.signed && c.bits == 8:
		return int8(0)
	case c.signed && c.bits == 16:
		return int16(0)
	case c.signed && c.bits == 32:
		return int32(0)
	case c.signed:
		return int64(0)
	case c.bits == 8:
		return uint8(0)
	case c.bits == 16:
		return uint16(0)
	case c.bits == 32:
		return uint32(0)
	}
	return uint64(0)
}

func (c intCodec) Read(b *buffer.Buffer) (any, error) {
	var (
		v   any
		err error
	)
	switch {
	case c.signed && c.bits == 8:
		v, err = b.ReadInt8()
	case c.signed && c.bits == 16:
		v, err = b.ReadInt16()
	case c.signed && c.bits == 32:
		v, err = b.ReadInt32()
	case c.signed:
		v, err = b.ReadInt64()
	case c.bits == 8:
		v, err = b.ReadUint8()
	case c.bits == 16:
		v, err = b.ReadUint16()
	case c.bits == 32:
		v, err = b.ReadUint32()
	default:
		v, err = b.ReadUint64()
	}
	if err != nil {
		return nil, decodeError(c.name, "read failed", err)
	}
	return v, nil
}

func (c intCodec) Write(b *buffer.Buffer, v any) error {
	if c.signed {
		max := int64(1)<<(c.bits-1) - 1
		x, err := signedIn(c.name, v, -max-1, max)
		if err != nil {
			return err
		}
		switch c.bits {
		case 8:
			b.WriteInt8(int8(x))
		case 16:
			b.WriteInt16(int16(x))
		case 32:
			b.WriteInt32(int32(x))
		default:
			b.WriteInt64(x)
		}
		return nil
	}

	max := uint64(math.MaxUint64)
	if c.bits < 64 {
		max = uint64(1)<<c.bits - 1
	}
	x, err := unsignedIn(c.name, v, max)
	if err != nil {
		return err
	}
	switch c.bits {
	case 8:
		b.WriteUint8(uint8(x))
	case 16:
		b.WriteUint16(uint16(x))
	case 32:
		b.WriteUint32(uint32(x))
	default:
		b.WriteUint64(x)
	}
	return nil
}

type floatCodec struct {
	name string
	bits int
}

func (c floatCodec) Name() string { return c.name }

func (c floatCodec) Zero() any {
	if c.bits == 32 {
		return float32(0)
	}
	return float64(0)
}

func (c floatCodec) Read(b *buffer.Buffer) (any, error) {
	if c.bits == 32 {
		v, err := b.ReadFloat32()
		if err != nil {
			return nil, decodeError(c.name, "read failed", err)
		}
		return v, nil
	}
	v, err := b.ReadFloat64()
	if err != nil {
		return nil, decodeError(c.name, "read failed", err)
	}
	return v, nil
}

func (c floatCodec) Write(b *buffer.Buffer, v any) error {
	f, ok := floatOf(v)
	if !ok {
		return mismatch(c.name, v)
	}
	if c.bits == 32 {
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return outOfRange(c.name, v)
		}
		b.WriteFloat32(float32(f))
		return nil
	}
	b.WriteFloat64(f)
	return nil
}

// Uint128 is an unsigned 128-bit integer split into two 64-bit halves.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Big returns u as a big.Int.
func (u Uint128) Big() *big.Int {
	x := new(big.Int).SetUint64(u.Hi)
	x.Lsh(x, 64)
	return x.Or(x, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string {
	return u.Big().String()
}

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Uint128FromBig converts x, failing when it is negative or wider than 128 bits.
func Uint128FromBig(x *big.Int) (Uint128, error) {
	if x.Sign() < 0 || x.Cmp(maxUint128) > 0 {
		return Uint128{}, outOfRange("UInt128", x)
	}
	lo := new(big.Int).And(x, new(big.Int).SetUint64(math.MaxUint64))
	hi := new(big.Int).Rsh(x, 64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}

type uint128Codec struct{}

func (uint128Codec) Name() string { return "UInt128" }
func (uint128Codec) Zero() any    { return Uint128{} }

func (c uint128Codec) Read(b *buffer.Buffer) (any, error) {
	hi, err := b.ReadUint64()
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	lo, err := b.ReadUint64()
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	return Uint128{Hi: hi, Lo: lo}, nil
}

func (c uint128Codec) Write(b *buffer.Buffer, v any) error {
	var u Uint128
	switch x := v.(type) {
	case Uint128:
		u = x
	case *big.Int:
		var err error
		if u, err = Uint128FromBig(x); err != nil {
			return err
		}
	default:
		lo, err := unsignedIn(c.Name(), v, math.MaxUint64)
		if err != nil {
			return err
		}
		u = Uint128{Lo: lo}
	}
	b.WriteUint64(u.Hi)
	b.WriteUint64(u.Lo)
	return nil
}
