package types

import (
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
)

// MaxDecimalScale is the largest scale a Decimal64 can declare.
const MaxDecimalScale = 18

// UUID stores the 16 raw bytes of an RFC 4122 identifier.
var UUID Codec = uuidCodec{}

type uuidCodec struct{}

func (uuidCodec) Name() string { return "UUID" }
func (uuidCodec) Zero() any    { return uuid.Nil }

func (c uuidCodec) Read(b *buffer.Buffer) (any, error) {
	p, err := b.ReadBytes(16)
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	id, err := uuid.FromBytes(p)
	if err != nil {
		return nil, decodeError(c.Name(), "invalid bytes", err)
	}
	return id, nil
}

func (c uuidCodec) Write(b *buffer.Buffer, v any) error {
	var id uuid.UUID
	switch x := v.(type) {
	case uuid.UUID:
		id = x
	case [16]byte:
		id = x
	case []byte:
		var err error
		if id, err = uuid.FromBytes(x); err != nil {
			return encodeError(c.Name(), "invalid bytes", err)
		}
	case string:
		var err error
		if id, err = uuid.Parse(x); err != nil {
			return encodeError(c.Name(), "invalid text", err)
		}
	default:
		return mismatch(c.Name(), v)
	}
	b.WriteBytes(id[:])
	return nil
}

// decimal64Codec stores a decimal as its unscaled int64 value at a fixed
// scale. Values with more fractional digits are rounded half away from zero.
type decimal64Codec struct {
	scale int32
}

// Decimal64 returns a fixed-scale decimal codec.
func Decimal64(scale int) (Codec, error) {
	if scale < 0 || scale > MaxDecimalScale {
		return nil, bynerr.Errorf("decimal scale must be within [0, %d], got %d", MaxDecimalScale, scale)
	}
	return decimal64Codec{scale: int32(scale)}, nil
}

func (c decimal64Codec) Name() string { return fmt.Sprintf("Decimal64(%d)", c.scale) }
func (c decimal64Codec) Zero() any    { return decimal.New(0, -c.scale) }

func (c decimal64Codec) Read(b *buffer.Buffer) (any, error) {
	unscaled, err := b.ReadInt64()
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	return decimal.New(unscaled, -c.scale), nil
}

func (c decimal64Codec) Write(b *buffer.Buffer, v any) error {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return mismatch(c.Name(), v)
		}
		d = *x
	case string:
		var err error
		if d, err = decimal.NewFromString(x); err != nil {
			return encodeError(c.Name(), "invalid text", err)
		}
	case float32:
		d = decimal.NewFromFloat32(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return outOfRange(c.Name(), v)
		}
		d = decimal.NewFromFloat(x)
	default:
		i, u, signed, ok := integerOf(v)
		if !ok {
			return mismatch(c.Name(), v)
		}
		if signed {
			d = decimal.NewFromInt(i)
		} else {
			d = decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
		}
	}
	unscaled := d.Round(c.scale).Shift(c.scale).BigInt()
	if !unscaled.IsInt64() {
		return outOfRange(c.Name(), d)
	}
	b.WriteInt64(unscaled.Int64())
	return nil
}
