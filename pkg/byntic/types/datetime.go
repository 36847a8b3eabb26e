package types

import (
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
)

// MaxPrecision is the largest DateTime64 precision: nanosecond ticks.
const MaxPrecision = 9

var (
	Date         Codec = dateCodec{}
	DateTime32   Codec = dateTime32Codec{}
	DateTime32TZ Codec = dateTime32Codec{withTZ: true}
)

var (
	epochDate = civil.Date{Year: 1970, Month: time.January, Day: 1}
	epochTime = time.Unix(0, 0).UTC()
)

var pow10 = [...]int64{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000, 1_000_000_000}

// timeOf accepts a time.Time or a non-nil *time.Time.
func timeOf(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x != nil {
			return *x, true
		}
	}
	return time.Time{}, false
}

// offsetMinutes returns the UTC offset of t in whole minutes. Offsets with a
// seconds part cannot be stored.
func offsetMinutes(typ string, t time.Time) (int16, error) {
	_, off := t.Zone()
	if off%60 != 0 {
		return 0, encodeError(typ, fmt.Sprintf("offset %ds is not a whole number of minutes", off), bynerr.ErrEncodingRange)
	}
	m := off / 60
	if m < math.MinInt16 || m > math.MaxInt16 {
		return 0, outOfRange(typ, t)
	}
	return int16(m), nil
}

func requireUTC(typ string, t time.Time) error {
	if _, off := t.Zone(); off != 0 {
		return encodeError(typ, fmt.Sprintf("offset %ds is not UTC", off), bynerr.ErrTimezoneMismatch)
	}
	return nil
}

func fixedZone(minutes int16) *time.Location {
	if minutes == 0 {
		return time.UTC
	}
	return time.FixedZone("", int(minutes)*60)
}

// dateCodec stores days since 1970-01-01 in a uint16, covering 1970-01-01
// through 2149-06-06.
type dateCodec struct{}

func (dateCodec) Name() string { return "Date" }
func (dateCodec) Zero() any    { return epochDate }

func (c dateCodec) Read(b *buffer.Buffer) (any, error) {
	days, err := b.ReadUint16()
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	return epochDate.AddDays(int(days)), nil
}

func (c dateCodec) Write(b *buffer.Buffer, v any) error {
	var d civil.Date
	switch x := v.(type) {
	case civil.Date:
		d = x
	case *civil.Date:
		if x == nil {
			return mismatch(c.Name(), v)
		}
		d = *x
	default:
		t, ok := timeOf(v)
		if !ok {
			return mismatch(c.Name(), v)
		}
		d = civil.DateOf(t)
	}
	if !d.IsValid() {
		return encodeError(c.Name(), fmt.Sprintf("invalid date %v", d), bynerr.ErrInvalidValue)
	}
	days := d.DaysSince(epochDate)
	if days < 0 || days > math.MaxUint16 {
		return outOfRange(c.Name(), d)
	}
	b.WriteUint16(uint16(days))
	return nil
}

// dateTime32Codec stores whole epoch seconds in a uint32. The TZ form appends
// the UTC offset in minutes; the plain form accepts UTC values only.
type dateTime32Codec struct {
	withTZ bool
}

func (c dateTime32Codec) Name() string {
	if c.withTZ {
		return "DateTime32TZ"
	}
	return "DateTime32"
}

func (dateTime32Codec) Zero() any { return epochTime }

func (c dateTime32Codec) Read(b *buffer.Buffer) (any, error) {
	secs, err := b.ReadUint32()
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	t := time.Unix(int64(secs), 0).UTC()
	if !c.withTZ {
		return t, nil
	}
	off, err := b.ReadInt16()
	if err != nil {
		return nil, decodeError(c.Name(), "read offset failed", err)
	}
	return t.In(fixedZone(off)), nil
}

func (c dateTime32Codec) Write(b *buffer.Buffer, v any) error {
	t, ok := timeOf(v)
	if !ok {
		return mismatch(c.Name(), v)
	}
	var off int16
	if c.withTZ {
		var err error
		if off, err = offsetMinutes(c.Name(), t); err != nil {
			return err
		}
	} else if err := requireUTC(c.Name(), t); err != nil {
		return err
	}
	secs := t.Unix()
	if secs < 0 || secs > math.MaxUint32 {
		return outOfRange(c.Name(), t)
	}
	b.WriteUint32(uint32(secs))
	if c.withTZ {
		b.WriteInt16(off)
	}
	return nil
}

// dateTime64Codec stores seconds × 10^precision ticks in an int64.
type dateTime64Codec struct {
	precision int
	withTZ    bool
}

// DateTime64 returns a UTC-only timestamp codec with the given number of
// fractional decimal digits (0 to 9).
func DateTime64(precision int) (Codec, error) {
	return newDateTime64(precision, false)
}

// DateTime64TZ is DateTime64 followed by the UTC offset in minutes.
func DateTime64TZ(precision int) (Codec, error) {
	return newDateTime64(precision, true)
}

func newDateTime64(precision int, withTZ bool) (Codec, error) {
	if precision < 0 || precision > MaxPrecision {
		return nil, bynerr.Errorf("datetime precision must be within [0, %d], got %d", MaxPrecision, precision)
	}
	return dateTime64Codec{precision: precision, withTZ: withTZ}, nil
}

func (c dateTime64Codec) Name() string {
	if c.withTZ {
		return fmt.Sprintf("DateTime64TZ(%d)", c.precision)
	}
	return fmt.Sprintf("DateTime64(%d)", c.precision)
}

func (dateTime64Codec) Zero() any { return epochTime }

func (c dateTime64Codec) ticks(t time.Time) (int64, bool) {
	scale := pow10[c.precision]
	secs := t.Unix()
	if secs > math.MaxInt64/scale || secs < math.MinInt64/scale {
		return 0, false
	}
	frac := int64(t.Nanosecond()) / pow10[MaxPrecision-c.precision]
	whole := secs * scale
	if whole > math.MaxInt64-frac {
		return 0, false
	}
	return whole + frac, true
}

func (c dateTime64Codec) Read(b *buffer.Buffer) (any, error) {
	ticks, err := b.ReadInt64()
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	scale := pow10[c.precision]
	secs, rem := ticks/scale, ticks%scale
	if rem < 0 {
		secs--
		rem += scale
	}
	t := time.Unix(secs, rem*pow10[MaxPrecision-c.precision]).UTC()
	if !c.withTZ {
		return t, nil
	}
	off, err := b.ReadInt16()
	if err != nil {
		return nil, decodeError(c.Name(), "read offset failed", err)
	}
	return t.In(fixedZone(off)), nil
}

func (c dateTime64Codec) Write(b *buffer.Buffer, v any) error {
	t, ok := timeOf(v)
	if !ok {
		return mismatch(c.Name(), v)
	}
	var off int16
	if c.withTZ {
		var err error
		if off, err = offsetMinutes(c.Name(), t); err != nil {
			return err
		}
	} else if err := requireUTC(c.Name(), t); err != nil {
		return err
	}
	ticks, ok := c.ticks(t)
	if !ok {
		return outOfRange(c.Name(), t)
	}
	b.WriteInt64(ticks)
	if c.withTZ {
		b.WriteInt16(off)
	}
	return nil
}
