package codec

import (
	"fmt"
	"reflect"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
	"github.com/byntic/byntic-go/pkg/byntic/record"
	"github.com/byntic/byntic-go/pkg/byntic/schema"
	"github.com/byntic/byntic-go/pkg/byntic/types"
)

// Dump writes v column by column in schema order. v may be a Record, a map
// with string keys, a Fielder or a struct with byntic tags.
func Dump(b *buffer.Buffer, s *schema.Schema, v any) error {
	for _, d := range s.Descriptors() {
		val, err := record.Resolve(v, d.Segments)
		if err != nil {
			return &bynerr.EncodingError{
				Type:   d.Codec.Name(),
				Path:   d.Path,
				Reason: "cannot resolve value",
				Err:    err,
			}
		}
		if err := writeValue(b, d.Codec, val, d.Depth); err != nil {
			return bynerr.WithPath(err, d.Path)
		}
	}
	return nil
}

// writeValue writes a leaf, or a count followed by depth levels of nested
// lists ending in leaves. A nil list is written as empty.
func writeValue(b *buffer.Buffer, c types.Codec, v any, depth int) error {
	if depth == 0 {
		return c.Write(b, v)
	}
	if v == nil {
		b.WriteVarint(0)
		return nil
	}
	n := listLen(v)
	if n < 0 {
		if p, ok := byteList(v); ok {
			b.WriteVarint(uint64(len(p)))
			for _, x := range p {
				if err := writeValue(b, c, x, depth-1); err != nil {
					return err
				}
			}
			return nil
		}
		return &bynerr.EncodingError{
			Type:   c.Name(),
			Reason: fmt.Sprintf("expected a list, got %T", v),
			Err:    bynerr.ErrTypeMismatch,
		}
	}
	b.WriteVarint(uint64(n))
	_, err := record.Each(v, func(_ int, elem any) error {
		return writeValue(b, c, elem, depth-1)
	})
	return err
}

func listLen(v any) int {
	if l, ok := v.([]any); ok {
		return len(l)
	}
	if !record.IsList(v) {
		return -1
	}
	return reflect.ValueOf(v).Len()
}

// byteList returns the bytes of a byte slice. In a list column a byte slice
// is a list of bytes rather than one value.
func byteList(v any) ([]byte, bool) {
	if p, ok := v.([]byte); ok {
		return p, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() != reflect.Uint8 {
		return nil, false
	}
	return rv.Bytes(), true
}
