package codec

import (
	"fmt"
	"strings"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
	"github.com/byntic/byntic-go/pkg/byntic/record"
	"github.com/byntic/byntic-go/pkg/byntic/schema"
	"github.com/byntic/byntic-go/pkg/byntic/types"
)

// ParseOptions bounds what the parser accepts.
type ParseOptions struct {
	// MaxListLen is the largest count accepted for any single list.
	MaxListLen int
	// AllowTrailingBytes ignores bytes left after the last column.
	AllowTrailingBytes bool
}

// Parse reads every column of s from b into a flat map keyed by dotted path.
//
// A payload that ends exactly between two columns is accepted: the columns
// after that point take their defaults, so records written with an older,
// shorter schema still decode. Skip fields are filled from their defaults.
// Inside lists of records both kinds of default are repeated once per record,
// following the shape of a sibling column that was read.
func Parse(b *buffer.Buffer, s *schema.Schema, opts ParseOptions) (map[string]any, error) {
	p := parser{
		descs: s.Descriptors(),
		lists: s.ListPaths(),
		flat:  make(map[string]any, len(s.Descriptors())+len(s.SkipFields())),
		limit: opts.MaxListLen,
	}

	for i, d := range p.descs {
		if b.Exhausted() {
			break
		}
		v, err := readValue(b, d.Codec, d.Depth, p.limit)
		if err != nil {
			return nil, bynerr.WithPath(err, d.Path)
		}
		p.flat[d.Path] = v
		p.read = i + 1
	}
	if !b.Exhausted() && !opts.AllowTrailingBytes {
		return nil, &bynerr.DecodingError{
			Type:   s.Name,
			Reason: fmt.Sprintf("%d bytes left after %d columns", b.Remaining(), len(p.descs)),
			Err:    bynerr.ErrTrailingBytes,
		}
	}

	for _, d := range p.descs[p.read:] {
		p.flat[d.Path] = p.absent(d.Segments, d.Outer, d.ElemDefault)
	}
	for _, sk := range s.SkipFields() {
		p.flat[sk.Path] = p.absent(sk.Segments, sk.Outer, sk.Value)
	}
	return p.flat, nil
}

type parser struct {
	descs []schema.Descriptor
	lists map[string]int
	flat  map[string]any
	limit int

	// read is the number of leading descriptors present in the payload.
	read int
}

// absent builds the value of a column that is not in the payload. Outside
// lists of records that is one default. Inside, the deepest enclosing list
// with a column that was read gives the shape: one default per record when
// that list is the innermost one, otherwise an empty list per record.
func (p *parser) absent(segments []string, outer int, elem func() any) any {
	for level := outer; level > 0; level-- {
		sib, ok := p.sibling(segments, level)
		if !ok {
			continue
		}
		fill := elem
		if level < outer {
			fill = func() any { return []any{} }
		}
		return shape(sib, level, fill)
	}
	if outer > 0 {
		return []any{}
	}
	return elem()
}

// sibling returns a column read from the payload that lives under the
// enclosing list of records at the given nesting level.
func (p *parser) sibling(segments []string, level int) (any, bool) {
	var list string
	for i := 1; i < len(segments); i++ {
		prefix := strings.Join(segments[:i], ".")
		if p.lists[prefix] == level {
			list = prefix
			break
		}
	}
	if list == "" {
		return nil, false
	}
	for _, d := range p.descs[:p.read] {
		if strings.HasPrefix(d.Path, list+".") {
			return p.flat[d.Path], true
		}
	}
	return nil, false
}

// shape mirrors the outer levels of sib, calling fill for every element at
// the bottom.
func shape(sib any, levels int, fill func() any) any {
	if levels == 0 {
		return fill()
	}
	out := []any{}
	_, _ = record.Each(sib, func(_ int, e any) error {
		out = append(out, shape(e, levels-1, fill))
		return nil
	})
	return out
}

// readValue mirrors writeValue.
func readValue(b *buffer.Buffer, c types.Codec, depth, limit int) (any, error) {
	if depth == 0 {
		return c.Read(b)
	}
	n, err := b.ReadVarint()
	if err != nil {
		return nil, &bynerr.DecodingError{Type: c.Name(), Reason: "read length failed", Err: err}
	}
	if limit > 0 && n > uint64(limit) {
		return nil, &bynerr.DecodingError{
			Type:   c.Name(),
			Reason: fmt.Sprintf("list of %d elements exceeds limit %d", n, limit),
			Err:    bynerr.ErrListTooLong,
		}
	}
	// every element takes at least a byte, except for zero-width codecs
	size := n
	if r := uint64(b.Remaining()); size > r {
		size = r
	}
	out := make([]any, 0, size)
	for i := uint64(0); i < n; i++ {
		v, err := readValue(b, c, depth-1, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
