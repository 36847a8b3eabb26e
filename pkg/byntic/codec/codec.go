// Package codec encodes records to bytes and back for one schema.
//
// Encoding resolves every column of the linearized schema from the value and
// writes it; decoding reads the columns into a flat map and rebuilds the
// nested record, zipping the columns of each list of records back into a list
// of records. An optional transform compresses the payload after encoding and
// decompresses it before decoding.
package codec

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/byntic/byntic-go/internal/nested"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
	"github.com/byntic/byntic-go/pkg/byntic/compress"
	"github.com/byntic/byntic-go/pkg/byntic/config"
	"github.com/byntic/byntic-go/pkg/byntic/record"
	"github.com/byntic/byntic-go/pkg/byntic/schema"
)

// Codec is safe for concurrent use; every call owns its buffer.
type Codec struct {
	schema *schema.Schema

	compressFn   func([]byte) ([]byte, error)
	decompressFn func([]byte) ([]byte, error)
	transform    string

	parse ParseOptions
	zip   nested.Options
	log   *logrus.Entry
}

// Option configures a Codec. Options apply in order, so later ones win.
type Option func(*Codec) error

// WithTransform compresses encoded payloads with t and decompresses payloads
// with t before decoding.
func WithTransform(t compress.Transform) Option {
	return func(c *Codec) error {
		if t == nil {
			c.compressFn, c.decompressFn, c.transform = nil, nil, ""
			return nil
		}
		c.compressFn, c.decompressFn, c.transform = t.Compress, t.Decompress, t.Name()
		return nil
	}
}

// WithCompressor sets only the encode side of the transform.
func WithCompressor(fn func([]byte) ([]byte, error)) Option {
	return func(c *Codec) error {
		c.compressFn = fn
		c.transform = "custom"
		return nil
	}
}

// WithDecompressor sets only the decode side of the transform.
func WithDecompressor(fn func([]byte) ([]byte, error)) Option {
	return func(c *Codec) error {
		c.decompressFn = fn
		c.transform = "custom"
		return nil
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Codec) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// WithZipSingleKey makes the heuristic zip also turn records with a single
// list column into lists of records.
func WithZipSingleKey(on bool) Option {
	return func(c *Codec) error {
		c.zip.ZipSingleKey = on
		return nil
	}
}

// WithHeuristicZip replaces the schema-directed zip with the shape-based one:
// any record below the root whose children are all lists is zipped.
func WithHeuristicZip(on bool) Option {
	return func(c *Codec) error {
		c.zip.Heuristic = on
		return nil
	}
}

// WithMaxListLen bounds every list count read while decoding. Zero disables
// the bound.
func WithMaxListLen(n int) Option {
	return func(c *Codec) error {
		if n < 0 {
			return fmt.Errorf("byntic: negative list limit %d", n)
		}
		c.parse.MaxListLen = n
		return nil
	}
}

// WithConfig applies every section of cfg: the transform, decode limits and
// zip policy, and a logger built from the logging section.
func WithConfig(cfg *config.Config) Option {
	return func(c *Codec) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		t, err := cfg.Transform()
		if err != nil {
			return err
		}
		if err := WithTransform(t)(c); err != nil {
			return err
		}
		c.parse = ParseOptions{
			MaxListLen:         cfg.Decode.MaxListLen,
			AllowTrailingBytes: cfg.Decode.AllowTrailingBytes,
		}
		c.zip.Heuristic = cfg.Decode.HeuristicZip
		c.zip.ZipSingleKey = cfg.Decode.ZipSingleKey
		c.log = logrus.NewEntry(cfg.NewLogger())
		return nil
	}
}

// New returns a codec for s. Without options payloads are not transformed,
// lists of records are zipped as declared by s and list counts are bounded by
// config.DefaultMaxListLen.
//
// Following the schema means a list of records with a single wire column
// still decodes as a list of records. The shape-based zip of WithHeuristicZip
// leaves such a column as a plain list unless WithZipSingleKey is also set.
func New(s *schema.Schema, opts ...Option) (*Codec, error) {
	if s == nil {
		return nil, fmt.Errorf("byntic: codec needs a schema")
	}
	c := &Codec{
		schema: s,
		parse:  ParseOptions{MaxListLen: config.DefaultMaxListLen},
		zip:    nested.Options{Lists: s.ListPaths()},
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.log = c.log.WithField("schema", s.Name)
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(s *schema.Schema, opts ...Option) *Codec {
	c, err := New(s, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Schema returns the schema the codec was built for.
func (c *Codec) Schema() *schema.Schema {
	return c.schema
}

// Encode serializes v.
func (c *Codec) Encode(v any) ([]byte, error) {
	b := buffer.NewWriter(8 * len(c.schema.Descriptors()))
	if err := Dump(b, c.schema, v); err != nil {
		return nil, err
	}
	out := b.Bytes()
	if c.compressFn == nil {
		c.log.WithField("bytes", humanize.Bytes(uint64(len(out)))).Debug("encoded record")
		return out, nil
	}

	packed, err := c.compressFn(out)
	if err != nil {
		return nil, fmt.Errorf("byntic: %s compress: %w", c.transform, err)
	}
	c.log.WithFields(logrus.Fields{
		"bytes":      humanize.Bytes(uint64(len(out))),
		"compressed": humanize.Bytes(uint64(len(packed))),
		"transform":  c.transform,
	}).Debug("encoded record")
	return packed, nil
}

// DecodeFlat decodes data into the flat map of dotted paths to column values,
// before any reconstruction.
func (c *Codec) DecodeFlat(data []byte) (map[string]any, error) {
	if c.decompressFn != nil {
		raw, err := c.decompressFn(data)
		if err != nil {
			return nil, fmt.Errorf("byntic: %s decompress: %w", c.transform, err)
		}
		data = raw
	}
	c.log.WithField("bytes", humanize.Bytes(uint64(len(data)))).Debug("decoding record")
	return Parse(buffer.New(data), c.schema, c.parse)
}

// Decode decodes data into a nested record.
func (c *Codec) Decode(data []byte) (record.Record, error) {
	flat, err := c.DecodeFlat(data)
	if err != nil {
		return nil, err
	}
	return nested.Reconstruct(flat, c.zip)
}

// DecodeInto decodes data and binds the record to out, a pointer to a struct
// with byntic tags.
func (c *Codec) DecodeInto(data []byte, out any) error {
	rec, err := c.Decode(data)
	if err != nil {
		return err
	}
	return record.Bind(rec, out)
}
