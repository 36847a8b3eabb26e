// Package compress provides optional whole-payload transforms applied after
// encoding and before decoding. The codec treats them as opaque: a payload
// compressed with one transform must be decompressed with the same one.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	bynerr "github.com/byntic/byntic-go/internal/errors"
)

// Transform compresses and decompresses whole payloads.
type Transform interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Names of the built-in transforms, as accepted by ByName.
const (
	NameNone   = "none"
	NameZstd   = "zstd"
	NameSnappy = "snappy"
	NameBrotli = "brotli"
	NameGzip   = "gzip"
	NameZlib   = "zlib"
)

// ByName resolves a transform from its configured name. A level of 0 selects
// the algorithm's default; snappy and none ignore it.
func ByName(name string, level int) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameNone:
		return None(), nil
	case NameZstd:
		return Zstd(level)
	case NameSnappy:
		return Snappy(), nil
	case NameBrotli:
		return Brotli(level)
	case NameGzip:
		return Gzip(level)
	case NameZlib:
		return Zlib(level)
	}
	return nil, bynerr.Errorf("unknown compression %q", name)
}

// Check reports whether ByName accepts name and level without building the
// transform.
func Check(name string, level int) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameNone, NameSnappy, NameZstd:
		return nil
	case NameBrotli:
		_, err := brotliLevel(level)
		return err
	case NameGzip:
		_, err := gzipLevel(level)
		return err
	case NameZlib:
		_, err := zlibLevel(level)
		return err
	}
	return bynerr.Errorf("unknown compression %q", name)
}

type none struct{}

// None returns the identity transform.
func None() Transform { return none{} }

func (none) Name() string                          { return NameNone }
func (none) Compress(src []byte) ([]byte, error)   { return src, nil }
func (none) Decompress(src []byte) ([]byte, error) { return src, nil }

type funcs struct {
	name       string
	compress   func([]byte) ([]byte, error)
	decompress func([]byte) ([]byte, error)
}

// Funcs wraps caller-supplied functions. A nil function passes data through
// unchanged.
func Funcs(name string, compress, decompress func([]byte) ([]byte, error)) Transform {
	return funcs{name: name, compress: compress, decompress: decompress}
}

func (f funcs) Name() string { return f.name }

func (f funcs) Compress(src []byte) ([]byte, error) {
	if f.compress == nil {
		return src, nil
	}
	return f.compress(src)
}

func (f funcs) Decompress(src []byte) ([]byte, error) {
	if f.decompress == nil {
		return src, nil
	}
	return f.decompress(src)
}

// zstdTransform shares one encoder and one decoder; EncodeAll and DecodeAll
// are safe for concurrent use.
type zstdTransform struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Zstd returns a zstd transform. level uses the zstd command line scale.
func Zstd(level int) (Transform, error) {
	opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
	if level != 0 {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("byntic: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("byntic: zstd decoder: %w", err)
	}
	return &zstdTransform{enc: enc, dec: dec}, nil
}

func (z *zstdTransform) Name() string { return NameZstd }

// Close releases the decoder goroutines and the encoder.
func (z *zstdTransform) Close() error {
	z.dec.Close()
	return z.enc.Close()
}

func (z *zstdTransform) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (z *zstdTransform) Decompress(src []byte) ([]byte, error) {
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("byntic: zstd decompress: %w", err)
	}
	return out, nil
}

type snappyTransform struct{}

// Snappy returns a snappy block-format transform.
func Snappy() Transform { return snappyTransform{} }

func (snappyTransform) Name() string { return NameSnappy }

func (snappyTransform) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyTransform) Decompress(src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("byntic: snappy decompress: %w", err)
	}
	return out, nil
}

// stream adapts a writer/reader pair from a streaming compressor. Writers
// are pooled since gzip and brotli allocate large tables per writer.
type stream struct {
	name    string
	writers sync.Pool
	reader  func(io.Reader) (io.ReadCloser, error)
}

type resetWriter interface {
	io.WriteCloser
	Reset(io.Writer)
}

func newStream(name string, writer func() resetWriter, reader func(io.Reader) (io.ReadCloser, error)) *stream {
	s := &stream{name: name, reader: reader}
	s.writers.New = func() any { return writer() }
	return s
}

func (s *stream) Name() string { return s.name }

func (s *stream) Compress(src []byte) ([]byte, error) {
	var out bytes.Buffer
	w := s.writers.Get().(resetWriter)
	defer s.writers.Put(w)
	w.Reset(&out)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("byntic: %s compress: %w", s.name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("byntic: %s compress: %w", s.name, err)
	}
	return out.Bytes(), nil
}

func (s *stream) Decompress(src []byte) ([]byte, error) {
	r, err := s.reader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("byntic: %s decompress: %w", s.name, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("byntic: %s decompress: %w", s.name, err)
	}
	return out, nil
}

func brotliLevel(level int) (int, error) {
	if level == 0 {
		return brotli.DefaultCompression, nil
	}
	if level < brotli.BestSpeed || level > brotli.BestCompression {
		return 0, bynerr.Errorf("brotli level %d out of range", level)
	}
	return level, nil
}

func gzipLevel(level int) (int, error) {
	if level == 0 {
		return gzip.DefaultCompression, nil
	}
	if level < gzip.StatelessCompression || level > gzip.BestCompression {
		return 0, bynerr.Errorf("gzip level %d out of range", level)
	}
	return level, nil
}

func zlibLevel(level int) (int, error) {
	if level == 0 {
		return zlib.DefaultCompression, nil
	}
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		return 0, bynerr.Errorf("zlib level %d out of range", level)
	}
	return level, nil
}

// Brotli returns a brotli transform. level ranges over 0..11; 0 selects the
// library default.
func Brotli(level int) (Transform, error) {
	level, err := brotliLevel(level)
	if err != nil {
		return nil, err
	}
	return newStream(NameBrotli,
		func() resetWriter { return brotli.NewWriterLevel(nil, level) },
		func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(brotli.NewReader(r)), nil },
	), nil
}

// Gzip returns a gzip transform. level follows klauspost/compress/gzip; 0
// selects the default.
func Gzip(level int) (Transform, error) {
	level, err := gzipLevel(level)
	if err != nil {
		return nil, err
	}
	return newStream(NameGzip,
		func() resetWriter {
			w, _ := gzip.NewWriterLevel(nil, level)
			return w
		},
		func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
	), nil
}

// Zlib returns a zlib transform. level follows klauspost/compress/zlib; 0
// selects the default.
func Zlib(level int) (Transform, error) {
	level, err := zlibLevel(level)
	if err != nil {
		return nil, err
	}
	return newStream(NameZlib,
		func() resetWriter {
			w, _ := zlib.NewWriterLevel(nil, level)
			return w
		},
		zlib.NewReader,
	), nil
}
