package types

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/buffer"
)

var (
	String Codec = stringCodec{}
	JSON   Codec = jsonCodec{}
)

// readLen consumes a varint length prefix and checks it against the bytes
// left in b.
func readLen(b *buffer.Buffer) (int, error) {
	n, err := b.ReadVarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(b.Remaining()) {
		return 0, fmt.Errorf("%w: length prefix %d exceeds %d remaining bytes", bynerr.ErrBufferUnderrun, n, b.Remaining())
	}
	return int(n), nil
}

type stringCodec struct{}

func (stringCodec) Name() string { return "String" }
func (stringCodec) Zero() any    { return "" }

func (c stringCodec) Read(b *buffer.Buffer) (any, error) {
	n, err := readLen(b)
	if err != nil {
		return nil, decodeError(c.Name(), "read length failed", err)
	}
	p, err := b.ReadBytes(n)
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	if !utf8.Valid(p) {
		return nil, decodeError(c.Name(), "payload is not utf8", bynerr.ErrInvalidUTF8)
	}
	return string(p), nil
}

func (c stringCodec) Write(b *buffer.Buffer, v any) error {
	var p []byte
	switch x := v.(type) {
	case string:
		p = []byte(x)
	case []byte:
		p = x
	default:
		return mismatch(c.Name(), v)
	}
	if !utf8.Valid(p) {
		return encodeError(c.Name(), "value is not utf8", bynerr.ErrInvalidUTF8)
	}
	b.WriteVarint(uint64(len(p)))
	b.WriteBytes(p)
	return nil
}

type fixedStringCodec struct {
	size     int
	encName  string
	encoding encoding.Encoding // nil means UTF-8 passthrough
}

// FixedString returns a codec for text stored in exactly size bytes. The text
// is encoded with the named encoding (an Encoding Standard label such as
// "utf-16le" or "windows-1252"; empty means UTF-8), then truncated or padded
// with zero bytes. Trailing NULs are dropped on decode.
func FixedString(size int, encodingName string) (Codec, error) {
	if size <= 0 {
		return nil, bynerr.Errorf("fixed string size must be positive, got %d", size)
	}
	c := fixedStringCodec{size: size}
	label := strings.ToLower(strings.TrimSpace(encodingName))
	if label == "" || label == "utf-8" || label == "utf8" {
		return c, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, bynerr.Errorf("unknown text encoding %q: %w", encodingName, err)
	}
	c.encName = encodingName
	c.encoding = enc
	return c, nil
}

func (c fixedStringCodec) Name() string {
	if c.encoding == nil {
		return fmt.Sprintf("FixedString(%d)", c.size)
	}
	return fmt.Sprintf("FixedString(%d, '%s')", c.size, c.encName)
}

func (fixedStringCodec) Zero() any { return "" }

func (c fixedStringCodec) Read(b *buffer.Buffer) (any, error) {
	p, err := b.ReadBytes(c.size)
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	if c.encoding == nil {
		s := strings.TrimRight(string(p), "\x00")
		// truncation on write may have split a multibyte rune
		if !utf8.ValidString(s) {
			return nil, decodeError(c.Name(), "payload is not utf8", bynerr.ErrInvalidUTF8)
		}
		return s, nil
	}
	out, err := c.encoding.NewDecoder().Bytes(p)
	if err != nil {
		return nil, decodeError(c.Name(), "decode text failed", err)
	}
	return strings.TrimRight(string(out), "\x00"), nil
}

func (c fixedStringCodec) Write(b *buffer.Buffer, v any) error {
	var p []byte
	switch x := v.(type) {
	case string:
		p = []byte(x)
	case []byte:
		p = x
	default:
		return mismatch(c.Name(), v)
	}
	if c.encoding != nil {
		var err error
		if p, err = c.encoding.NewEncoder().Bytes(p); err != nil {
			return encodeError(c.Name(), "encode text failed", err)
		}
	}
	if len(p) >= c.size {
		b.WriteBytes(p[:c.size])
		return nil
	}
	b.WriteBytes(p)
	b.WriteBytes(make([]byte, c.size-len(p)))
	return nil
}

// jsonCodec stores any JSON-marshalable value as length-prefixed text.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "JSON" }
func (jsonCodec) Zero() any    { return map[string]any{} }

func (c jsonCodec) Read(b *buffer.Buffer) (any, error) {
	n, err := readLen(b)
	if err != nil {
		return nil, decodeError(c.Name(), "read length failed", err)
	}
	p, err := b.ReadBytes(n)
	if err != nil {
		return nil, decodeError(c.Name(), "read failed", err)
	}
	if len(p) == 0 {
		return map[string]any{}, nil
	}
	var out any
	if err := json.Unmarshal(p, &out); err != nil {
		return nil, decodeError(c.Name(), err.Error(), bynerr.ErrMalformedJSON)
	}
	return out, nil
}

func (c jsonCodec) Write(b *buffer.Buffer, v any) error {
	p, err := json.Marshal(v)
	if err != nil {
		return encodeError(c.Name(), "marshal failed", err)
	}
	b.WriteVarint(uint64(len(p)))
	b.WriteBytes(p)
	return nil
}
