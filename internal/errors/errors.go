package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every failure surfaced by the codec wraps exactly one of these
// so callers can branch with errors.Is.
var (
	ErrBufferUnderrun        = stderrors.New("byntic: buffer underrun")
	ErrVarintOverflow        = stderrors.New("byntic: varint overflows 64 bits")
	ErrEncodingRange         = stderrors.New("byntic: value out of range for wire type")
	ErrTimezoneMismatch      = stderrors.New("byntic: non-UTC offset given to a UTC-only codec")
	ErrMismatchedArrayLength = stderrors.New("byntic: sibling arrays have mismatched lengths")
	ErrMalformedJSON         = stderrors.New("byntic: malformed json")
	ErrInvalidUTF8           = stderrors.New("byntic: invalid utf8 string")
	ErrTrailingBytes         = stderrors.New("byntic: unread bytes after last field")
	ErrListTooLong           = stderrors.New("byntic: list length exceeds limit")
	ErrTypeMismatch          = stderrors.New("byntic: value type does not match codec")
	ErrInvalidValue          = stderrors.New("byntic: invalid encoded value")
	ErrInvalidSchema         = stderrors.New("byntic: invalid schema")
	ErrMissingField          = stderrors.New("byntic: record has no such field")
)

// EncodingError represents an error while writing a value.
type EncodingError struct {
	Type   string
	Path   string
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	where := e.Type
	if e.Path != "" {
		where = fmt.Sprintf("%s at %q", e.Type, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("byntic encoding error for %s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("byntic encoding error for %s: %s", where, e.Reason)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// DecodingError represents an error while reading a value.
type DecodingError struct {
	Type   string
	Path   string
	Reason string
	Err    error
}

func (d *DecodingError) Error() string {
	where := d.Type
	if d.Path != "" {
		where = fmt.Sprintf("%s at %q", d.Type, d.Path)
	}
	if d.Err != nil {
		return fmt.Sprintf("byntic decoding error for %s: %s: %v", where, d.Reason, d.Err)
	}
	return fmt.Sprintf("byntic decoding error for %s: %s", where, d.Reason)
}

func (d *DecodingError) Unwrap() error {
	return d.Err
}

// LengthMismatchError reports sibling lists under Path whose lengths differ.
type LengthMismatchError struct {
	Path    string
	Lengths map[string]int
}

func (e *LengthMismatchError) Error() string {
	keys := make([]string, 0, len(e.Lengths))
	for k := range e.Lengths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, e.Lengths[k])
	}
	return fmt.Sprintf("byntic: arrays under %q have mismatched lengths: %s", e.Path, strings.Join(parts, ", "))
}

func (e *LengthMismatchError) Unwrap() error {
	return ErrMismatchedArrayLength
}

// WithPath stamps path onto err when it is an EncodingError or DecodingError
// that does not carry one yet.
func WithPath(err error, path string) error {
	var enc *EncodingError
	if stderrors.As(err, &enc) && enc.Path == "" {
		enc.Path = path
		return err
	}
	var dec *DecodingError
	if stderrors.As(err, &dec) && dec.Path == "" {
		dec.Path = path
		return err
	}
	return err
}

// Errorf adds the standard "byntic:" prefix to formatted errors so helpers and
// callers remain consistent with the built-in Err* values.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf("byntic: "+format, args...)
}
