package types

import (
	"strconv"
	"strings"

	bynerr "github.com/byntic/byntic-go/internal/errors"
)

var simpleCodecs = map[string]Codec{
	"bool":         Bool,
	"boolean":      Bool,
	"int8":         Int8,
	"int16":        Int16,
	"int32":        Int32,
	"int64":        Int64,
	"uint8":        UInt8,
	"uint16":       UInt16,
	"uint32":       UInt32,
	"uint64":       UInt64,
	"uint128":      UInt128,
	"float32":      Float32,
	"float64":      Float64,
	"string":       String,
	"json":         JSON,
	"stringjson":   JSON,
	"date":         Date,
	"datetime":     DateTime32,
	"datetime32":   DateTime32,
	"datetime32tz": DateTime32TZ,
	"uuid":         UUID,
	"skip":         Skip,
}

// Parse resolves a type name such as "UInt32", "Nullable(String)",
// "DateTime64(3)" or "FixedString(4, 'UTF-16LE')". Names are case-insensitive.
func Parse(name string) (Codec, error) {
	head, args, err := splitTypeName(name)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(head)

	if c, ok := simpleCodecs[key]; ok {
		if len(args) != 0 {
			return nil, bynerr.Errorf("type %s takes no parameters: %q", head, name)
		}
		return c, nil
	}

	switch key {
	case "nullable":
		if len(args) != 1 {
			return nil, bynerr.Errorf("Nullable takes exactly one type: %q", name)
		}
		inner, err := Parse(args[0])
		if err != nil {
			return nil, err
		}
		return Nullable(inner), nil
	case "fixedstring":
		if len(args) < 1 || len(args) > 2 {
			return nil, bynerr.Errorf("FixedString takes a size and an optional encoding: %q", name)
		}
		size, err := intArg(args[0])
		if err != nil {
			return nil, bynerr.Errorf("bad FixedString size in %q: %w", name, err)
		}
		enc := ""
		if len(args) == 2 {
			enc = unquote(args[1])
		}
		return FixedString(size, enc)
	case "datetime64", "datetime64tz", "decimal64":
		if len(args) != 1 {
			return nil, bynerr.Errorf("%s takes exactly one integer: %q", head, name)
		}
		n, err := intArg(args[0])
		if err != nil {
			return nil, bynerr.Errorf("bad %s parameter in %q: %w", head, name, err)
		}
		switch key {
		case "datetime64":
			return DateTime64(n)
		case "datetime64tz":
			return DateTime64TZ(n)
		}
		return Decimal64(n)
	}
	return nil, bynerr.Errorf("unknown type %q", head)
}

// MustParse is like Parse but panics on error. It is meant for package-level
// schema declarations.
func MustParse(name string) Codec {
	c, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return c
}

// splitTypeName separates "Head(a, b)" into Head and its top-level arguments.
func splitTypeName(name string) (string, []string, error) {
	s := strings.TrimSpace(name)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if s == "" {
			return "", nil, bynerr.Errorf("empty type name")
		}
		return s, nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, bynerr.Errorf("unbalanced parentheses in %q", name)
	}
	head := strings.TrimSpace(s[:open])
	body := s[open+1 : len(s)-1]

	var (
		args  []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth < 0 {
				return "", nil, bynerr.Errorf("unbalanced parentheses in %q", name)
			}
		case ch == ',' && depth == 0:
			args = append(args, strings.TrimSpace(body[start:i]))
			start = i + 1
		}
	}
	if depth != 0 || quote != 0 {
		return "", nil, bynerr.Errorf("unbalanced parentheses or quotes in %q", name)
	}
	if last := strings.TrimSpace(body[start:]); last != "" || len(args) > 0 {
		args = append(args, last)
	}
	for _, a := range args {
		if a == "" {
			return "", nil, bynerr.Errorf("empty parameter in %q", name)
		}
	}
	return head, args, nil
}

func intArg(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
