package codec

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/compress"
	"github.com/byntic/byntic-go/pkg/byntic/config"
	"github.com/byntic/byntic-go/pkg/byntic/record"
	"github.com/byntic/byntic-go/pkg/byntic/schema"
	"github.com/byntic/byntic-go/pkg/byntic/types"
)

type perm struct {
	Code   uint8    `byntic:"code,UInt8"`
	Scopes []string `byntic:"scopes,String"`
}

type role struct {
	ID    uint32 `byntic:"role_id,UInt32"`
	Name  string `byntic:"name,String"`
	Perms []perm `byntic:"perms"`
	Note  string `byntic:"note,Skip,default=D"`
}

type user struct {
	ID      uint32            `byntic:"id,UInt32"`
	Email   *string           `byntic:"email,Nullable(String)"`
	Roles   []role            `byntic:"roles"`
	Created time.Time         `byntic:"created,DateTime64(3)"`
	Meta    map[string]string `byntic:"meta,JSON"`
	Score   float64           `byntic:"score,Float64"`
	Code    string            `byntic:"code,FixedString(4)"`
}

func sampleUser() user {
	email := "a@b.c"
	return user{
		ID:    42,
		Email: &email,
		Roles: []role{
			{ID: 1, Name: "admin", Note: "D", Perms: []perm{
				{Code: 1, Scopes: []string{"read", "write"}},
				{Code: 2, Scopes: []string{}},
			}},
			{ID: 2, Name: "dev", Note: "D", Perms: []perm{}},
		},
		Created: time.Date(2024, 3, 1, 12, 30, 15, 250_000_000, time.UTC),
		Meta:    map[string]string{"team": "core"},
		Score:   0.1 + 0.2,
		Code:    "NO",
	}
}

func mustUserSchema(tb testing.TB) *schema.Schema {
	tb.Helper()
	s, err := schema.Derive(user{})
	require.NoError(tb, err)
	return s
}

func userCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := New(mustUserSchema(t), opts...)
	require.NoError(t, err)
	return c
}

func TestRoundTripIsIdempotent(t *testing.T) {
	c := userCodec(t)
	u := sampleUser()

	first, err := c.Encode(u)
	require.NoError(t, err)

	data := first
	for i := 0; i < 5; i++ {
		rec, err := c.Decode(data)
		require.NoError(t, err)
		data, err = c.Encode(rec)
		require.NoError(t, err)
		assert.Equal(t, first, data, "pass %d", i)
	}

	var got user
	require.NoError(t, c.DecodeInto(first, &got))
	assert.Equal(t, u, got)
}

func TestDecodedShape(t *testing.T) {
	c := userCodec(t)
	data, err := c.Encode(sampleUser())
	require.NoError(t, err)

	rec, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), rec["id"])
	assert.Equal(t, "a@b.c", rec["email"])
	assert.Equal(t, "NO", rec["code"])
	assert.Equal(t, map[string]any{"team": "core"}, rec["meta"])

	roles, ok := rec["roles"].([]any)
	require.True(t, ok)
	require.Len(t, roles, 2)
	assert.Equal(t, record.Record{
		"role_id": uint32(2),
		"name":    "dev",
		"note":    "D",
		"perms":   []any{},
	}, roles[1])

	perms := roles[0].(record.Record)["perms"].([]any)
	assert.Equal(t, record.Record{"code": uint8(1), "scopes": []any{"read", "write"}}, perms[0])
	assert.Equal(t, record.Record{"code": uint8(2), "scopes": []any{}}, perms[1])

	flat, err := c.DecodeFlat(data)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{uint8(1), uint8(2)}, []any{}}, flat["roles.perms.code"])
	assert.Equal(t, []any{"D", "D"}, flat["roles.note"])
}

func rolesSchema() *schema.Schema {
	return schema.MustNew("Row", schema.ListOf("roles", schema.MustNew("Role",
		schema.Leaf("a", types.UInt8),
		schema.Leaf("b", types.String),
	)))
}

func TestZipLaw(t *testing.T) {
	c := MustNew(rolesSchema())
	in := record.Record{"roles": []any{
		record.Record{"a": 1, "b": "x"},
		record.Record{"a": 2, "b": "y"},
	}}

	data, err := c.Encode(in)
	require.NoError(t, err)
	// columns, not records: both a values, then both b values
	assert.Equal(t, []byte{0x02, 0x01, 0x02, 0x02, 0x01, 'x', 0x01, 'y'}, data)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, record.Record{"roles": []any{
		record.Record{"a": uint8(1), "b": "x"},
		record.Record{"a": uint8(2), "b": "y"},
	}}, got)
}

func TestCorruptedColumnLengths(t *testing.T) {
	c := MustNew(rolesSchema())
	_, err := c.Decode([]byte{0x02, 0x01, 0x02, 0x01, 0x01, 'x'})
	require.ErrorIs(t, err, bynerr.ErrMismatchedArrayLength)

	var lm *bynerr.LengthMismatchError
	require.True(t, errors.As(err, &lm))
	assert.Equal(t, "roles", lm.Path)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, lm.Lengths)
}

func TestSkipNeverOnWire(t *testing.T) {
	s := schema.MustNew("S",
		schema.Leaf("id", types.UInt32),
		schema.Skip("note", schema.Default("D")),
		schema.Skip("none"),
	)
	c := MustNew(s)

	data, err := c.Encode(record.Record{"id": 1, "note": "D"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, data)
	assert.NotContains(t, string(data), "D")

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, record.Record{"id": uint32(1), "note": "D", "none": nil}, got)
}

func TestSkipDefaultsAreNotShared(t *testing.T) {
	s := schema.MustNew("S",
		schema.ListOf("rows", schema.MustNew("Row",
			schema.Leaf("id", types.UInt8),
			schema.Skip("tags", schema.DefaultFunc(func() any { return map[string]any{} })),
		)),
	)
	got, err := MustNew(s).Decode([]byte{0x02, 0x01, 0x02})
	require.NoError(t, err)

	rows := got["rows"].([]any)
	require.Len(t, rows, 2)
	rows[0].(record.Record)["tags"].(map[string]any)["x"] = 1
	assert.Empty(t, rows[1].(record.Record)["tags"])
}

func TestNullableLayout(t *testing.T) {
	c := MustNew(schema.MustNew("S", schema.Leaf("email", types.Nullable(types.String))))

	data, err := c.Encode(record.Record{"email": nil})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, data)

	data, err = c.Encode(record.Record{"email": "admin"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x05, 'a', 'd', 'm', 'i', 'n'}, data)

	got, err := c.Decode([]byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, record.Record{"email": nil}, got)
}

func TestFixedStringVectors(t *testing.T) {
	c := MustNew(schema.MustNew("S", schema.Leaf("code", types.MustParse("FixedString(4)"))))

	data, err := c.Encode(record.Record{"code": "ab"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x61, 0x62, 0x00, 0x00}, data)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "ab", got["code"])

	data, err = c.Encode(record.Record{"code": "abcdef"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x61, 0x62, 0x63, 0x64}, data)
}

func TestFixedStringSplitRune(t *testing.T) {
	c := MustNew(schema.MustNew("S", schema.Leaf("code", types.MustParse("FixedString(4)"))))

	data, err := c.Encode(record.Record{"code": "abcé"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x61, 0x62, 0x63, 0xc3}, data)

	_, err = c.Decode(data)
	require.ErrorIs(t, err, bynerr.ErrInvalidUTF8)
	var de *bynerr.DecodingError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "code", de.Path)
}

func TestByteSliceListColumn(t *testing.T) {
	type raw []byte
	s := schema.MustNew("S",
		schema.List("data", types.UInt8),
		schema.Leaf("text", types.String),
	)
	c := MustNew(s)

	for _, v := range []any{[]byte{1, 2, 3}, raw{1, 2, 3}, []any{1, 2, 3}} {
		data, err := c.Encode(record.Record{"data": v, "text": []byte("hi")})
		require.NoError(t, err, "%T", v)
		assert.Equal(t, []byte{0x03, 0x01, 0x02, 0x03, 0x02, 'h', 'i'}, data)
	}

	got, err := c.Decode([]byte{0x03, 0x01, 0x02, 0x03, 0x02, 'h', 'i'})
	require.NoError(t, err)
	assert.Equal(t, record.Record{"data": []any{uint8(1), uint8(2), uint8(3)}, "text": "hi"}, got)

	_, err = c.Encode(record.Record{"data": []int16{1, 300}, "text": ""})
	assert.ErrorIs(t, err, bynerr.ErrEncodingRange)
}

func TestForwardCompatible(t *testing.T) {
	v1 := schema.MustNew("V1",
		schema.Leaf("id", types.UInt32),
		schema.Leaf("name", types.String),
	)
	v2 := schema.MustNew("V2",
		schema.Leaf("id", types.UInt32),
		schema.Leaf("name", types.String),
		schema.Leaf("email", types.String),
		schema.Leaf("plan", types.String, schema.Default("free")),
		schema.List("tags", types.String),
	)

	data, err := MustNew(v1).Encode(record.Record{"id": 7, "name": "a"})
	require.NoError(t, err)

	got, err := MustNew(v2).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, record.Record{
		"id":    uint32(7),
		"name":  "a",
		"email": "",
		"plan":  "free",
		"tags":  []any{},
	}, got)
}

func TestForwardCompatibleInsideLists(t *testing.T) {
	v1 := schema.MustNew("V1",
		schema.Leaf("id", types.UInt32),
		schema.ListOf("roles", schema.MustNew("Role", schema.Leaf("a", types.UInt8))),
	)
	v2 := schema.MustNew("V2",
		schema.Leaf("id", types.UInt32),
		schema.ListOf("roles", schema.MustNew("Role",
			schema.Leaf("a", types.UInt8),
			schema.Leaf("b", types.UInt8, schema.Default(uint8(7))),
			schema.ListOf("perms", schema.MustNew("Perm", schema.Leaf("code", types.UInt8))),
		)),
		schema.ListOf("groups", schema.MustNew("Group", schema.Leaf("g", types.String))),
	)

	data, err := MustNew(v1).Encode(record.Record{"id": 1, "roles": []any{
		record.Record{"a": 1},
		record.Record{"a": 2},
	}})
	require.NoError(t, err)

	got, err := MustNew(v2).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, record.Record{
		"id": uint32(1),
		"roles": []any{
			record.Record{"a": uint8(1), "b": uint8(7), "perms": []any{}},
			record.Record{"a": uint8(2), "b": uint8(7), "perms": []any{}},
		},
		"groups": []any{},
	}, got)
}

func TestTruncatedAndTrailing(t *testing.T) {
	s := schema.MustNew("S",
		schema.Leaf("id", types.UInt32),
		schema.Leaf("name", types.String),
	)
	c := MustNew(s)
	data, err := c.Encode(record.Record{"id": 1, "name": "abc"})
	require.NoError(t, err)

	// ends inside a field
	_, err = c.Decode(data[:len(data)-1])
	require.ErrorIs(t, err, bynerr.ErrBufferUnderrun)
	assert.Contains(t, err.Error(), `"name"`)

	// ends between fields
	got, err := c.Decode(data[:4])
	require.NoError(t, err)
	assert.Equal(t, record.Record{"id": uint32(1), "name": ""}, got)

	got, err = c.Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, record.Record{"id": uint32(0), "name": ""}, got)

	_, err = c.Decode(append(data, 0x00))
	assert.ErrorIs(t, err, bynerr.ErrTrailingBytes)

	cfg := config.DefaultConfig()
	cfg.Decode.AllowTrailingBytes = true
	lenient := MustNew(s, WithConfig(cfg))
	got, err = lenient.Decode(append(data, 0x00))
	require.NoError(t, err)
	assert.Equal(t, "abc", got["name"])
}

func TestListLimit(t *testing.T) {
	s := schema.MustNew("S", schema.List("tags", types.UInt8))
	payload := []byte{0x03, 0x01, 0x02, 0x03}

	_, err := MustNew(s).Decode(payload)
	require.NoError(t, err)

	_, err = MustNew(s, WithMaxListLen(2)).Decode(payload)
	assert.ErrorIs(t, err, bynerr.ErrListTooLong)

	// a count far beyond the payload fails without allocating for it
	_, err = MustNew(s).Decode([]byte{0xff, 0xff, 0x03})
	assert.ErrorIs(t, err, bynerr.ErrBufferUnderrun)

	_, err = New(s, WithMaxListLen(-1))
	assert.Error(t, err)
}

func TestZipPolicies(t *testing.T) {
	s := schema.MustNew("S", schema.ListOf("roles", schema.MustNew("Role", schema.Leaf("id", types.UInt32))))
	data, err := MustNew(s).Encode(record.Record{"roles": []any{
		record.Record{"id": 1},
		record.Record{"id": 2},
	}})
	require.NoError(t, err)

	zipped := record.Record{"roles": []any{
		record.Record{"id": uint32(1)},
		record.Record{"id": uint32(2)},
	}}

	got, err := MustNew(s).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, zipped, got)

	got, err = MustNew(s, WithHeuristicZip(true)).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, record.Record{"roles": record.Record{"id": []any{uint32(1), uint32(2)}}}, got)

	got, err = MustNew(s, WithHeuristicZip(true), WithZipSingleKey(true)).Decode(data)
	require.NoError(t, err)
	assert.Equal(t, zipped, got)
}

func TestEncodeErrors(t *testing.T) {
	s := schema.MustNew("S",
		schema.Leaf("id", types.UInt8),
		schema.List("tags", types.String),
	)
	c := MustNew(s)

	_, err := c.Encode(record.Record{"id": 1})
	require.ErrorIs(t, err, bynerr.ErrMissingField)
	assert.Contains(t, err.Error(), `"tags"`)

	_, err = c.Encode(record.Record{"id": 300, "tags": nil})
	require.ErrorIs(t, err, bynerr.ErrEncodingRange)
	assert.Contains(t, err.Error(), `"id"`)

	_, err = c.Encode(record.Record{"id": 1, "tags": "solo"})
	assert.ErrorIs(t, err, bynerr.ErrTypeMismatch)

	_, err = c.Encode(record.Record{"id": 1, "tags": []any{"a", 2}})
	assert.ErrorIs(t, err, bynerr.ErrTypeMismatch)

	data, err := c.Encode(record.Record{"id": 1, "tags": nil})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00}, data)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestTransforms(t *testing.T) {
	z, err := compress.Zstd(3)
	require.NoError(t, err)

	plain := userCodec(t)
	packed := userCodec(t, WithTransform(z))

	raw, err := plain.Encode(sampleUser())
	require.NoError(t, err)
	data, err := packed.Encode(sampleUser())
	require.NoError(t, err)
	assert.NotEqual(t, raw, data)

	var got user
	require.NoError(t, packed.DecodeInto(data, &got))
	assert.Equal(t, sampleUser(), got)

	// a payload must be read back with the transform that wrote it
	_, err = userCodec(t, WithTransform(compress.Snappy())).Decode(data)
	assert.Error(t, err)

	boom := errors.New("boom")
	failing := userCodec(t,
		WithCompressor(func([]byte) ([]byte, error) { return nil, boom }),
		WithDecompressor(func([]byte) ([]byte, error) { return nil, boom }),
	)
	_, err = failing.Encode(sampleUser())
	assert.ErrorIs(t, err, boom)
	_, err = failing.Decode(raw)
	assert.ErrorIs(t, err, boom)

	reversed := func(p []byte) ([]byte, error) {
		out := make([]byte, len(p))
		for i, b := range p {
			out[len(p)-1-i] = b
		}
		return out, nil
	}
	custom := userCodec(t, WithCompressor(reversed), WithDecompressor(reversed))
	data, err = custom.Encode(sampleUser())
	require.NoError(t, err)
	require.NoError(t, custom.DecodeInto(data, &got))
	assert.Equal(t, sampleUser(), got)
}

func TestWithConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Compression = config.Compression{Algorithm: "gzip", Level: 9}
	cfg.Decode.HeuristicZip = true
	cfg.Logging.Level = "warn"

	s := schema.MustNew("S", schema.ListOf("roles", schema.MustNew("Role", schema.Leaf("id", types.UInt8))))
	c := MustNew(s, WithConfig(cfg))
	data, err := c.Encode(record.Record{"roles": []any{record.Record{"id": 5}}})
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, record.Record{"roles": record.Record{"id": []any{uint8(5)}}}, got)

	cfg.Compression.Algorithm = "lz4"
	_, err = New(s, WithConfig(cfg))
	assert.Error(t, err)
}

func TestDebugLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	s := schema.MustNew("V1", schema.Leaf("id", types.UInt32), schema.Leaf("name", types.String))
	c := MustNew(s, WithLogger(logrus.NewEntry(logger)))
	data, err := c.Encode(record.Record{"id": 7, "name": "a"})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "encoded record", entry.Message)
	assert.Equal(t, "V1", entry.Data["schema"])
	assert.Equal(t, "6 B", entry.Data["bytes"])

	_, err = c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "decoding record", hook.LastEntry().Message)
}

func TestConcurrentUse(t *testing.T) {
	c := userCodec(t, WithTransform(compress.Snappy()))
	want := sampleUser()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				data, err := c.Encode(want)
				if !assert.NoError(t, err) {
					return
				}
				var got user
				if !assert.NoError(t, c.DecodeInto(data, &got)) {
					return
				}
				assert.Equal(t, want, got)
			}
		}()
	}
	wg.Wait()
}
