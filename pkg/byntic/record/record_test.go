package record

import (
	"math"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bynerr "github.com/byntic/byntic-go/internal/errors"
	"github.com/byntic/byntic-go/pkg/byntic/types"
)

type perm struct {
	Code uint8 `byntic:"code,UInt8"`
}

type role struct {
	ID    uint32   `byntic:"role_id,UInt32"`
	Name  string   `byntic:"name,String"`
	Perms []perm   `byntic:"perms"`
	Tags  []string `byntic:"tags,String"`
}

type profile struct {
	Theme string `json:"theme"`
}

type user struct {
	ID      uint32            `byntic:"id,UInt32"`
	Email   *string           `byntic:"email,Nullable(String)"`
	Roles   []role            `byntic:"roles"`
	Seen    time.Time         `byntic:"seen,DateTime32"`
	Raw     []byte            `byntic:"raw,String"`
	Meta    map[string]string `byntic:"meta,JSON"`
	Profile profile           `byntic:"profile,JSON"`
	Score   float32           `byntic:"score,Float32"`
	Note    string            `byntic:"note,Skip"`
	Secret  string            `byntic:"-"`
}

// named implements Fielder itself.
type named struct{ n string }

func (x named) Field(name string) (any, bool) {
	if name == "name" {
		return x.n, true
	}
	return nil, false
}

func sample() user {
	email := "a@b.c"
	return user{
		ID:    7,
		Email: &email,
		Roles: []role{
			{ID: 1, Name: "admin", Perms: []perm{{1}, {2}}, Tags: []string{"x"}},
			{ID: 2, Name: "dev", Perms: nil, Tags: []string{}},
		},
	}
}

func TestResolveStruct(t *testing.T) {
	u := sample()

	v, err := Resolve(u, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)

	v, err = Resolve(&u, []string{"roles", "role_id"})
	require.NoError(t, err)
	assert.Equal(t, []any{uint32(1), uint32(2)}, v)

	v, err = Resolve(u, []string{"roles", "perms", "code"})
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{uint8(1), uint8(2)}, []any{}}, v)

	// a list of scalars at the end of the path is returned as is
	v, err = Resolve(u, []string{"roles", "tags"})
	require.NoError(t, err)
	assert.Equal(t, []any{[]string{"x"}, []string{}}, v)

	_, err = Resolve(u, []string{"secret"})
	assert.ErrorIs(t, err, bynerr.ErrMissingField)
	_, err = Resolve(u, []string{"id", "x"})
	assert.ErrorIs(t, err, bynerr.ErrTypeMismatch)
}

func TestResolveMapsAndFielders(t *testing.T) {
	rec := Record{
		"addr":  map[string]any{"city": "Oslo"},
		"roles": []any{Record{"id": 1}, named{n: "n"}},
	}
	v, err := rec.Lookup("addr.city")
	require.NoError(t, err)
	assert.Equal(t, "Oslo", v)

	_, err = rec.Lookup("roles.id")
	assert.ErrorIs(t, err, bynerr.ErrMissingField)

	v, err = Resolve(named{n: "x"}, []string{"name"})
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	_, ok := Of((*user)(nil))
	assert.False(t, ok)
	_, ok = Of(42)
	assert.False(t, ok)
}

func TestIsList(t *testing.T) {
	assert.True(t, IsList([]any{}))
	assert.True(t, IsList([]string{"a"}))
	assert.False(t, IsList([]byte("a")))
	assert.False(t, IsList("a"))
	assert.False(t, IsList([2]int{}))

	n, err := Each("x", func(int, any) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, -1, n)
}

func TestBind(t *testing.T) {
	seen := time.Unix(1700000000, 0).UTC()
	rec := Record{
		"id":    uint32(7),
		"email": "a@b.c",
		"roles": []any{
			Record{"role_id": uint32(1), "name": "admin", "perms": []any{Record{"code": uint8(3)}}, "tags": []any{"x", "y"}},
			Record{"role_id": uint32(2), "name": "dev", "perms": []any{}, "tags": []any{}},
		},
		"seen":    seen,
		"raw":     "bytes",
		"meta":    map[string]any{"k": "v"},
		"profile": map[string]any{"theme": "dark"},
		"score":   1.5,
		"note":    "D",
		"unknown": true,
	}

	var u user
	require.NoError(t, Bind(rec, &u))

	assert.Equal(t, uint32(7), u.ID)
	require.NotNil(t, u.Email)
	assert.Equal(t, "a@b.c", *u.Email)
	require.Len(t, u.Roles, 2)
	assert.Equal(t, role{ID: 1, Name: "admin", Perms: []perm{{3}}, Tags: []string{"x", "y"}}, u.Roles[0])
	assert.Equal(t, []perm{}, u.Roles[1].Perms)
	assert.Equal(t, seen, u.Seen)
	assert.Equal(t, []byte("bytes"), u.Raw)
	assert.Equal(t, map[string]string{"k": "v"}, u.Meta)
	assert.Equal(t, profile{Theme: "dark"}, u.Profile)
	assert.Equal(t, float32(1.5), u.Score)
	assert.Equal(t, "D", u.Note)
	assert.Empty(t, u.Secret)
}

func TestBindNullAndWidths(t *testing.T) {
	email := "x"
	u := user{Email: &email}
	require.NoError(t, Bind(Record{"email": nil, "id": 12.0}, &u))
	assert.Nil(t, u.Email)
	assert.Equal(t, uint32(12), u.ID)

	err := Bind(Record{"id": int64(-1)}, &u)
	assert.ErrorIs(t, err, bynerr.ErrEncodingRange)

	err = Bind(Record{"id": uint64(math.MaxUint64)}, &u)
	assert.ErrorIs(t, err, bynerr.ErrEncodingRange)

	err = Bind(Record{"roles": []any{Record{"role_id": "one"}}}, &u)
	require.ErrorIs(t, err, bynerr.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "roles[0].role_id")

	assert.Error(t, Bind(Record{}, u))
	assert.Error(t, Bind(Record{}, new(int)))
}

func TestBindCodecAlternatives(t *testing.T) {
	type alt struct {
		Join    time.Time `byntic:"join,Date"`
		ID      string    `byntic:"id,UUID"`
		RawID   []byte    `byntic:"raw_id,UUID"`
		ArrID   [16]byte  `byntic:"arr_id,UUID"`
		Price   string    `byntic:"price,Decimal64(2)"`
		Ratio   float64   `byntic:"ratio,Decimal64(2)"`
		Big     *big.Int  `byntic:"big,UInt128"`
		BigText string    `byntic:"big_text,UInt128"`
		Data    []uint8   `byntic:"data,UInt8"`
	}
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	u := types.Uint128{Hi: 1, Lo: 2}
	rec := Record{
		"join":     civil.Date{Year: 2024, Month: time.May, Day: 17},
		"id":       id,
		"raw_id":   id,
		"arr_id":   id,
		"price":    decimal.New(1234, -2),
		"ratio":    decimal.New(25, -2),
		"big":      u,
		"big_text": u,
		"data":     []any{uint8(1), uint8(2)},
	}

	var out alt
	require.NoError(t, Bind(rec, &out))
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), out.Join)
	assert.Equal(t, id.String(), out.ID)
	assert.Equal(t, id[:], out.RawID)
	assert.Equal(t, [16]byte(id), out.ArrID)
	assert.Equal(t, "12.34", out.Price)
	assert.Equal(t, 0.25, out.Ratio)
	assert.Equal(t, 0, u.Big().Cmp(out.Big))
	assert.Equal(t, "18446744073709551618", out.BigText)
	assert.Equal(t, []uint8{1, 2}, out.Data)

	err := Bind(Record{"join": id}, &out)
	assert.ErrorIs(t, err, bynerr.ErrTypeMismatch)
}
