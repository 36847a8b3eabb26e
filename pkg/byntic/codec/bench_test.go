package codec

import (
	"testing"

	"github.com/byntic/byntic-go/pkg/byntic/compress"
)

func BenchmarkEncodeUser(b *testing.B) {
	c := MustNew(mustUserSchema(b))
	u := sampleUser()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Encode(u); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeUser(b *testing.B) {
	c := MustNew(mustUserSchema(b))
	// Pre-encode data
	data, err := c.Encode(sampleUser())
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var u user
		if err := c.DecodeInto(data, &u); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeUserZstd(b *testing.B) {
	z, err := compress.Zstd(0)
	if err != nil {
		b.Fatal(err)
	}
	c := MustNew(mustUserSchema(b), WithTransform(z))
	data, err := c.Encode(sampleUser())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}
