package memdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/dhoulb/shelving/item"
)

func benchProvider(b *testing.B, size int) *Provider {
	b.Helper()
	p := New()
	ctx := context.Background()
	for n := range size {
		if err := p.SetItem(ctx, "docs", fmt.Sprintf("d%06d", n), map[string]any{
			"n":   n,
			"mod": n % 10,
		}); err != nil {
			b.Fatalf("SetItem failed: %v", err)
		}
	}
	return p
}

func BenchmarkGetItem(b *testing.B) {
	p := benchProvider(b, 1000)
	ctx := context.Background()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if _, err := p.GetItem(ctx, "docs", "d000500"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetQuery(b *testing.B) {
	p := benchProvider(b, 1000)
	ctx := context.Background()
	q := item.Query{}.Filter("mod", item.OpIs, 3).Sort("n", item.Descending).Max(20)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if _, err := p.GetQuery(ctx, "docs", q); err != nil {
			b.Fatal(err)
		}
	}
}
