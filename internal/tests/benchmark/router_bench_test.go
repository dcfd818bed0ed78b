package benchmark

import (
	"fmt"
	"testing"
)

// BenchmarkRouterMatch benchmarks the worst case: the matching route is last.
func BenchmarkRouterMatch(b *testing.B) {
	runWithRouteCounts(b, func(b *testing.B, count int) {
		r := buildRouter(b, count)

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			if _, _, ok := r.Match("/hi/alice"); !ok {
				b.Fatal("no match")
			}
		}
	})
}

// BenchmarkRouterMiss benchmarks a path that falls through to static content.
func BenchmarkRouterMiss(b *testing.B) {
	runWithRouteCounts(b, func(b *testing.B, count int) {
		r := buildRouter(b, count)

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			if _, _, ok := r.Match("/docs/index.gmi"); ok {
				b.Fatal("unexpected match")
			}
		}
	})
}

// BenchmarkRouterMatchParallel benchmarks concurrent lookups on a sealed table.
func BenchmarkRouterMatchParallel(b *testing.B) {
	r := buildRouter(b, 100)
	paths := make([]string, 100)
	for i := range paths {
		paths[i] = fmt.Sprintf("/section-%d/item", i%99)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			r.Match(paths[i%len(paths)])
			i++
		}
	})
}
