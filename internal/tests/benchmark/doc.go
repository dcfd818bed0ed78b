// Package benchmark provides performance benchmarks for geminid.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run with specific route counts:
//
//	go test -bench=BenchmarkRouter -benchmem -benchtime=10s ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
