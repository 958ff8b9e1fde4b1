package ingest

import (
	"context"
	"sync"
)

// Result is one branch's outcome from a Gather fan-out.
type Result[T any] struct {
	Value T
	Err   error
}

// Gather runs fn for every index concurrently and waits for all branches to
// finish. Unlike errgroup, a failing branch never cancels or hides the other
// branches; each outcome is reported in order. This is the pipeline's core
// resilience idiom: one chunk's enrichment failing must not block the rest.
func Gather[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error)) []Result[T] {
	results := make([]Result[T], n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := fn(ctx, i)
			results[i] = Result[T]{Value: v, Err: err}
		}(i)
	}
	wg.Wait()

	return results
}
