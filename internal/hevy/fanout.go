package hevy

import "sync"

// result holds the per-slot outcome of a fan-out call.
type result[T any] struct {
	value T
	err   error
}

// fanOut runs fn for every item concurrently and collects one result per
// slot. A failing item records its error in place; it neither cancels nor
// blocks its siblings.
func fanOut[I, T any](items []I, fn func(I) (T, error)) []result[T] {
	results := make([]result[T], len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item I) {
			defer wg.Done()
			v, err := fn(item)
			results[i] = result[T]{value: v, err: err}
		}(i, item)
	}
	wg.Wait()

	return results
}
