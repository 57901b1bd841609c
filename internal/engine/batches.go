package engine

import "iter"

// Batches yields consecutive sub-slices of items of at most size elements,
// keyed by batch index. The sequence is finite and can be ranged over again.
// A size below 1 is treated as 1.
func Batches[T any](items []T, size int) iter.Seq2[int, []T] {
	if size < 1 {
		size = 1
	}
	return func(yield func(int, []T) bool) {
		for i, start := 0, 0; start < len(items); i, start = i+1, start+size {
			end := min(start+size, len(items))
			if !yield(i, items[start:end:end]) {
				return
			}
		}
	}
}

// BatchCount returns how many batches Batches yields for n items.
func BatchCount(n, size int) int {
	if size < 1 {
		size = 1
	}
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
