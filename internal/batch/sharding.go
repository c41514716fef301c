package batch

// Size picks the shard size for a submission of n prompts, per §4.1
// step 5: fewer than 5 prompts go in a single shard; 5-10 shard at 5;
// anything larger shards at 10.
func Size(n int) int {
	switch {
	case n < 5:
		return n
	case n <= 10:
		return 5
	default:
		return 10
	}
}

// Count returns the number of shards produced by sharding n prompts at
// the given size (ceil(n / size)).
func Count(n, size int) int {
	if size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Shard splits items into shards of at most `size`, preserving order,
// with the i-th item's shard index equal to i / size (§4.1 step 6's
// batch_number assignment).
func Shard[T any](items []T, size int) [][]T {
	if size <= 0 {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	var shards [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		shards = append(shards, items[i:end])
	}
	return shards
}
