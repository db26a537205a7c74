// Package batch splits an ordered sequence of serialized items into
// transmission batches bounded by item count and cumulative byte size.
package batch

// Limits bounds a single batch. A zero value means unlimited for that
// dimension.
type Limits struct {
	MaxItems int
	MaxBytes int
}

// Partition greedily fills batches in input order such that no batch exceeds
// either limit. An item that alone exceeds MaxBytes still ships as its own
// singleton batch: items are never dropped, split, or reordered. With no
// limits the entire input is one batch.
func Partition(items [][]byte, limits Limits) [][][]byte {
	if len(items) == 0 {
		return nil
	}

	var (
		batches [][][]byte
		current [][]byte
		bytes   int
	)

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			bytes = 0
		}
	}

	for _, item := range items {
		overItems := limits.MaxItems > 0 && len(current) >= limits.MaxItems
		overBytes := limits.MaxBytes > 0 && len(current) > 0 && bytes+len(item) > limits.MaxBytes
		if overItems || overBytes {
			flush()
		}
		current = append(current, item)
		bytes += len(item)

		// an oversized item occupies a batch alone
		if limits.MaxBytes > 0 && len(item) >= limits.MaxBytes {
			flush()
		}
	}
	flush()

	return batches
}
