package kdtree

// nthElement partially sorts items so that items[n] is the element that
// would be there after a full sort, everything before it is not greater
// and everything after it is not less. Expected linear time.
func nthElement[T any](items []T, n int, less func(a, b T) bool) {
	lo, hi := 0, len(items)-1
	for lo < hi {
		p := partition(items, lo, hi, less)
		switch {
		case n < p:
			hi = p - 1
		case n > p:
			lo = p + 1
		default:
			return
		}
	}
}

// partition uses the median of three as pivot and returns its final position
func partition[T any](items []T, lo, hi int, less func(a, b T) bool) int {
	mid := lo + (hi-lo)/2
	if less(items[mid], items[lo]) {
		items[mid], items[lo] = items[lo], items[mid]
	}
	if less(items[hi], items[lo]) {
		items[hi], items[lo] = items[lo], items[hi]
	}
	if less(items[hi], items[mid]) {
		items[hi], items[mid] = items[mid], items[hi]
	}
	// pivot to hi
	items[mid], items[hi] = items[hi], items[mid]
	pivot := items[hi]

	store := lo
	for i := lo; i < hi; i++ {
		if less(items[i], pivot) {
			items[i], items[store] = items[store], items[i]
			store++
		}
	}
	items[store], items[hi] = items[hi], items[store]
	return store
}
