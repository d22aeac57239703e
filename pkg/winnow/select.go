package winnow

import "github.com/RoaringBitmap/roaring/v2"

// SelectFingerprints applies the winnowing rule to hashes: for every window of w
// consecutive hashes it selects the minimum, taking the rightmost position when the
// minimum value occurs more than once. A position selected by several adjacent windows is
// recorded once. Only the selected values are returned.
//
// The result is empty when hashes is empty, w <= 0 or w exceeds len(hashes).
//
// Any run of at least w hashes shared by two sequences contributes the same selected
// value to both fingerprint sets.
func SelectFingerprints(hashes HashSequence, w int) *FingerprintSet {
	bm := roaring.New()
	if len(hashes) == 0 || w <= 0 || w > len(hashes) {
		return fromBitmap(bm)
	}

	// deque holds positions with strictly increasing hash values, so its head is the
	// rightmost minimum of the current window.
	deque := make([]int, 0, w)
	head := 0
	lastSelected := -1

	for i, h := range hashes {
		for len(deque) > head && hashes[deque[len(deque)-1]] >= h {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)

		if deque[head] <= i-w {
			head++
		}
		if i < w-1 {
			continue
		}

		if pos := deque[head]; pos != lastSelected {
			bm.Add(hashes[pos])
			lastSelected = pos
		}

		// Reclaim the consumed prefix once it dominates the backing array.
		if head > w {
			deque = append(deque[:0], deque[head:]...)
			head = 0
		}
	}

	return fromBitmap(bm)
}
