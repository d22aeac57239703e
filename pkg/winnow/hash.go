package winnow

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// HashSequence holds one hash per k-gram, in k-gram order.
type HashSequence []uint32

// ErrInconsistentLength is matched by errors.Is for any *InconsistentLengthError.
var ErrInconsistentLength = errors.New("inconsistent k-gram length")

// InconsistentLengthError reports a k-gram whose length differs from the first one.
type InconsistentLengthError struct {
	Index int
	Want  int
	Got   int
}

func (e *InconsistentLengthError) Error() string {
	return fmt.Sprintf("inconsistent k-gram length at index %d: want %d, got %d", e.Index, e.Want, e.Got)
}

// Is reports whether target is ErrInconsistentLength.
func (e *InconsistentLengthError) Is(target error) bool {
	return target == ErrInconsistentLength
}

// DirectHash computes the polynomial hash of gram from scratch:
// sum(c_i * base^(k-1-i)) mod prime, evaluated with Horner's rule.
func DirectHash(gram string, base, prime uint32) uint32 {
	b, p := uint64(base), uint64(prime)
	var h uint64
	for _, r := range gram {
		h = (h*b + uint64(r)%p) % p
	}
	return uint32(h)
}

// RollingHash hashes a sequence of consecutive k-grams, as produced by KGrams over one
// text. The first hash is computed directly; each following one is derived from its
// predecessor in constant time by removing the leaving character and appending the
// entering one. Every value equals DirectHash of the same k-gram.
//
// All k-grams must have the same length; otherwise an *InconsistentLengthError is
// returned. Callers are expected to pass base and prime accepted by Params.Validate.
func RollingHash(kgrams []string, base, prime uint32) (HashSequence, error) {
	if len(kgrams) == 0 {
		return nil, nil
	}

	k := runeLen(kgrams[0])
	for i, g := range kgrams[1:] {
		if n := runeLen(g); n != k {
			return nil, &InconsistentLengthError{Index: i + 1, Want: k, Got: n}
		}
	}

	hashes := make(HashSequence, len(kgrams))
	if k == 0 {
		return hashes, nil
	}

	b, p := uint64(base), uint64(prime)

	// highPow is base^(k-1) mod prime, the weight of the leaving character.
	highPow := uint64(1) % p
	for i := 1; i < k; i++ {
		highPow = highPow * b % p
	}

	h := uint64(DirectHash(kgrams[0], base, prime))
	hashes[0] = uint32(h)

	for i := 1; i < len(kgrams); i++ {
		leaving, _ := utf8.DecodeRuneInString(kgrams[i-1])
		entering, _ := utf8.DecodeLastRuneInString(kgrams[i])

		h = (h + p - uint64(leaving)%p*highPow%p) % p
		h = (h*b + uint64(entering)%p) % p
		hashes[i] = uint32(h)
	}
	return hashes, nil
}
