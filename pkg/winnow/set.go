package winnow

import (
	"encoding/json"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// FingerprintSet is an immutable set of selected hash values. The zero value and a nil
// pointer both behave as the empty set.
type FingerprintSet struct {
	bm *roaring.Bitmap
}

// NewFingerprintSet builds a set from values; duplicates collapse.
func NewFingerprintSet(values ...uint32) *FingerprintSet {
	bm := roaring.BitmapOf(values...)
	bm.RunOptimize()
	return &FingerprintSet{bm: bm}
}

func fromBitmap(bm *roaring.Bitmap) *FingerprintSet {
	bm.RunOptimize()
	return &FingerprintSet{bm: bm}
}

func (s *FingerprintSet) bitmap() *roaring.Bitmap {
	if s == nil || s.bm == nil {
		return roaring.New()
	}
	return s.bm
}

// Len returns the number of distinct fingerprints.
func (s *FingerprintSet) Len() int {
	if s == nil || s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// IsEmpty reports whether the set holds no fingerprints.
func (s *FingerprintSet) IsEmpty() bool {
	return s.Len() == 0
}

// Contains reports whether v is in the set.
func (s *FingerprintSet) Contains(v uint32) bool {
	return s.bitmap().Contains(v)
}

// Values returns the fingerprints in ascending order.
func (s *FingerprintSet) Values() []uint32 {
	return s.bitmap().ToArray()
}

// IntersectionLen returns |s ∩ other|.
func (s *FingerprintSet) IntersectionLen(other *FingerprintSet) int {
	return int(s.bitmap().AndCardinality(other.bitmap()))
}

// UnionLen returns |s ∪ other|.
func (s *FingerprintSet) UnionLen(other *FingerprintSet) int {
	return int(s.bitmap().OrCardinality(other.bitmap()))
}

// Intersects reports whether the sets share at least one fingerprint.
func (s *FingerprintSet) Intersects(other *FingerprintSet) bool {
	return s.bitmap().Intersects(other.bitmap())
}

// Equal reports whether both sets hold the same fingerprints.
func (s *FingerprintSet) Equal(other *FingerprintSet) bool {
	return s.bitmap().Equals(other.bitmap())
}

// MarshalBinary encodes the set in the portable roaring format.
func (s *FingerprintSet) MarshalBinary() ([]byte, error) {
	return s.bitmap().ToBytes()
}

// UnmarshalFingerprintSet decodes a set written by MarshalBinary.
func UnmarshalFingerprintSet(data []byte) (*FingerprintSet, error) {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode fingerprint set: %w", err)
	}
	return fromBitmap(bm), nil
}

// MarshalJSON renders the set as a sorted array of numbers.
func (s *FingerprintSet) MarshalJSON() ([]byte, error) {
	values := s.Values()
	if values == nil {
		values = []uint32{}
	}
	return json.Marshal(values)
}
