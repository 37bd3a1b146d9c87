// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package diff

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alignedCopy copies the encoded bytes into a buffer guaranteed to
// start at a 4-byte aligned address, offset by the given extra bytes.
func alignedCopy(t *testing.T, encoded []byte, extraOffset int) []byte {
	t.Helper()
	backing := make([]byte, len(encoded)+8)
	offset := 0
	for uintptr(unsafe.Pointer(&backing[offset]))%4 != 0 {
		offset++
	}
	offset += extraOffset
	copy(backing[offset:], encoded)
	return backing[offset : offset+len(encoded)]
}

func Test_Parse(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		encoded    []byte
		changedLen int
		count      int
		errWrapped error
	}{
		"empty buffer": {
			encoded:    nil,
			errWrapped: ErrInvalidDiff,
		},
		"below minimum header": {
			encoded:    uint32sToBytes(100)[:4],
			errWrapped: ErrInvalidDiff,
		},
		"header only": {
			encoded:    uint32sToBytes(100, 0),
			changedLen: 100,
		},
		"header only with nonzero count": {
			encoded:    uint32sToBytes(100, 1),
			errWrapped: ErrInvalidDiff,
		},
		"count implies oversized header": {
			// 2 declared segments need a 24 byte header but only one
			// pair plus one byte follows.
			encoded:    append(uint32sToBytes(100, 2, 0, 11), 1),
			errWrapped: ErrInvalidDiff,
		},
		"single segment": {
			encoded:    append(uint32sToBytes(100, 1, 0, 11), 1, 2, 3),
			changedLen: 100,
			count:      1,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			encoded := testCase.encoded
			if len(encoded) > 0 {
				encoded = alignedCopy(t, encoded, 0)
			}

			set, err := Parse(encoded)

			assert.ErrorIs(t, err, testCase.errWrapped)
			if testCase.errWrapped != nil {
				return
			}
			assert.Equal(t, testCase.changedLen, set.ChangedLen())
			assert.Equal(t, testCase.count, set.SegmentCount())
		})
	}
}

func Test_Parse_misaligned(t *testing.T) {
	t.Parallel()

	encoded := alignedCopy(t, uint32sToBytes(100, 0), 1)

	_, err := Parse(encoded)

	assert.ErrorIs(t, err, ErrDiffAlignment)
}

func Test_Set_Segment(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		encoded    []byte
		index      int
		segment    Segment
		errWrapped error
	}{
		"valid segment": {
			encoded: append(uint32sToBytes(100, 2, 0, 11, 4, 71), 1, 2, 3, 4, 5, 6, 7, 8),
			index:   0,
			segment: Segment{Bytes: []byte{1, 2, 3, 4}, Start: 11, End: 15},
		},
		"last segment ends at buffer end": {
			encoded: append(uint32sToBytes(100, 2, 0, 11, 4, 71), 1, 2, 3, 4, 5, 6, 7, 8),
			index:   1,
			segment: Segment{Bytes: []byte{5, 6, 7, 8}, Start: 71, End: 75},
		},
		"index out of range": {
			encoded:    append(uint32sToBytes(100, 1, 0, 11), 1, 2),
			index:      1,
			errWrapped: ErrInvalidDiff,
		},
		"non monotonic offsets": {
			// Second pair starts at 4 but first already starts at 4.
			encoded:    append(uint32sToBytes(100, 2, 4, 11, 4, 71), 1, 2, 3, 4, 5),
			index:      0,
			errWrapped: ErrInvalidDiff,
		},
		"data offset at changed length": {
			encoded:    append(uint32sToBytes(10, 1, 0, 10), 1, 2),
			index:      0,
			errWrapped: ErrInvalidDiff,
		},
		"target range beyond changed length": {
			encoded:    append(uint32sToBytes(10, 1, 0, 9), 1, 2, 3),
			index:      0,
			errWrapped: ErrInvalidDiff,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			set, err := Parse(alignedCopy(t, testCase.encoded, 0))
			require.NoError(t, err)

			segment, err := set.Segment(testCase.index)

			assert.ErrorIs(t, err, testCase.errWrapped)
			assert.Equal(t, testCase.segment, segment)
		})
	}
}

func Test_Set_Segment_restartable(t *testing.T) {
	t.Parallel()

	encoded := append(uint32sToBytes(100, 2, 0, 11, 4, 71), 1, 2, 3, 4, 5, 6, 7, 8)
	set, err := Parse(alignedCopy(t, encoded, 0))
	require.NoError(t, err)

	first, err := set.Segment(0)
	require.NoError(t, err)

	// Iterating again from the start yields the same segment.
	firstAgain, err := set.Segment(0)
	require.NoError(t, err)
	assert.Equal(t, first, firstAgain)
}
