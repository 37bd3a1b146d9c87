// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package diff

import (
	"encoding/binary"
)

// Compute encodes the difference between original and changed in the
// wire format documented on this package. It scans the overlapping
// prefix of both buffers and coalesces maximal runs of differing bytes
// into segments. If changed is longer than original, one final segment
// covers the whole trailing extension. If changed is shorter, no extra
// segment is needed since the recorded changed length truncates the
// target on reconstruction.
//
// Identical buffers therefore encode to exactly 8 bytes: the changed
// length followed by a zero segment count.
func Compute(original, changed []byte) []byte {
	type run struct {
		offsetInData int
		bytes        []byte
	}

	minLength := len(original)
	if len(changed) < minLength {
		minLength = len(changed)
	}

	var runs []run
	segmentBytes := 0
	for i := 0; i < minLength; {
		if original[i] == changed[i] {
			i++
			continue
		}
		start := i
		for i < minLength && original[i] != changed[i] {
			i++
		}
		runs = append(runs, run{offsetInData: start, bytes: changed[start:i]})
		segmentBytes += i - start
	}

	if len(changed) > len(original) {
		runs = append(runs, run{offsetInData: len(original), bytes: changed[len(original):]})
		segmentBytes += len(changed) - len(original)
	}

	encoded := make([]byte, 0, headerMinLength+len(runs)*sizeOfOffsetPair+segmentBytes)
	encoded = binary.LittleEndian.AppendUint32(encoded, uint32(len(changed)))
	encoded = binary.LittleEndian.AppendUint32(encoded, uint32(len(runs)))

	offsetInDiff := uint32(0)
	for _, r := range runs {
		encoded = binary.LittleEndian.AppendUint32(encoded, offsetInDiff)
		encoded = binary.LittleEndian.AppendUint32(encoded, uint32(r.offsetInData))
		offsetInDiff += uint32(len(r.bytes))
	}
	for _, r := range runs {
		encoded = append(encoded, r.bytes...)
	}

	return encoded
}
