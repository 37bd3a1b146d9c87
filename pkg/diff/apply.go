// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package diff

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetLength is returned by ApplyInPlace when the target buffer
	// length differs from the changed length encoded in the diff.
	ErrTargetLength = errors.New("target length does not match the encoded changed length")
	// ErrMergeLength is returned by MergeCopy when the destination and
	// original buffer lengths differ.
	ErrMergeLength = errors.New("merge destination length does not match the original length")
)

// ApplyInPlace overwrites target with the diff segments. The target
// length must equal the changed length encoded in the diff; a diff that
// grows or shrinks the buffer cannot be applied in place.
func ApplyInPlace(target []byte, set *Set) error {
	if len(target) != set.ChangedLen() {
		return fmt.Errorf("%w: target has %d bytes, diff encodes %d",
			ErrTargetLength, len(target), set.ChangedLen())
	}
	return applySegments(target, set)
}

// ApplyCopy reconstructs the changed buffer from a copy of original:
// the copy is first resized to the encoded changed length, zero filling
// any new tail, and the diff segments are then written over it.
func ApplyCopy(original []byte, set *Set) (changed []byte, err error) {
	changed = make([]byte, set.ChangedLen())
	copy(changed, original)
	if err := applySegments(changed, set); err != nil {
		return nil, err
	}
	return changed, nil
}

// MergeCopy fully populates destination from original and the diff
// segments: unchanged spans are copied from original and changed spans
// from the diff, regardless of the destination's prior contents. The
// destination and original must have the same length.
func MergeCopy(destination, original []byte, set *Set) error {
	if len(destination) != len(original) {
		return fmt.Errorf("%w: destination has %d bytes, original has %d",
			ErrMergeLength, len(destination), len(original))
	}
	if len(destination) != set.ChangedLen() {
		return fmt.Errorf("%w: destination has %d bytes, diff encodes %d",
			ErrMergeLength, len(destination), set.ChangedLen())
	}

	writeIndex := 0
	err := set.forEachSegment(func(segment Segment) error {
		if writeIndex < segment.Start {
			copy(destination[writeIndex:segment.Start], original[writeIndex:segment.Start])
		}
		copy(destination[segment.Start:segment.End], segment.Bytes)
		writeIndex = segment.End
		return nil
	})
	if err != nil {
		return err
	}

	if writeIndex < len(original) {
		copy(destination[writeIndex:], original[writeIndex:])
	}
	return nil
}

func applySegments(target []byte, set *Set) error {
	return set.forEachSegment(func(segment Segment) error {
		copy(target[segment.Start:segment.End], segment.Bytes)
		return nil
	})
}
