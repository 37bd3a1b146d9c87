// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package diff implements a binary diff codec for ledger account data.
//
// A diff describes how to turn an original byte buffer into a changed
// byte buffer by recording only the byte runs that differ. Its wire
// format is, with every integer little endian:
//
// | changed length | segment count | offset pair 0 | ... | offset pair N-1 | concatenated segments |
// |=== 4 bytes ====|=== 4 bytes ===|=== 8 bytes ===| ... |==== 8 bytes ====|====== M bytes ========|
//
// An offset pair is two u32 values:
//
// | offset in diff | offset in data |
// |=== 4 bytes ====|=== 4 bytes ====|
//
// `offset in diff` is the cumulative position of the segment within the
// concatenated segment bytes, so it is always 0 for the first pair, and
// the length of segment i is pair[i+1].offsetInDiff - pair[i].offsetInDiff
// (the last segment ends at the end of the buffer). `offset in data` is
// the position in the changed buffer where the segment bytes are written.
// Truncation is implicit: when the changed buffer is shorter than the
// original no segment covers the removed tail, the recorded changed
// length alone shrinks the target.
package diff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

const (
	sizeOfChangedLen   = 4
	sizeOfSegmentCount = 4
	sizeOfOffsetPair   = 8

	// headerMinLength is the length of a diff carrying no segments.
	headerMinLength = sizeOfChangedLen + sizeOfSegmentCount
)

var (
	// ErrInvalidDiff is returned when a diff buffer fails validation.
	ErrInvalidDiff = errors.New("invalid diff")
	// ErrDiffAlignment is returned when a diff buffer does not start
	// at a 4-byte aligned address.
	ErrDiffAlignment = errors.New("diff buffer is not 4-byte aligned")
)

// Segment is one contiguous run of changed bytes together with the
// half-open range [Start, End) of the target buffer it overwrites.
type Segment struct {
	Bytes []byte
	Start int
	End   int
}

// Set is a validated, bounds-checked view over an encoded diff buffer.
// It keeps references into the buffer given to Parse and never copies
// segment bytes.
type Set struct {
	raw          []byte
	changedLen   uint32
	segmentCount uint32
	pairs        []byte
	concat       []byte
}

// Parse validates the diff buffer and returns a set over it. The buffer
// must start at a 4-byte aligned address and hold at least the two
// header integers. The header length implied by the segment count must
// be exactly the buffer length (in which case the segment count must be
// zero) or strictly smaller, with the concatenated segment bytes
// following the offset pairs.
func Parse(buf []byte) (*Set, error) {
	if len(buf) < headerMinLength {
		return nil, fmt.Errorf("%w: buffer has %d bytes, minimum is %d",
			ErrInvalidDiff, len(buf), headerMinLength)
	}
	if uintptr(unsafe.Pointer(&buf[0]))%4 != 0 {
		return nil, ErrDiffAlignment
	}

	set := &Set{
		raw:          buf,
		changedLen:   binary.LittleEndian.Uint32(buf),
		segmentCount: binary.LittleEndian.Uint32(buf[sizeOfChangedLen:]),
	}

	headerLength := headerMinLength + int(set.segmentCount)*sizeOfOffsetPair
	switch {
	case len(buf) == headerLength:
		// Header-only diff, the concatenated segment bytes are empty.
		if set.segmentCount != 0 {
			return nil, fmt.Errorf("%w: %d segments declared but no segment bytes",
				ErrInvalidDiff, set.segmentCount)
		}
	case len(buf) < headerLength:
		return nil, fmt.Errorf("%w: %d declared segments need a %d byte header "+
			"but the buffer has %d bytes", ErrInvalidDiff, set.segmentCount,
			headerLength, len(buf))
	default:
		set.pairs = buf[headerMinLength:headerLength]
		set.concat = buf[headerLength:]
	}

	return set, nil
}

// ParseCopy copies the diff bytes onto 4-byte aligned backing storage
// and parses the copy. Use it when the buffer is a view into a larger
// allocation whose alignment is outside the caller's control, such as
// decoded instruction data.
func ParseCopy(buf []byte) (*Set, error) {
	if len(buf) < headerMinLength {
		return nil, fmt.Errorf("%w: buffer has %d bytes, minimum is %d",
			ErrInvalidDiff, len(buf), headerMinLength)
	}
	padded := make([]byte, len(buf)+3)
	offset := 0
	for uintptr(unsafe.Pointer(&padded[offset]))%4 != 0 {
		offset++
	}
	aligned := padded[offset : offset+len(buf)]
	copy(aligned, buf)
	return Parse(aligned)
}

// Raw returns the encoded diff buffer backing the set.
func (s *Set) Raw() []byte {
	return s.raw
}

// ChangedLen returns the length of the changed buffer the diff encodes,
// which is the required length of any reconstruction target.
func (s *Set) ChangedLen() int {
	return int(s.changedLen)
}

// SegmentCount returns the number of segments in the diff.
func (s *Set) SegmentCount() int {
	return int(s.segmentCount)
}

func (s *Set) offsetPair(index int) (offsetInDiff, offsetInData uint32) {
	pair := s.pairs[index*sizeOfOffsetPair:]
	return binary.LittleEndian.Uint32(pair), binary.LittleEndian.Uint32(pair[4:])
}

// Segment returns the segment at the given index with its bounds fully
// validated against the concatenated segment bytes and the changed
// length. Iterating indices 0 to SegmentCount()-1 walks the diff in
// order and can be restarted at any index.
func (s *Set) Segment(index int) (segment Segment, err error) {
	if index < 0 || index >= s.SegmentCount() {
		return Segment{}, fmt.Errorf("%w: segment index %d out of range, have %d segments",
			ErrInvalidDiff, index, s.SegmentCount())
	}

	segmentBegin, offsetInData := s.offsetPair(index)
	segmentEnd := uint32(len(s.concat))
	if index+1 < s.SegmentCount() {
		segmentEnd, _ = s.offsetPair(index + 1)
	}

	switch {
	case segmentEnd > uint32(len(s.concat)):
		return Segment{}, fmt.Errorf("%w: segment %d ends at %d beyond the %d segment bytes",
			ErrInvalidDiff, index, segmentEnd, len(s.concat))
	case segmentBegin >= segmentEnd:
		return Segment{}, fmt.Errorf("%w: segment %d offsets are not increasing (%d >= %d)",
			ErrInvalidDiff, index, segmentBegin, segmentEnd)
	case offsetInData >= s.changedLen:
		return Segment{}, fmt.Errorf("%w: segment %d data offset %d is at or beyond the changed length %d",
			ErrInvalidDiff, index, offsetInData, s.changedLen)
	}

	start := int(offsetInData)
	end := start + int(segmentEnd-segmentBegin)
	if end > s.ChangedLen() {
		return Segment{}, fmt.Errorf("%w: segment %d target range ends at %d beyond the changed length %d",
			ErrInvalidDiff, index, end, s.changedLen)
	}

	return Segment{
		Bytes: s.concat[segmentBegin:segmentEnd],
		Start: start,
		End:   end,
	}, nil
}

func (s *Set) forEachSegment(fn func(segment Segment) error) error {
	for index := 0; index < s.SegmentCount(); index++ {
		segment, err := s.Segment(index)
		if err != nil {
			return err
		}
		if err := fn(segment); err != nil {
			return err
		}
	}
	return nil
}
