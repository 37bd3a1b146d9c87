// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package args defines the instruction argument encodings of the
// delegation program. Instructions are encoded as an 8 byte little
// endian discriminator followed by the borsh serialised arguments;
// routing on the discriminator belongs to the surrounding runtime.
package args

import (
	"encoding/binary"
	"errors"
	"fmt"

	borsh "github.com/near/borsh-go"

	"github.com/ChainSafe/delegation/lib/common"
)

// Discriminator values routing instructions to the program operations.
const (
	DiscriminatorDelegate              uint64 = 0
	DiscriminatorCommitState           uint64 = 1
	DiscriminatorFinalize              uint64 = 2
	DiscriminatorUndelegate            uint64 = 3
	DiscriminatorCommitStateFromBuffer uint64 = 13
	DiscriminatorCommitDiff            uint64 = 16
)

// commitDiffTailLength is the fixed length of the arguments following
// the diff bytes in a CommitDiff instruction: nonce, lamports and the
// allow undelegation flag.
const commitDiffTailLength = 8 + 8 + 1

var (
	// ErrArgsTooShort is returned when instruction data cannot hold the
	// expected arguments.
	ErrArgsTooShort = errors.New("instruction arguments are too short")
	// ErrDiffLengthPrefix is returned when the diff length prefix of a
	// CommitDiff instruction disagrees with the actual diff length.
	ErrDiffLengthPrefix = errors.New("diff length prefix mismatch")
)

// DelegateArgs are the arguments of the Delegate instruction.
type DelegateArgs struct {
	// Validator restricts commits to one validator identity. Nil means
	// any validator may commit.
	Validator *common.Address
	// CommitFrequencyMS is advisory commit cadence metadata.
	CommitFrequencyMS uint32
	// Seeds are the derivation seeds of the delegated address, at most
	// four components.
	Seeds [][]byte
}

// CommitStateArgs are the arguments of the CommitState instruction,
// carrying the full new account state inline.
type CommitStateArgs struct {
	Nonce             uint64
	Lamports          uint64
	AllowUndelegation bool
	Data              []byte
}

// CommitStateFromBufferArgs are the arguments of the
// CommitStateFromBuffer instruction; the new account state is sourced
// from a side buffer account instead of the instruction data.
type CommitStateFromBufferArgs struct {
	Nonce             uint64
	Lamports          uint64
	AllowUndelegation bool
}

// Encode borsh serialises the arguments.
func (a *DelegateArgs) Encode() ([]byte, error) { return borsh.Serialize(*a) }

// Decode borsh deserialises the arguments.
func (a *DelegateArgs) Decode(data []byte) error { return borsh.Deserialize(a, data) }

// Encode borsh serialises the arguments.
func (a *CommitStateArgs) Encode() ([]byte, error) { return borsh.Serialize(*a) }

// Decode borsh deserialises the arguments.
func (a *CommitStateArgs) Decode(data []byte) error { return borsh.Deserialize(a, data) }

// Encode borsh serialises the arguments.
func (a *CommitStateFromBufferArgs) Encode() ([]byte, error) { return borsh.Serialize(*a) }

// Decode borsh deserialises the arguments.
func (a *CommitStateFromBufferArgs) Decode(data []byte) error { return borsh.Deserialize(a, data) }

// EncodeCommitDiff encodes CommitDiff instruction arguments: the diff
// bytes with their u32 length prefix, followed by the fixed 17 byte
// tail. The diff length stays implicit on the wire as the total length
// minus the tail.
func EncodeCommitDiff(diff []byte, tail CommitStateFromBufferArgs) ([]byte, error) {
	encoded := binary.LittleEndian.AppendUint32(nil, uint32(len(diff)))
	encoded = append(encoded, diff...)
	tailBytes, err := tail.Encode()
	if err != nil {
		return nil, err
	}
	return append(encoded, tailBytes...), nil
}

// SplitCommitDiff splits CommitDiff instruction data into the diff
// bytes and the fixed tail. The last 17 bytes are the tail; everything
// before is the length-prefixed diff, whose prefix must agree with the
// remaining length.
func SplitCommitDiff(data []byte) (diff []byte, tail CommitStateFromBufferArgs, err error) {
	if len(data) < commitDiffTailLength {
		return nil, tail, fmt.Errorf("%w: have %d bytes, tail alone needs %d",
			ErrArgsTooShort, len(data), commitDiffTailLength)
	}

	prefixedDiff := data[:len(data)-commitDiffTailLength]
	if err := tail.Decode(data[len(data)-commitDiffTailLength:]); err != nil {
		return nil, tail, err
	}

	if len(prefixedDiff) < 4 {
		return nil, tail, fmt.Errorf("%w: %d bytes before the tail, diff length prefix needs 4",
			ErrArgsTooShort, len(prefixedDiff))
	}
	declaredLength := binary.LittleEndian.Uint32(prefixedDiff)
	diff = prefixedDiff[4:]
	if int(declaredLength) != len(diff) {
		return nil, tail, fmt.Errorf("%w: prefix declares %d bytes, %d follow",
			ErrDiffLengthPrefix, declaredLength, len(diff))
	}
	return diff, tail, nil
}
