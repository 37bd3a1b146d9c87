// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	borsh "github.com/near/borsh-go"

	"github.com/ChainSafe/delegation/lib/common"
)

// DiscriminatorLength is the length of the record discriminator
// prefixing every record in its cell.
const DiscriminatorLength = 8

// ErrRecordDiscriminator is returned when decoding a cell whose
// discriminator does not match the expected record kind.
var ErrRecordDiscriminator = errors.New("record discriminator mismatch")

var recordDiscriminators = map[Kind]uint64{
	KindDelegationRecord:   100,
	KindDelegationMetadata: 101,
	KindCommitRecord:       102,
	KindProgramConfig:      103,
}

func discriminatorFor(kind Kind) []byte {
	return binary.LittleEndian.AppendUint64(nil, recordDiscriminators[kind])
}

func encodeRecord(kind Kind, record interface{}) ([]byte, error) {
	body, err := borsh.Serialize(record)
	if err != nil {
		return nil, fmt.Errorf("serialising %s: %w", kind, err)
	}
	return append(discriminatorFor(kind), body...), nil
}

func decodeRecord(kind Kind, data []byte, record interface{}) error {
	if len(data) < DiscriminatorLength {
		return fmt.Errorf("%w: cell has %d bytes", kind.ErrNotInitialized(), len(data))
	}
	if !bytes.Equal(data[:DiscriminatorLength], discriminatorFor(kind)) {
		return fmt.Errorf("%w: expected %s", ErrRecordDiscriminator, kind)
	}
	if err := borsh.Deserialize(record, data[DiscriminatorLength:]); err != nil {
		return fmt.Errorf("deserialising %s: %w", kind, err)
	}
	return nil
}

// DelegationRecord tracks a delegated account: its original owner
// program, the authority allowed to commit for it, and the lamport
// balance recorded at delegation and refreshed at every finalize.
// There is exactly one per delegated account, created at Delegate and
// destroyed at Undelegate.
type DelegationRecord struct {
	// Owner is the program the account is handed back to on
	// undelegation.
	Owner common.Address
	// Authority is the validator allowed to submit commits. The zero
	// address means any validator.
	Authority common.Address
	// CommitFrequencyMS is advisory commit cadence metadata for the
	// external scheduler.
	CommitFrequencyMS uint64
	// DelegationSlot is the slot the delegation was created at.
	DelegationSlot uint64
	// Lamports is the delegated account balance as of the last
	// finalize (or the delegation itself).
	Lamports uint64
}

// DelegationRecordSize is the cell size of an encoded DelegationRecord.
const DelegationRecordSize = DiscriminatorLength + 32 + 32 + 8 + 8 + 8

// Encode encodes the record with its discriminator.
func (r *DelegationRecord) Encode() ([]byte, error) {
	return encodeRecord(KindDelegationRecord, *r)
}

// DecodeDelegationRecord decodes a delegation record cell.
func DecodeDelegationRecord(data []byte) (*DelegationRecord, error) {
	record := new(DelegationRecord)
	if err := decodeRecord(KindDelegationRecord, data, record); err != nil {
		return nil, err
	}
	return record, nil
}

// DelegationMetadata carries the mutable delegation state: the seeds
// the delegated address derives from, the strictly monotonic commit
// nonce, the undelegatability latch and the rent payer reimbursed at
// undelegation.
type DelegationMetadata struct {
	Seeds           [][]byte
	LastUpdateNonce uint64
	IsUndelegatable bool
	RentPayer       common.Address
}

// Encode encodes the metadata with its discriminator.
func (m *DelegationMetadata) Encode() ([]byte, error) {
	return encodeRecord(KindDelegationMetadata, *m)
}

// DecodeDelegationMetadata decodes a delegation metadata cell.
func DecodeDelegationMetadata(data []byte) (*DelegationMetadata, error) {
	metadata := new(DelegationMetadata)
	if err := decodeRecord(KindDelegationMetadata, data, metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// CommitRecord describes one pending commit: who submitted it, for
// which account, at which nonce, and the lamport balance the account
// holds in the delegated execution domain. Created at a commit and
// destroyed at the paired finalize.
type CommitRecord struct {
	Identity common.Address
	Account  common.Address
	Nonce    uint64
	Lamports uint64
}

// CommitRecordSize is the cell size of an encoded CommitRecord.
const CommitRecordSize = DiscriminatorLength + 32 + 32 + 8 + 8

// Encode encodes the record with its discriminator.
func (r *CommitRecord) Encode() ([]byte, error) {
	return encodeRecord(KindCommitRecord, *r)
}

// DecodeCommitRecord decodes a commit record cell.
func DecodeCommitRecord(data []byte) (*CommitRecord, error) {
	record := new(CommitRecord)
	if err := decodeRecord(KindCommitRecord, data, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ProgramConfig is the optional per-owner-program validator allow list.
// It is administered externally and read only here.
type ProgramConfig struct {
	ApprovedValidators []common.Address
}

// Approves reports whether the validator is in the allow list.
func (c *ProgramConfig) Approves(validator common.Address) bool {
	for _, approved := range c.ApprovedValidators {
		if approved == validator {
			return true
		}
	}
	return false
}

// Encode encodes the config with its discriminator.
func (c *ProgramConfig) Encode() ([]byte, error) {
	return encodeRecord(KindProgramConfig, *c)
}

// DecodeProgramConfig decodes a program config cell.
func DecodeProgramConfig(data []byte) (*ProgramConfig, error) {
	config := new(ProgramConfig)
	if err := decodeRecord(KindProgramConfig, data, config); err != nil {
		return nil, err
	}
	return config, nil
}
