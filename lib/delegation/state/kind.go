// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package state defines the records the delegation program persists in
// storage cells and the per-record-kind error sets used when checking
// cell preconditions.
package state

import (
	"errors"
	"fmt"
)

// Kind identifies the role of a managed storage cell.
type Kind uint8

const (
	// KindDelegationRecord is the cell holding a DelegationRecord.
	KindDelegationRecord Kind = iota
	// KindDelegationMetadata is the cell holding a DelegationMetadata.
	KindDelegationMetadata
	// KindCommitRecord is the cell holding a CommitRecord.
	KindCommitRecord
	// KindCommitState is the cell holding raw pending state bytes.
	KindCommitState
	// KindUndelegationBuffer is the cell holding handback bytes during
	// an undelegation.
	KindUndelegationBuffer
	// KindDelegateBuffer is the side buffer cell populated before
	// delegation.
	KindDelegateBuffer
	// KindProgramConfig is the cell holding a ProgramConfig.
	KindProgramConfig
	// KindProtocolFeesVault is the protocol fee vault cell.
	KindProtocolFeesVault
	// KindValidatorFeesVault is a per-validator fee vault cell.
	KindValidatorFeesVault
)

var kindLabels = map[Kind]string{
	KindDelegationRecord:   "delegation record",
	KindDelegationMetadata: "delegation metadata",
	KindCommitRecord:       "commit record",
	KindCommitState:        "commit state",
	KindUndelegationBuffer: "undelegation buffer",
	KindDelegateBuffer:     "delegate buffer",
	KindProgramConfig:      "program config",
	KindProtocolFeesVault:  "protocol fees vault",
	KindValidatorFeesVault: "validator fees vault",
}

func (k Kind) String() string {
	label, ok := kindLabels[k]
	if !ok {
		return fmt.Sprintf("unknown cell kind %d", uint8(k))
	}
	return label
}

// Base sentinel errors shared by every cell kind. Callers match on
// these with errors.Is; the per-kind variants below add the cell role
// to the message.
var (
	ErrInvalidSeeds       = errors.New("invalid derivation seeds")
	ErrInvalidCellOwner   = errors.New("invalid cell owner")
	ErrAlreadyInitialized = errors.New("cell is already initialized")
	ErrNotInitialized     = errors.New("cell is not initialized")
	ErrNotWritable        = errors.New("cell is not writable")
)

type errorSet struct {
	invalidSeeds       error
	invalidOwner       error
	alreadyInitialized error
	notInitialized     error
	notWritable        error
}

// errorSets maps each cell kind to its pre-wrapped error set, replacing
// one hand-written variant group per record kind with a single lookup
// table.
var errorSets = func() map[Kind]errorSet {
	sets := make(map[Kind]errorSet, len(kindLabels))
	for kind, label := range kindLabels {
		sets[kind] = errorSet{
			invalidSeeds:       fmt.Errorf("%w: %s", ErrInvalidSeeds, label),
			invalidOwner:       fmt.Errorf("%w: %s", ErrInvalidCellOwner, label),
			alreadyInitialized: fmt.Errorf("%w: %s", ErrAlreadyInitialized, label),
			notInitialized:     fmt.Errorf("%w: %s", ErrNotInitialized, label),
			notWritable:        fmt.Errorf("%w: %s", ErrNotWritable, label),
		}
	}
	return sets
}()

// ErrInvalidSeeds returns the invalid seeds error for the cell kind.
func (k Kind) ErrInvalidSeeds() error { return errorSets[k].invalidSeeds }

// ErrInvalidOwner returns the invalid owner error for the cell kind.
func (k Kind) ErrInvalidOwner() error { return errorSets[k].invalidOwner }

// ErrAlreadyInitialized returns the already initialized error for the
// cell kind.
func (k Kind) ErrAlreadyInitialized() error { return errorSets[k].alreadyInitialized }

// ErrNotInitialized returns the not initialized error for the cell kind.
func (k Kind) ErrNotInitialized() error { return errorSets[k].notInitialized }

// ErrNotWritable returns the not writable error for the cell kind.
func (k Kind) ErrNotWritable() error { return errorSets[k].notWritable }
