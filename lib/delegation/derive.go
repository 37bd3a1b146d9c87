// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import (
	"github.com/ChainSafe/delegation/lib/common"
)

// Derivation tags binding each managed cell address to its role and to
// the delegated account it belongs to.
const (
	tagDelegationRecord   = "delegation"
	tagDelegationMetadata = "delegation-metadata"
	tagCommitState        = "state-diff"
	tagCommitRecord       = "commit-state-record"
	tagDelegateBuffer     = "buffer"
	tagUndelegationBuffer = "undelegation-buffer"
	tagProtocolFeesVault  = "fees-vault"
	tagValidatorFeesVault = "v-fees-vault"
	tagProgramConfig      = "p-conf"
)

// DelegationRecordAddress derives the delegation record cell address
// for a delegated account.
func DelegationRecordAddress(programID, delegated common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(programID, []byte(tagDelegationRecord), delegated[:])
	return address, err
}

// DelegationMetadataAddress derives the delegation metadata cell
// address for a delegated account.
func DelegationMetadataAddress(programID, delegated common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(programID, []byte(tagDelegationMetadata), delegated[:])
	return address, err
}

// CommitStateAddress derives the pending commit state cell address for
// a delegated account.
func CommitStateAddress(programID, delegated common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(programID, []byte(tagCommitState), delegated[:])
	return address, err
}

// CommitRecordAddress derives the commit record cell address for a
// delegated account.
func CommitRecordAddress(programID, delegated common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(programID, []byte(tagCommitRecord), delegated[:])
	return address, err
}

// DelegateBufferAddress derives the delegate side buffer address for a
// delegated account. The buffer lives under the owner program, which
// populates it before delegating.
func DelegateBufferAddress(ownerProgram, delegated common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(ownerProgram, []byte(tagDelegateBuffer), delegated[:])
	return address, err
}

// UndelegationBufferAddress derives the handback buffer address for a
// delegated account.
func UndelegationBufferAddress(programID, delegated common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(programID, []byte(tagUndelegationBuffer), delegated[:])
	return address, err
}

// ProtocolFeesVaultAddress derives the protocol fees vault address.
func ProtocolFeesVaultAddress(programID common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(programID, []byte(tagProtocolFeesVault))
	return address, err
}

// ValidatorFeesVaultAddress derives the fees vault address of a
// validator identity.
func ValidatorFeesVaultAddress(programID, validator common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(programID, []byte(tagValidatorFeesVault), validator[:])
	return address, err
}

// ProgramConfigAddress derives the program config cell address of an
// owner program.
func ProgramConfigAddress(programID, ownerProgram common.Address) (common.Address, error) {
	address, _, err := common.DeriveAddress(programID, []byte(tagProgramConfig), ownerProgram[:])
	return address, err
}
