// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import (
	"fmt"

	"github.com/ChainSafe/delegation/lib/common"
	"github.com/ChainSafe/delegation/lib/delegation/state"
	"github.com/ChainSafe/delegation/lib/ledger"
)

func requireSigner(account *ledger.Account, label string) error {
	if !account.IsSigner() {
		return fmt.Errorf("%w: %s %s", ledger.ErrNotSigner, label, account.Key().Short())
	}
	return nil
}

// requireDelegated checks the delegated account cell is owned by the
// program, which is what delegation means at the cell level.
func (p *Program) requireDelegated(account *ledger.Account) error {
	if account.Owner() != p.id {
		return fmt.Errorf("%w: %s is owned by %s",
			ErrNotDelegated, account.Key().Short(), account.Owner().Short())
	}
	return nil
}

// requireDerivedCell checks the account sits at the canonical derived
// address for its role.
func requireDerivedCell(account *ledger.Account, kind state.Kind,
	program common.Address, seeds ...[]byte) error {
	derived, _, err := common.DeriveAddress(program, seeds...)
	if err != nil {
		return fmt.Errorf("deriving %s address: %w", kind, err)
	}
	if account.Key() != derived {
		return fmt.Errorf("%w: expected %s, got %s",
			kind.ErrInvalidSeeds(), derived.Short(), account.Key().Short())
	}
	return nil
}

func requireWritable(account *ledger.Account, kind state.Kind) error {
	if !account.IsWritable() {
		return fmt.Errorf("%w: %s", kind.ErrNotWritable(), account.Key().Short())
	}
	return nil
}

// isUninitialized reports whether the cell is untouched: owned by the
// system and holding no bytes.
func isUninitialized(account *ledger.Account) bool {
	return account.Owner() == ledger.SystemOwner && account.DataIsEmpty()
}

// requireUninitializedCell checks the account sits at its canonical
// derived address and has not been allocated yet.
func requireUninitializedCell(account *ledger.Account, kind state.Kind,
	program common.Address, writable bool, seeds ...[]byte) error {
	if err := requireDerivedCell(account, kind, program, seeds...); err != nil {
		return err
	}
	if account.Owner() != ledger.SystemOwner {
		return fmt.Errorf("%w: %s is owned by %s",
			kind.ErrInvalidOwner(), account.Key().Short(), account.Owner().Short())
	}
	if !account.DataIsEmpty() {
		return fmt.Errorf("%w: %s", kind.ErrAlreadyInitialized(), account.Key().Short())
	}
	if writable {
		return requireWritable(account, kind)
	}
	return nil
}

// requireInitializedCell checks the account sits at its canonical
// derived address and is owned by the given program.
func requireInitializedCell(account *ledger.Account, kind state.Kind,
	program common.Address, writable bool, seeds ...[]byte) error {
	if err := requireDerivedCell(account, kind, program, seeds...); err != nil {
		return err
	}
	if account.Owner() != program {
		return fmt.Errorf("%w: %s is owned by %s",
			kind.ErrInvalidOwner(), account.Key().Short(), account.Owner().Short())
	}
	if writable {
		return requireWritable(account, kind)
	}
	return nil
}

func (p *Program) requireDelegationRecord(delegated, record *ledger.Account,
	writable bool) error {
	delegatedKey := delegated.Key()
	return requireInitializedCell(record, state.KindDelegationRecord, p.id,
		writable, []byte(tagDelegationRecord), delegatedKey[:])
}

func (p *Program) requireDelegationMetadata(delegated, metadata *ledger.Account,
	writable bool) error {
	delegatedKey := delegated.Key()
	return requireInitializedCell(metadata, state.KindDelegationMetadata, p.id,
		writable, []byte(tagDelegationMetadata), delegatedKey[:])
}

func (p *Program) requireProtocolFeesVault(vault *ledger.Account, writable bool) error {
	return requireInitializedCell(vault, state.KindProtocolFeesVault, p.id,
		writable, []byte(tagProtocolFeesVault))
}

func (p *Program) requireValidatorFeesVault(validator, vault *ledger.Account,
	writable bool) error {
	validatorKey := validator.Key()
	return requireInitializedCell(vault, state.KindValidatorFeesVault, p.id,
		writable, []byte(tagValidatorFeesVault), validatorKey[:])
}

// requireProgramConfig checks the program config account sits at the
// canonical address for the owner program and reports whether a config
// actually exists there. A missing config is not an error, it just
// means no validator allow list applies.
func (p *Program) requireProgramConfig(programConfig *ledger.Account,
	ownerProgram common.Address) (exists bool, err error) {
	err = requireDerivedCell(programConfig, state.KindProgramConfig, p.id,
		[]byte(tagProgramConfig), ownerProgram[:])
	if err != nil {
		return false, err
	}
	return programConfig.Owner() != ledger.SystemOwner, nil
}
