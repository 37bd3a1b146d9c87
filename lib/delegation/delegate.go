// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import (
	"fmt"

	"github.com/ChainSafe/delegation/lib/common"
	"github.com/ChainSafe/delegation/lib/delegation/args"
	"github.com/ChainSafe/delegation/lib/delegation/state"
	"github.com/ChainSafe/delegation/lib/ledger"
)

// DelegateAccounts are the accounts of the Delegate operation.
type DelegateAccounts struct {
	// Payer funds the record and metadata cells and is reimbursed at
	// undelegation.
	Payer *ledger.Account
	// Delegated is the account being placed under custody. Its cell
	// must already be owned by the delegation program and it must sign,
	// which proves the call comes from the owner program.
	Delegated *ledger.Account
	// OwnerProgram is the program the account is handed back to.
	OwnerProgram *ledger.Account
	// Buffer is the side buffer the owner program populated with the
	// account bytes before delegating, derived under the owner program.
	Buffer *ledger.Account
	// Record is the uninitialized delegation record cell.
	Record *ledger.Account
	// Metadata is the uninitialized delegation metadata cell.
	Metadata *ledger.Account
}

// Delegate places an account under the program's custody: it records
// the original owner and the commit authority, captures the account
// balance and seeds, and copies the buffered account bytes in.
func (p *Program) Delegate(accounts DelegateAccounts, delegateArgs args.DelegateArgs) error {
	return p.ledger.Execute(func() error {
		return p.delegate(accounts, delegateArgs)
	})
}

func (p *Program) delegate(accounts DelegateAccounts, delegateArgs args.DelegateArgs) error {
	if err := p.requireDelegated(accounts.Delegated); err != nil {
		return err
	}
	if err := requireSigner(accounts.Payer, "payer"); err != nil {
		return err
	}
	if err := requireSigner(accounts.Delegated, "delegated account"); err != nil {
		return err
	}

	delegatedKey := accounts.Delegated.Key()
	ownerProgramKey := accounts.OwnerProgram.Key()

	err := requireDerivedCell(accounts.Buffer, state.KindDelegateBuffer,
		ownerProgramKey, []byte(tagDelegateBuffer), delegatedKey[:])
	if err != nil {
		return err
	}
	if err := requireWritable(accounts.Buffer, state.KindDelegateBuffer); err != nil {
		return err
	}

	err = requireUninitializedCell(accounts.Record, state.KindDelegationRecord,
		p.id, true, []byte(tagDelegationRecord), delegatedKey[:])
	if err != nil {
		return err
	}
	err = requireUninitializedCell(accounts.Metadata, state.KindDelegationMetadata,
		p.id, true, []byte(tagDelegationMetadata), delegatedKey[:])
	if err != nil {
		return err
	}

	err = p.validateDelegatedSeeds(delegatedKey, ownerProgramKey, delegateArgs.Seeds)
	if err != nil {
		return err
	}

	authority := common.ZeroAddress
	if delegateArgs.Validator != nil {
		authority = *delegateArgs.Validator
	}
	record := &state.DelegationRecord{
		Owner:             ownerProgramKey,
		Authority:         authority,
		CommitFrequencyMS: uint64(delegateArgs.CommitFrequencyMS),
		DelegationSlot:    p.ledger.Slot(),
		Lamports:          accounts.Delegated.Lamports(),
	}
	encodedRecord, err := record.Encode()
	if err != nil {
		return err
	}
	err = ledger.CreateCell(accounts.Record, p.id, state.DelegationRecordSize, accounts.Payer)
	if err != nil {
		return err
	}
	copy(accounts.Record.Data(), encodedRecord)

	metadata := &state.DelegationMetadata{
		Seeds:           delegateArgs.Seeds,
		LastUpdateNonce: 0,
		IsUndelegatable: false,
		RentPayer:       accounts.Payer.Key(),
	}
	encodedMetadata, err := metadata.Encode()
	if err != nil {
		return err
	}
	err = ledger.CreateCell(accounts.Metadata, p.id, len(encodedMetadata), accounts.Payer)
	if err != nil {
		return err
	}
	copy(accounts.Metadata.Data(), encodedMetadata)

	if !accounts.Buffer.DataIsEmpty() {
		if len(accounts.Buffer.Data()) != len(accounts.Delegated.Data()) {
			return fmt.Errorf("%w: buffer has %d bytes, delegated account has %d",
				ErrBufferLengthMismatch, len(accounts.Buffer.Data()),
				len(accounts.Delegated.Data()))
		}
		copy(accounts.Delegated.Data(), accounts.Buffer.Data())
	}

	logger.Debugf("delegated account %s for owner program %s",
		delegatedKey.Short(), ownerProgramKey.Short())
	return nil
}

// validateDelegatedSeeds checks that an off-curve delegated address
// actually derives from the given seeds. Addresses owned by the system
// program at delegation time derive under this program instead,
// supporting delegation of escrow accounts.
func (p *Program) validateDelegatedSeeds(delegated, ownerProgram common.Address,
	seeds [][]byte) error {
	if delegated.IsOnCurve() {
		return nil
	}
	if len(seeds) == 0 || len(seeds) > maxDelegationSeeds {
		return fmt.Errorf("%w: %d seeds given, expected between 1 and %d",
			ErrTooManySeeds, len(seeds), maxDelegationSeeds)
	}

	deriveUnder := ownerProgram
	if ownerProgram == ledger.SystemOwner {
		deriveUnder = p.id
	}
	derived, _, err := common.DeriveAddress(deriveUnder, seeds...)
	if err != nil {
		return fmt.Errorf("deriving delegated address: %w", err)
	}
	if derived != delegated {
		return fmt.Errorf("%w: delegated account derives to %s, got %s",
			state.ErrInvalidSeeds, derived.Short(), delegated.Short())
	}
	return nil
}
