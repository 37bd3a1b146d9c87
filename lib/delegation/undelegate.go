// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import (
	"bytes"
	"fmt"

	borsh "github.com/near/borsh-go"

	"github.com/ChainSafe/delegation/lib/delegation/state"
	"github.com/ChainSafe/delegation/lib/ledger"
)

// UndelegateAccounts are the accounts of the Undelegate operation.
type UndelegateAccounts struct {
	// Validator drives the undelegation and fronts the rent of the
	// recreated account during the handback.
	Validator *ledger.Account
	// Delegated is the account leaving custody.
	Delegated *ledger.Account
	// OwnerProgram is the program receiving the account back. It must
	// match the owner in the delegation record.
	OwnerProgram *ledger.Account
	// UndelegationBuffer is the uninitialized cell holding the account
	// bytes across the handback.
	UndelegationBuffer *ledger.Account
	// CommitState must be uninitialized: pending commits block
	// undelegation.
	CommitState *ledger.Account
	// CommitRecord must be uninitialized as well.
	CommitRecord *ledger.Account
	// Record is the delegation record cell, closed on success.
	Record *ledger.Account
	// Metadata is the delegation metadata cell, closed on success.
	Metadata *ledger.Account
	// RentReimbursement receives the record and metadata rents, minus
	// fees. It must match the recorded rent payer.
	RentReimbursement *ledger.Account
	// ProtocolFeesVault receives the second fee tier.
	ProtocolFeesVault *ledger.Account
	// ValidatorFeesVault receives the first fee tier.
	ValidatorFeesVault *ledger.Account
}

// Undelegate returns a delegated account to its owner program. An
// account with no data is simply reassigned; otherwise the bytes move
// through the undelegation buffer and the owner program recreates the
// account in a synchronous handback call, which is then verified
// byte-for-byte and balance-for-balance before the delegation cells
// are closed out.
func (p *Program) Undelegate(accounts UndelegateAccounts) error {
	return p.ledger.Execute(func() error {
		return p.undelegate(accounts)
	})
}

func (p *Program) undelegate(accounts UndelegateAccounts) error {
	if err := requireSigner(accounts.Validator, "validator"); err != nil {
		return err
	}
	if err := p.requireDelegated(accounts.Delegated); err != nil {
		return err
	}
	if err := p.requireDelegationRecord(accounts.Delegated, accounts.Record, true); err != nil {
		return err
	}
	if err := p.requireDelegationMetadata(accounts.Delegated, accounts.Metadata, true); err != nil {
		return err
	}
	if err := p.requireProtocolFeesVault(accounts.ProtocolFeesVault, true); err != nil {
		return err
	}
	err := p.requireValidatorFeesVault(accounts.Validator, accounts.ValidatorFeesVault, true)
	if err != nil {
		return err
	}

	// Pending commits must be finalized before the account can leave.
	delegatedKey := accounts.Delegated.Key()
	err = requireUninitializedCell(accounts.CommitState, state.KindCommitState,
		p.id, false, []byte(tagCommitState), delegatedKey[:])
	if err != nil {
		return err
	}
	err = requireUninitializedCell(accounts.CommitRecord, state.KindCommitRecord,
		p.id, false, []byte(tagCommitRecord), delegatedKey[:])
	if err != nil {
		return err
	}

	record, err := state.DecodeDelegationRecord(accounts.Record.Data())
	if err != nil {
		return err
	}
	ownerProgramKey := accounts.OwnerProgram.Key()
	if record.Owner != ownerProgramKey {
		return fmt.Errorf("%w: record owner %s, got %s",
			ErrInvalidOwnerProgram, record.Owner.Short(), ownerProgramKey.Short())
	}

	metadata, err := state.DecodeDelegationMetadata(accounts.Metadata.Data())
	if err != nil {
		return err
	}
	if !metadata.IsUndelegatable {
		return fmt.Errorf("%w: %s", ErrNotUndelegatable, delegatedKey.Short())
	}
	if metadata.RentPayer != accounts.RentReimbursement.Key() {
		return fmt.Errorf("%w: rent payer is %s, got %s",
			ErrInvalidRentReimbursement, metadata.RentPayer.Short(),
			accounts.RentReimbursement.Key().Short())
	}

	// An account with no bytes needs no handback, the owner is simply
	// assigned back.
	if accounts.Delegated.DataIsEmpty() {
		accounts.Delegated.Assign(ownerProgramKey)
		return p.cleanup(accounts)
	}

	err = requireUninitializedCell(accounts.UndelegationBuffer, state.KindUndelegationBuffer,
		p.id, true, []byte(tagUndelegationBuffer), delegatedKey[:])
	if err != nil {
		return err
	}
	dataLength := len(accounts.Delegated.Data())
	err = ledger.CreateCell(accounts.UndelegationBuffer, p.id, dataLength, accounts.Validator)
	if err != nil {
		return err
	}
	copy(accounts.UndelegationBuffer.Data(), accounts.Delegated.Data())

	if err := p.handback(accounts, metadata.Seeds); err != nil {
		return err
	}

	err = ledger.CloseCell(accounts.UndelegationBuffer, accounts.Validator)
	if err != nil {
		return err
	}

	logger.Debugf("undelegated account %s back to owner program %s",
		delegatedKey.Short(), ownerProgramKey.Short())
	return p.cleanup(accounts)
}

// handback closes the delegated account and calls into the owner
// program so it recreates the account under its own ownership from the
// undelegation buffer. The owner program pays the recreated account's
// rent out of the validator balance, which is verified to have dropped
// by exactly that amount, and the bytes it restored are verified
// against the buffer.
func (p *Program) handback(accounts UndelegateAccounts, seeds [][]byte) error {
	lamportsBeforeClose := accounts.Delegated.Lamports()
	if err := ledger.CloseCell(accounts.Delegated, accounts.Validator); err != nil {
		return err
	}

	encodedSeeds, err := borsh.Serialize(seeds)
	if err != nil {
		return fmt.Errorf("serialising handback seeds: %w", err)
	}
	data := append(HandbackDiscriminator[:], encodedSeeds...)

	validatorBeforeCall := accounts.Validator.Lamports()

	err = p.ledger.Invoke(accounts.OwnerProgram.Key(), []*ledger.Account{
		p.ledger.Account(accounts.Delegated.Key(), ledger.Writable),
		p.ledger.Account(accounts.UndelegationBuffer.Key(), ledger.Signer, ledger.Writable),
		p.ledger.Account(accounts.Validator.Key(), ledger.Signer, ledger.Writable),
	}, data)
	if err != nil {
		return fmt.Errorf("handback call to owner program: %w", err)
	}

	minimumRent := p.ledger.Rent().MinimumBalance(len(accounts.Delegated.Data()))
	expected := accounts.Validator.Lamports() + minimumRent
	if expected < minimumRent || validatorBeforeCall != expected {
		return fmt.Errorf("%w: validator held %d lamports before, %d after, "+
			"recreated account rent is %d", ErrBalanceAfterHandback,
			validatorBeforeCall, accounts.Validator.Lamports(), minimumRent)
	}

	if !bytes.Equal(accounts.Delegated.Data(), accounts.UndelegationBuffer.Data()) {
		return fmt.Errorf("%w: %s", ErrDataAfterHandback, accounts.Delegated.Key().Short())
	}

	// The delegated balance beyond the recreated account's rent went to
	// the validator at close time; return it.
	if lamportsBeforeClose < minimumRent {
		return fmt.Errorf("%w: account held %d lamports, rent is %d",
			ErrBalanceUnderflow, lamportsBeforeClose, minimumRent)
	}
	extraLamports := lamportsBeforeClose - minimumRent
	err = p.ledger.Transfer(accounts.Validator, accounts.Delegated, extraLamports)
	if err != nil {
		return fmt.Errorf("returning delegated balance: %w", err)
	}
	return nil
}

// cleanup closes the delegation record and metadata cells to the rent
// payer, taking the cascading rent fee into the validator and protocol
// vaults.
func (p *Program) cleanup(accounts UndelegateAccounts) error {
	feeAccounts := []*ledger.Account{accounts.ValidatorFeesVault, accounts.ProtocolFeesVault}
	err := ledger.CloseCellWithFees(accounts.Record, accounts.RentReimbursement,
		feeAccounts, p.rentFeePercentage)
	if err != nil {
		return err
	}
	return ledger.CloseCellWithFees(accounts.Metadata, accounts.RentReimbursement,
		feeAccounts, p.rentFeePercentage)
}
