// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import (
	"fmt"

	"github.com/ChainSafe/delegation/lib/delegation/state"
	"github.com/ChainSafe/delegation/lib/ledger"
)

// FinalizeAccounts are the accounts of the Finalize operation.
type FinalizeAccounts struct {
	// Validator finalizes its own commit and receives the commit cell
	// rents back.
	Validator *ledger.Account
	// Delegated is the account receiving the committed bytes.
	Delegated *ledger.Account
	// CommitState is the cell holding the committed bytes.
	CommitState *ledger.Account
	// CommitRecord is the cell holding the commit record.
	CommitRecord *ledger.Account
	// Record is the delegation record cell.
	Record *ledger.Account
	// Metadata is the delegation metadata cell.
	Metadata *ledger.Account
	// ValidatorFeesVault receives the shortfall when the committed
	// balance is below the recorded balance.
	ValidatorFeesVault *ledger.Account
}

// Finalize applies a pending commit to the delegated account: it
// settles the lamport balance, advances the metadata nonce, refreshes
// the recorded balance, copies the committed bytes in and closes both
// commit cells to the validator. Finalizes are typically batched, so a
// missing commit is not an error but an idempotent no-op.
func (p *Program) Finalize(accounts FinalizeAccounts) error {
	return p.ledger.Execute(func() error {
		return p.finalize(accounts)
	})
}

func (p *Program) finalize(accounts FinalizeAccounts) error {
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
	err := p.requireValidatorFeesVault(accounts.Validator, accounts.ValidatorFeesVault, true)
	if err != nil {
		return err
	}

	delegatedKey := accounts.Delegated.Key()
	err = requireDerivedCell(accounts.CommitState, state.KindCommitState,
		p.id, []byte(tagCommitState), delegatedKey[:])
	if err != nil {
		return err
	}
	err = requireDerivedCell(accounts.CommitRecord, state.KindCommitRecord,
		p.id, []byte(tagCommitRecord), delegatedKey[:])
	if err != nil {
		return err
	}

	if isUninitialized(accounts.CommitState) && isUninitialized(accounts.CommitRecord) {
		logger.Debugf("no state to finalize for account %s", delegatedKey.Short())
		return nil
	}
	err = requireInitializedCell(accounts.CommitState, state.KindCommitState,
		p.id, true, []byte(tagCommitState), delegatedKey[:])
	if err != nil {
		return err
	}
	err = requireInitializedCell(accounts.CommitRecord, state.KindCommitRecord,
		p.id, true, []byte(tagCommitRecord), delegatedKey[:])
	if err != nil {
		return err
	}

	metadata, err := state.DecodeDelegationMetadata(accounts.Metadata.Data())
	if err != nil {
		return err
	}
	record, err := state.DecodeDelegationRecord(accounts.Record.Data())
	if err != nil {
		return err
	}
	commitRecord, err := state.DecodeCommitRecord(accounts.CommitRecord.Data())
	if err != nil {
		return err
	}

	if commitRecord.Account != delegatedKey {
		return fmt.Errorf("%w: commit record is for %s, finalizing %s",
			ErrInvalidDelegatedAccount, commitRecord.Account.Short(), delegatedKey.Short())
	}
	if commitRecord.Identity != accounts.Validator.Key() {
		return fmt.Errorf("%w: commit was submitted by %s",
			ErrInvalidReimbursementAccount, commitRecord.Identity.Short())
	}

	err = settleLamports(accounts.Delegated, accounts.CommitState,
		accounts.ValidatorFeesVault, record.Lamports, commitRecord.Lamports)
	if err != nil {
		return err
	}

	metadata.LastUpdateNonce = commitRecord.Nonce
	encodedMetadata, err := metadata.Encode()
	if err != nil {
		return err
	}
	copy(accounts.Metadata.Data(), encodedMetadata)

	record.Lamports = accounts.Delegated.Lamports()
	encodedRecord, err := record.Encode()
	if err != nil {
		return err
	}
	copy(accounts.Record.Data(), encodedRecord)

	committedState := accounts.CommitState.Data()
	accounts.Delegated.Resize(len(committedState))
	copy(accounts.Delegated.Data(), committedState)

	if err := ledger.CloseCell(accounts.CommitState, accounts.Validator); err != nil {
		return err
	}
	if err := ledger.CloseCell(accounts.CommitRecord, accounts.Validator); err != nil {
		return err
	}

	logger.Debugf("finalized nonce %d for account %s", commitRecord.Nonce, delegatedKey.Short())
	return nil
}

// settleLamports reconciles the delegated account balance with the
// committed balance. A shortfall moves from the delegated account into
// the validator fees vault; a surplus moves from the commit state
// cell's collateral into the delegated account.
func settleLamports(delegated, commitState, validatorFeesVault *ledger.Account,
	recordLamports, commitLamports uint64) error {
	var source, destination *ledger.Account
	var amount uint64
	switch {
	case recordLamports > commitLamports:
		source, destination = delegated, validatorFeesVault
		amount = recordLamports - commitLamports
	case recordLamports < commitLamports:
		source, destination = commitState, delegated
		amount = commitLamports - recordLamports
	default:
		return nil
	}
	return moveLamports(source, destination, amount)
}

// moveLamports moves lamports between program-owned cells directly,
// without signature checks.
func moveLamports(source, destination *ledger.Account, amount uint64) error {
	if source.Lamports() < amount {
		return fmt.Errorf("%w: %s holds %d lamports, moving %d",
			ErrBalanceUnderflow, source.Key().Short(), source.Lamports(), amount)
	}
	sum := destination.Lamports() + amount
	if sum < amount {
		return fmt.Errorf("%w: %s", ledger.ErrBalanceOverflow, destination.Key().Short())
	}
	source.SetLamports(source.Lamports() - amount)
	destination.SetLamports(sum)
	return nil
}
