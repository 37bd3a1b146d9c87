// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import (
	"fmt"

	"github.com/ChainSafe/delegation/lib/common"
	"github.com/ChainSafe/delegation/lib/delegation/args"
	"github.com/ChainSafe/delegation/lib/delegation/state"
	"github.com/ChainSafe/delegation/lib/ledger"
	"github.com/ChainSafe/delegation/pkg/diff"
)

// CommitAccounts are the accounts shared by the commit operations.
type CommitAccounts struct {
	// Validator submits the commit and funds the commit cells.
	Validator *ledger.Account
	// Delegated is the account the commit is for.
	Delegated *ledger.Account
	// CommitState is the uninitialized cell receiving the new bytes.
	CommitState *ledger.Account
	// CommitRecord is the uninitialized cell receiving the commit
	// record.
	CommitRecord *ledger.Account
	// Record is the delegation record cell.
	Record *ledger.Account
	// Metadata is the delegation metadata cell.
	Metadata *ledger.Account
	// ValidatorFeesVault is the validator's initialized fees vault,
	// proving the validator is registered.
	ValidatorFeesVault *ledger.Account
	// ProgramConfig is the owner program's config cell address; an
	// unallocated cell there means no validator allow list applies.
	ProgramConfig *ledger.Account
}

// CommitState commits a full new state for a delegated account, with
// the new bytes carried inline in the arguments.
func (p *Program) CommitState(accounts CommitAccounts, commitArgs args.CommitStateArgs) error {
	return p.ledger.Execute(func() error {
		return p.commit(accounts, commitArgs.Data, commitArgs.Nonce,
			commitArgs.Lamports, commitArgs.AllowUndelegation)
	})
}

// CommitStateFromBuffer commits a full new state for a delegated
// account, sourcing the new bytes from a side buffer account.
func (p *Program) CommitStateFromBuffer(accounts CommitAccounts, buffer *ledger.Account,
	bufferArgs args.CommitStateFromBufferArgs) error {
	return p.ledger.Execute(func() error {
		return p.commit(accounts, buffer.Data(), bufferArgs.Nonce,
			bufferArgs.Lamports, bufferArgs.AllowUndelegation)
	})
}

// CommitDiff commits a new state expressed as a binary diff against the
// delegated account's current bytes. The instruction data carries the
// length-prefixed diff followed by the fixed argument tail.
func (p *Program) CommitDiff(accounts CommitAccounts, instructionData []byte) error {
	return p.ledger.Execute(func() error {
		diffBytes, tail, err := args.SplitCommitDiff(instructionData)
		if err != nil {
			return err
		}

		set, err := diff.ParseCopy(diffBytes)
		if err != nil {
			return err
		}
		if set.SegmentCount() == 0 {
			logger.Warnf("empty diff committed for account %s",
				accounts.Delegated.Key().Short())
		}

		changed, err := diff.ApplyCopy(accounts.Delegated.Data(), set)
		if err != nil {
			return err
		}
		return p.commit(accounts, changed, tail.Nonce, tail.Lamports, tail.AllowUndelegation)
	})
}

// commit is the shared commit path: it validates ordering and
// authority, takes the validator's lamport collateral, and materialises
// the commit state and commit record cells.
func (p *Program) commit(accounts CommitAccounts, newState []byte,
	nonce, lamports uint64, allowUndelegation bool) error {
	if err := p.requireDelegated(accounts.Delegated); err != nil {
		return err
	}
	if err := requireSigner(accounts.Validator, "validator"); err != nil {
		return err
	}
	if err := p.requireDelegationRecord(accounts.Delegated, accounts.Record, false); err != nil {
		return err
	}
	if err := p.requireDelegationMetadata(accounts.Delegated, accounts.Metadata, true); err != nil {
		return err
	}
	err := p.requireValidatorFeesVault(accounts.Validator, accounts.ValidatorFeesVault, false)
	if err != nil {
		return err
	}

	metadata, err := state.DecodeDelegationMetadata(accounts.Metadata.Data())
	if err != nil {
		return err
	}

	// Commits must arrive in sequence to preserve the account's update
	// history.
	if nonce != metadata.LastUpdateNonce+1 {
		return fmt.Errorf("%w: nonce %d, last update nonce %d",
			ErrNonceOutOfOrder, nonce, metadata.LastUpdateNonce)
	}
	if metadata.IsUndelegatable {
		return fmt.Errorf("%w: %s", ErrAlreadyUndelegated, accounts.Delegated.Key().Short())
	}

	metadata.IsUndelegatable = allowUndelegation
	encodedMetadata, err := metadata.Encode()
	if err != nil {
		return err
	}
	copy(accounts.Metadata.Data(), encodedMetadata)

	record, err := state.DecodeDelegationRecord(accounts.Record.Data())
	if err != nil {
		return err
	}

	validatorKey := accounts.Validator.Key()
	if record.Authority != validatorKey && record.Authority != common.ZeroAddress {
		return fmt.Errorf("%w: validator %s, recorded authority %s",
			ErrInvalidAuthority, validatorKey.Short(), record.Authority.Short())
	}

	// The delegated account must still hold at least the recorded
	// balance, otherwise lamport accounting is broken.
	if accounts.Delegated.Lamports() < record.Lamports {
		return fmt.Errorf("%w: %s holds %d lamports, record indicates %d",
			ErrInvalidDelegatedState, accounts.Delegated.Key().Short(),
			accounts.Delegated.Lamports(), record.Lamports)
	}

	// A balance increase is deposited into the commit state cell now,
	// so the declared lamports are fully collateralised at finalize
	// time. A decrease settles from the delegated account at finalize.
	if lamports > record.Lamports {
		extraLamports := lamports - record.Lamports
		err = p.ledger.Transfer(accounts.Validator, accounts.CommitState, extraLamports)
		if err != nil {
			return fmt.Errorf("depositing commit collateral: %w", err)
		}
	}

	hasProgramConfig, err := p.requireProgramConfig(accounts.ProgramConfig, record.Owner)
	if err != nil {
		return err
	}
	if hasProgramConfig {
		programConfig, err := state.DecodeProgramConfig(accounts.ProgramConfig.Data())
		if err != nil {
			return err
		}
		if !programConfig.Approves(validatorKey) {
			return fmt.Errorf("%w: %s", ErrNotWhitelisted, validatorKey.Short())
		}
	}

	delegatedKey := accounts.Delegated.Key()
	err = requireUninitializedCell(accounts.CommitState, state.KindCommitState,
		p.id, true, []byte(tagCommitState), delegatedKey[:])
	if err != nil {
		return err
	}
	err = requireUninitializedCell(accounts.CommitRecord, state.KindCommitRecord,
		p.id, true, []byte(tagCommitRecord), delegatedKey[:])
	if err != nil {
		return err
	}

	err = ledger.CreateCell(accounts.CommitState, p.id, len(newState), accounts.Validator)
	if err != nil {
		return err
	}
	err = ledger.CreateCell(accounts.CommitRecord, p.id, state.CommitRecordSize, accounts.Validator)
	if err != nil {
		return err
	}

	commitRecord := &state.CommitRecord{
		Identity: validatorKey,
		Account:  delegatedKey,
		Nonce:    nonce,
		Lamports: lamports,
	}
	encodedCommitRecord, err := commitRecord.Encode()
	if err != nil {
		return err
	}
	copy(accounts.CommitRecord.Data(), encodedCommitRecord)
	copy(accounts.CommitState.Data(), newState)

	logger.Debugf("committed nonce %d for account %s", nonce, delegatedKey.Short())
	return nil
}
