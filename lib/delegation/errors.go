// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import "errors"

var (
	// ErrNotDelegated is returned when the delegated account cell is
	// not owned by the delegation program.
	ErrNotDelegated = errors.New("account is not delegated")
	// ErrInvalidAuthority is returned when the committing validator is
	// neither the recorded authority nor covered by the any-validator
	// sentinel.
	ErrInvalidAuthority = errors.New("invalid commit authority")
	// ErrNotWhitelisted is returned when a program config exists and
	// does not approve the committing validator.
	ErrNotWhitelisted = errors.New("validator is not whitelisted")
	// ErrNonceOutOfOrder is returned when a commit nonce is not exactly
	// one above the last recorded nonce.
	ErrNonceOutOfOrder = errors.New("commit nonce out of order")
	// ErrAlreadyUndelegated is returned when committing to an account
	// whose undelegatable latch is already set.
	ErrAlreadyUndelegated = errors.New("account is already undelegatable")
	// ErrNotUndelegatable is returned when undelegating an account
	// whose undelegatable latch is not set.
	ErrNotUndelegatable = errors.New("account is not undelegatable")
	// ErrTooManySeeds is returned when delegation arguments carry more
	// seed components than supported.
	ErrTooManySeeds = errors.New("too many delegation seeds")
	// ErrBufferLengthMismatch is returned when the delegate side buffer
	// does not match the delegated account data length.
	ErrBufferLengthMismatch = errors.New("delegate buffer length mismatch")
	// ErrInvalidDelegatedState is returned when the delegated account
	// holds fewer lamports than its delegation record indicates.
	ErrInvalidDelegatedState = errors.New("delegated account balance below recorded balance")
	// ErrInvalidDelegatedAccount is returned when a commit record does
	// not reference the delegated account being finalized.
	ErrInvalidDelegatedAccount = errors.New("commit record references another account")
	// ErrInvalidReimbursementAccount is returned when the finalizing
	// validator is not the identity that submitted the commit.
	ErrInvalidReimbursementAccount = errors.New("validator did not submit the commit")
	// ErrInvalidOwnerProgram is returned when the owner program account
	// does not match the owner in the delegation record.
	ErrInvalidOwnerProgram = errors.New("owner program does not match delegation record")
	// ErrInvalidRentReimbursement is returned when the rent
	// reimbursement account does not match the recorded rent payer.
	ErrInvalidRentReimbursement = errors.New("rent reimbursement account is not the rent payer")
	// ErrBalanceAfterHandback is returned when the validator balance
	// after the owner program handback differs from exactly the
	// recreated account's minimum rent-exempt balance.
	ErrBalanceAfterHandback = errors.New("unexpected validator balance after handback")
	// ErrDataAfterHandback is returned when the owner program did not
	// restore the delegated account bytes verbatim during handback.
	ErrDataAfterHandback = errors.New("account data mismatch after handback")
	// ErrBalanceUnderflow is returned when a balance subtraction would
	// go below zero.
	ErrBalanceUnderflow = errors.New("lamport balance underflow")
)
