// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import (
	"testing"

	borsh "github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/delegation/lib/common"
	"github.com/ChainSafe/delegation/lib/delegation/args"
	"github.com/ChainSafe/delegation/lib/delegation/state"
	"github.com/ChainSafe/delegation/lib/ledger"
)

// makeUndelegatable delegates the account and raises the undelegatable
// latch through a commit and finalize round.
func makeUndelegatable(t *testing.T, env *testEnv, data []byte, lamports uint64) {
	t.Helper()
	env.delegate(data, lamports, nil)
	err := env.program.CommitState(env.commitAccounts(), args.CommitStateArgs{
		Nonce: 1, Lamports: lamports, AllowUndelegation: true, Data: data,
	})
	require.NoError(t, err)
	require.NoError(t, env.program.Finalize(env.finalizeAccounts()))
}

// assertCleanupFees checks the cascading fee split of one closed cell:
// the validator vault takes the first tier, the protocol vault takes
// the compounding second tier, the rent payer keeps the rest.
func assertCleanupFees(t *testing.T, env *testEnv,
	closedBalances []uint64, payerBefore, validatorVaultBefore, protocolVaultBefore uint64) {
	t.Helper()
	var payerShare, validatorShare, protocolShare uint64
	for _, balance := range closedBalances {
		fee := balance * 10 / 100
		secondTier := fee * 10 / 100
		payerShare += balance - fee
		validatorShare += fee - secondTier
		protocolShare += secondTier
	}
	assert.Equal(t, payerBefore+payerShare, env.ledger.Balance(env.payer))
	assert.Equal(t, validatorVaultBefore+validatorShare,
		env.ledger.Balance(env.validatorVaultAddress()))
	assert.Equal(t, protocolVaultBefore+protocolShare,
		env.ledger.Balance(env.protocolVaultAddress))
}

func Test_Program_Undelegate_fastPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	const lamports = 5_000_000
	makeUndelegatable(t, env, nil, lamports)

	recordBalance := env.ledger.Balance(env.recordAddress)
	metadataBalance := env.ledger.Balance(env.metadataAddress)
	payerBefore := env.ledger.Balance(env.payer)
	validatorVaultBefore := env.ledger.Balance(env.validatorVaultAddress())
	protocolVaultBefore := env.ledger.Balance(env.protocolVaultAddress)

	err := env.program.Undelegate(env.undelegateAccounts())
	require.NoError(t, err)

	// No handback call for an empty account, the owner is assigned
	// back directly.
	delegated := env.ledger.Account(env.delegated)
	assert.Equal(t, env.ownerProgram, delegated.Owner())
	assert.Equal(t, uint64(lamports), delegated.Lamports())

	assert.True(t, isUninitialized(env.ledger.Account(env.recordAddress)))
	assert.True(t, isUninitialized(env.ledger.Account(env.metadataAddress)))
	assertCleanupFees(t, env, []uint64{recordBalance, metadataBalance},
		payerBefore, validatorVaultBefore, protocolVaultBefore)
}

func Test_Program_Undelegate_handback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	const lamports = 5_000_000
	data := []byte{1, 2, 3, 4}
	makeUndelegatable(t, env, data, lamports)

	validatorBefore := env.ledger.Balance(env.validator)

	err := env.program.Undelegate(env.undelegateAccounts())
	require.NoError(t, err)

	// The owner program recreated the account with the same bytes and
	// the delegated balance came back in full.
	delegated := env.ledger.Account(env.delegated)
	assert.Equal(t, env.ownerProgram, delegated.Owner())
	assert.Equal(t, data, delegated.Data())
	assert.Equal(t, uint64(lamports), delegated.Lamports())

	// The handback buffer is gone and the validator recouped every
	// lamport it fronted.
	assert.True(t, isUninitialized(env.ledger.Account(env.handbackAddress)))
	assert.Equal(t, validatorBefore, env.ledger.Balance(env.validator))

	assert.True(t, isUninitialized(env.ledger.Account(env.recordAddress)))
	assert.True(t, isUninitialized(env.ledger.Account(env.metadataAddress)))
}

func Test_Program_Undelegate_errors(t *testing.T) {
	t.Parallel()

	const lamports = 5_000_000

	testCases := map[string]struct {
		setup      func(env *testEnv) UndelegateAccounts
		errWrapped error
	}{
		"not_undelegatable": {
			setup: func(env *testEnv) UndelegateAccounts {
				env.delegate([]byte{1}, lamports, nil)
				return env.undelegateAccounts()
			},
			errWrapped: ErrNotUndelegatable,
		},
		"pending_commit": {
			setup: func(env *testEnv) UndelegateAccounts {
				env.delegate([]byte{1}, lamports, nil)
				err := env.program.CommitState(env.commitAccounts(), args.CommitStateArgs{
					Nonce: 1, Lamports: lamports, AllowUndelegation: true, Data: []byte{2},
				})
				require.NoError(env.t, err)
				return env.undelegateAccounts()
			},
			errWrapped: state.ErrInvalidCellOwner,
		},
		"wrong_owner_program": {
			setup: func(env *testEnv) UndelegateAccounts {
				makeUndelegatable(env.t, env, []byte{1}, lamports)
				accounts := env.undelegateAccounts()
				accounts.OwnerProgram = env.ledger.Account(common.Address{0xcc})
				return accounts
			},
			errWrapped: ErrInvalidOwnerProgram,
		},
		"wrong_rent_reimbursement": {
			setup: func(env *testEnv) UndelegateAccounts {
				makeUndelegatable(env.t, env, []byte{1}, lamports)
				accounts := env.undelegateAccounts()
				accounts.RentReimbursement = env.ledger.Account(common.Address{0xcd})
				return accounts
			},
			errWrapped: ErrInvalidRentReimbursement,
		},
		"validator_not_signer": {
			setup: func(env *testEnv) UndelegateAccounts {
				makeUndelegatable(env.t, env, []byte{1}, lamports)
				accounts := env.undelegateAccounts()
				accounts.Validator = env.ledger.Account(env.validator, ledger.Writable)
				return accounts
			},
			errWrapped: ledger.ErrNotSigner,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			accounts := testCase.setup(env)

			err := env.program.Undelegate(accounts)

			assert.ErrorIs(t, err, testCase.errWrapped)
			// Custody is unchanged on failure.
			assert.Equal(t, env.program.id, env.ledger.Account(env.delegated).Owner())
		})
	}
}

func Test_Program_Undelegate_handbackPostconditions(t *testing.T) {
	t.Parallel()

	const lamports = 5_000_000
	data := []byte{1, 2, 3, 4}

	testCases := map[string]struct {
		handler    func(env *testEnv) ledger.Handler
		errWrapped error
	}{
		"owner_program_fails": {
			handler: func(env *testEnv) ledger.Handler {
				return func(l *ledger.Ledger, accounts []*ledger.Account, data []byte) error {
					return ledger.ErrUnknownProgram
				}
			},
			errWrapped: ledger.ErrUnknownProgram,
		},
		"data_mismatch": {
			handler: func(env *testEnv) ledger.Handler {
				ownerProgram := env.ownerProgram
				return func(l *ledger.Ledger, accounts []*ledger.Account, data []byte) error {
					delegated, buffer, payer := accounts[0], accounts[1], accounts[2]
					err := ledger.CreateCell(delegated, ownerProgram, len(buffer.Data()), payer)
					if err != nil {
						return err
					}
					// Restore the wrong bytes.
					delegated.Data()[0] ^= 0xff
					copy(delegated.Data()[1:], buffer.Data()[1:])
					return nil
				}
			},
			errWrapped: ErrDataAfterHandback,
		},
		"balance_mismatch": {
			handler: func(env *testEnv) ledger.Handler {
				ownerProgram := env.ownerProgram
				return func(l *ledger.Ledger, accounts []*ledger.Account, data []byte) error {
					delegated, buffer, payer := accounts[0], accounts[1], accounts[2]
					err := ledger.CreateCell(delegated, ownerProgram, len(buffer.Data()), payer)
					if err != nil {
						return err
					}
					copy(delegated.Data(), buffer.Data())
					// Skim an extra lamport off the fronting validator.
					return l.Transfer(payer, l.Account(common.Address{0xef}), 1)
				}
			},
			errWrapped: ErrBalanceAfterHandback,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			makeUndelegatable(t, env, data, lamports)
			env.ledger.RegisterProgram(env.ownerProgram, testCase.handler(env))

			err := env.program.Undelegate(env.undelegateAccounts())

			assert.ErrorIs(t, err, testCase.errWrapped)

			// The whole operation rolled back: the account is still in
			// custody with its bytes and balance intact.
			delegated := env.ledger.Account(env.delegated)
			assert.Equal(t, env.program.id, delegated.Owner())
			assert.Equal(t, data, delegated.Data())
			assert.Equal(t, uint64(lamports), delegated.Lamports())
			assert.Equal(t, env.program.id, env.ledger.Account(env.recordAddress).Owner())
		})
	}
}

func Test_Program_Undelegate_handbackInstruction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	const lamports = 5_000_000
	makeUndelegatable(t, env, []byte{1}, lamports)

	// The owner program receives the handback discriminator followed by
	// the borsh encoded seeds recorded at delegation.
	var received []byte
	ownerProgram := env.ownerProgram
	env.ledger.RegisterProgram(ownerProgram,
		func(l *ledger.Ledger, accounts []*ledger.Account, data []byte) error {
			received = append([]byte(nil), data...)
			delegated, buffer, payer := accounts[0], accounts[1], accounts[2]
			err := ledger.CreateCell(delegated, ownerProgram, len(buffer.Data()), payer)
			if err != nil {
				return err
			}
			copy(delegated.Data(), buffer.Data())
			return nil
		})

	err := env.program.Undelegate(env.undelegateAccounts())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(received), len(HandbackDiscriminator))
	assert.Equal(t, HandbackDiscriminator[:], received[:len(HandbackDiscriminator)])

	var seeds [][]byte
	err = borsh.Deserialize(&seeds, received[len(HandbackDiscriminator):])
	require.NoError(t, err)
	assert.Equal(t, env.seeds, seeds)
}
