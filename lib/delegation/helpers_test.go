// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package delegation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/delegation/config"
	"github.com/ChainSafe/delegation/lib/common"
	"github.com/ChainSafe/delegation/lib/delegation/args"
	"github.com/ChainSafe/delegation/lib/delegation/state"
	"github.com/ChainSafe/delegation/lib/ledger"
)

const testFunding = 10_000_000_000

// testEnv wires a ledger, a program instance and the fixed identities
// every operation test needs: a registered validator with its fees
// vault, an owner program recreating accounts on handback, and a
// delegated address derived from seeds under the owner program.
type testEnv struct {
	t       *testing.T
	ledger  *ledger.Ledger
	program *Program

	payer        common.Address
	validator    common.Address
	ownerProgram common.Address
	seeds        [][]byte
	delegated    common.Address

	recordAddress        common.Address
	metadataAddress      common.Address
	commitStateAddress   common.Address
	commitRecordAddress  common.Address
	bufferAddress        common.Address
	handbackAddress      common.Address
	protocolVaultAddress common.Address
	programConfigAddress common.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	l := ledger.New(ledger.WithSlot(42))
	cfg := config.Default()
	cfg.ProgramID = common.Address{0xde, 0x1e, 0x6a}
	program, err := New(cfg, l)
	require.NoError(t, err)

	env := &testEnv{
		t:            t,
		ledger:       l,
		program:      program,
		payer:        common.Address{0x0a},
		validator:    common.Address{0x0b},
		ownerProgram: common.Address{0x0c},
		seeds:        [][]byte{[]byte("counter"), []byte("alice")},
	}
	env.delegated, _, err = common.DeriveAddress(env.ownerProgram, env.seeds...)
	require.NoError(t, err)

	env.recordAddress = env.derive(DelegationRecordAddress, program.id)
	env.metadataAddress = env.derive(DelegationMetadataAddress, program.id)
	env.commitStateAddress = env.derive(CommitStateAddress, program.id)
	env.commitRecordAddress = env.derive(CommitRecordAddress, program.id)
	env.bufferAddress = env.derive(DelegateBufferAddress, env.ownerProgram)
	env.handbackAddress = env.derive(UndelegationBufferAddress, program.id)
	env.protocolVaultAddress, err = ProtocolFeesVaultAddress(program.id)
	require.NoError(t, err)
	env.programConfigAddress, err = ProgramConfigAddress(program.id, env.ownerProgram)
	require.NoError(t, err)

	l.Credit(env.payer, testFunding)
	l.Credit(env.validator, testFunding)

	env.createVault(env.protocolVaultAddress)
	env.createValidatorVault(env.validator)
	env.registerOwnerProgram()

	return env
}

func (env *testEnv) derive(
	deriveAddress func(program, delegated common.Address) (common.Address, error),
	program common.Address) common.Address {
	env.t.Helper()
	address, err := deriveAddress(program, env.delegated)
	require.NoError(env.t, err)
	return address
}

func (env *testEnv) createVault(address common.Address) {
	env.t.Helper()
	funder := common.Address{0xfa}
	env.ledger.Credit(funder, testFunding)
	err := ledger.CreateCell(env.ledger.Account(address, ledger.Writable),
		env.program.id, 0, env.ledger.Account(funder, ledger.Signer))
	require.NoError(env.t, err)
}

func (env *testEnv) createValidatorVault(validator common.Address) common.Address {
	env.t.Helper()
	address, err := ValidatorFeesVaultAddress(env.program.id, validator)
	require.NoError(env.t, err)
	env.createVault(address)
	return address
}

func (env *testEnv) validatorVaultAddress() common.Address {
	env.t.Helper()
	address, err := ValidatorFeesVaultAddress(env.program.id, env.validator)
	require.NoError(env.t, err)
	return address
}

// registerOwnerProgram installs a handback entry point that recreates
// the account from the buffer, funded by the payer handle it is given.
func (env *testEnv) registerOwnerProgram() {
	ownerProgram := env.ownerProgram
	env.ledger.RegisterProgram(ownerProgram,
		func(l *ledger.Ledger, accounts []*ledger.Account, data []byte) error {
			delegated, buffer, payer := accounts[0], accounts[1], accounts[2]
			err := ledger.CreateCell(delegated, ownerProgram, len(buffer.Data()), payer)
			if err != nil {
				return err
			}
			copy(delegated.Data(), buffer.Data())
			return nil
		})
}

// prepareDelegated shapes the delegated cell the way the owner program
// leaves it before calling Delegate: owned by the delegation program,
// zero sized data, and the real bytes parked in the side buffer.
func (env *testEnv) prepareDelegated(data []byte, lamports uint64) {
	env.t.Helper()
	env.ledger.Credit(env.delegated, lamports)
	delegated := env.ledger.Account(env.delegated)
	delegated.Assign(env.program.id)
	delegated.Resize(len(data))

	buffer := env.ledger.Account(env.bufferAddress)
	buffer.Assign(env.ownerProgram)
	buffer.Resize(len(data))
	copy(buffer.Data(), data)
}

func (env *testEnv) delegateAccounts() DelegateAccounts {
	return DelegateAccounts{
		Payer:        env.ledger.Account(env.payer, ledger.Signer, ledger.Writable),
		Delegated:    env.ledger.Account(env.delegated, ledger.Signer, ledger.Writable),
		OwnerProgram: env.ledger.Account(env.ownerProgram),
		Buffer:       env.ledger.Account(env.bufferAddress, ledger.Writable),
		Record:       env.ledger.Account(env.recordAddress, ledger.Writable),
		Metadata:     env.ledger.Account(env.metadataAddress, ledger.Writable),
	}
}

// delegate runs the whole Delegate operation over a freshly prepared
// account.
func (env *testEnv) delegate(data []byte, lamports uint64, validator *common.Address) {
	env.t.Helper()
	env.prepareDelegated(data, lamports)
	err := env.program.Delegate(env.delegateAccounts(), args.DelegateArgs{
		Validator:         validator,
		CommitFrequencyMS: 300,
		Seeds:             env.seeds,
	})
	require.NoError(env.t, err)
}

func (env *testEnv) commitAccounts() CommitAccounts {
	return CommitAccounts{
		Validator:          env.ledger.Account(env.validator, ledger.Signer, ledger.Writable),
		Delegated:          env.ledger.Account(env.delegated),
		CommitState:        env.ledger.Account(env.commitStateAddress, ledger.Writable),
		CommitRecord:       env.ledger.Account(env.commitRecordAddress, ledger.Writable),
		Record:             env.ledger.Account(env.recordAddress),
		Metadata:           env.ledger.Account(env.metadataAddress, ledger.Writable),
		ValidatorFeesVault: env.ledger.Account(env.validatorVaultAddress()),
		ProgramConfig:      env.ledger.Account(env.programConfigAddress),
	}
}

func (env *testEnv) finalizeAccounts() FinalizeAccounts {
	return FinalizeAccounts{
		Validator:          env.ledger.Account(env.validator, ledger.Signer, ledger.Writable),
		Delegated:          env.ledger.Account(env.delegated, ledger.Writable),
		CommitState:        env.ledger.Account(env.commitStateAddress, ledger.Writable),
		CommitRecord:       env.ledger.Account(env.commitRecordAddress, ledger.Writable),
		Record:             env.ledger.Account(env.recordAddress, ledger.Writable),
		Metadata:           env.ledger.Account(env.metadataAddress, ledger.Writable),
		ValidatorFeesVault: env.ledger.Account(env.validatorVaultAddress(), ledger.Writable),
	}
}

func (env *testEnv) undelegateAccounts() UndelegateAccounts {
	return UndelegateAccounts{
		Validator:          env.ledger.Account(env.validator, ledger.Signer, ledger.Writable),
		Delegated:          env.ledger.Account(env.delegated, ledger.Writable),
		OwnerProgram:       env.ledger.Account(env.ownerProgram),
		UndelegationBuffer: env.ledger.Account(env.handbackAddress, ledger.Writable),
		CommitState:        env.ledger.Account(env.commitStateAddress),
		CommitRecord:       env.ledger.Account(env.commitRecordAddress),
		Record:             env.ledger.Account(env.recordAddress, ledger.Writable),
		Metadata:           env.ledger.Account(env.metadataAddress, ledger.Writable),
		RentReimbursement:  env.ledger.Account(env.payer),
		ProtocolFeesVault:  env.ledger.Account(env.protocolVaultAddress, ledger.Writable),
		ValidatorFeesVault: env.ledger.Account(env.validatorVaultAddress(), ledger.Writable),
	}
}

// writeProgramConfig installs a validator allow list for the owner
// program.
func (env *testEnv) writeProgramConfig(approved ...common.Address) {
	env.t.Helper()
	programConfig := &state.ProgramConfig{ApprovedValidators: approved}
	encoded, err := programConfig.Encode()
	require.NoError(env.t, err)
	cell := env.ledger.Account(env.programConfigAddress)
	cell.Assign(env.program.id)
	cell.Resize(len(encoded))
	copy(cell.Data(), encoded)
}

func (env *testEnv) decodeRecord() *state.DelegationRecord {
	env.t.Helper()
	record, err := state.DecodeDelegationRecord(env.ledger.Account(env.recordAddress).Data())
	require.NoError(env.t, err)
	return record
}

func (env *testEnv) decodeMetadata() *state.DelegationMetadata {
	env.t.Helper()
	metadata, err := state.DecodeDelegationMetadata(env.ledger.Account(env.metadataAddress).Data())
	require.NoError(env.t, err)
	return metadata
}
