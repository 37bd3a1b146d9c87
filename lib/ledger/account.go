// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package ledger

import (
	"github.com/ChainSafe/delegation/lib/common"
)

// Account is a per-invocation handle over a storage cell. The signer
// and writable attributes describe how the cell was passed into the
// invocation; the cell state itself lives in the ledger. Access checks
// are the calling program's responsibility, mirroring how the
// surrounding runtime verifies them before committing an invocation.
type Account struct {
	ledger   *Ledger
	key      common.Address
	signer   bool
	writable bool
}

// Attribute marks how an account is passed into an invocation.
type Attribute func(a *Account)

// Signer marks the account as having signed the invocation.
func Signer(a *Account) { a.signer = true }

// Writable marks the account as writable for the invocation.
func Writable(a *Account) { a.writable = true }

// Key returns the address of the underlying cell.
func (a *Account) Key() common.Address {
	return a.key
}

// IsSigner reports whether the account signed the invocation.
func (a *Account) IsSigner() bool {
	return a.signer
}

// IsWritable reports whether the account is writable in the invocation.
func (a *Account) IsWritable() bool {
	return a.writable
}

// Lamports returns the cell's lamport balance.
func (a *Account) Lamports() uint64 {
	return a.cell().lamports
}

// Owner returns the program owning the cell.
func (a *Account) Owner() common.Address {
	return a.cell().owner
}

// Assign sets the program owning the cell.
func (a *Account) Assign(owner common.Address) {
	a.cell().owner = owner
}

// Data returns the cell's byte buffer. The slice references the cell
// storage directly, so writes through it mutate the cell.
func (a *Account) Data() []byte {
	return a.cell().data
}

// DataIsEmpty reports whether the cell holds no bytes.
func (a *Account) DataIsEmpty() bool {
	return len(a.cell().data) == 0
}

// Resize sets the length of the cell's byte buffer, zero filling any
// new tail and truncating on shrink.
func (a *Account) Resize(length int) {
	c := a.cell()
	if length <= len(c.data) {
		c.data = c.data[:length]
		return
	}
	grown := make([]byte, length)
	copy(grown, c.data)
	c.data = grown
}

// SetLamports overwrites the cell's lamport balance. It models the
// direct balance mutations a program may perform on cells it owns.
func (a *Account) SetLamports(lamports uint64) {
	a.cell().lamports = lamports
}

func (a *Account) cell() *cell {
	return a.ledger.cellAt(a.key)
}
