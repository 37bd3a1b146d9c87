// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package ledger models the runtime collaborator hosting the storage
// cells a program operates on: addressable cells with lamport balances,
// byte buffers and ownership tags, a monotonic slot clock, minimum
// rent-exempt balance computation, and synchronous invocation of
// registered program entry points.
//
// An invocation runs on a single logical thread with every touched cell
// exclusively locked for its duration. Execute gives all-or-nothing
// semantics: any error rolls every touched cell back.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ChainSafe/delegation/lib/common"
)

// SystemOwner is the owner of cells not yet assigned to any program.
var SystemOwner = common.Address{}

var (
	ErrNotSigner         = errors.New("account is not a signer")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("lamport balance overflow")
	ErrUnknownProgram    = errors.New("no program registered for address")
)

// Handler is a program entry point registered with the ledger. It is
// invoked synchronously and must return before control comes back to
// the calling program.
type Handler func(l *Ledger, accounts []*Account, data []byte) error

type cell struct {
	lamports uint64
	owner    common.Address
	data     []byte
}

func (c *cell) copy() *cell {
	dataCopy := make([]byte, len(c.data))
	copy(dataCopy, c.data)
	return &cell{
		lamports: c.lamports,
		owner:    c.owner,
		data:     dataCopy,
	}
}

// Ledger hosts storage cells and registered programs.
type Ledger struct {
	mutex    sync.Mutex
	rent     Rent
	slot     uint64
	cells    map[common.Address]*cell
	programs map[common.Address]Handler
}

// Option modifies the ledger constructed by New.
type Option func(l *Ledger)

// WithRent sets the rent parameters for the ledger.
func WithRent(rent Rent) Option {
	return func(l *Ledger) {
		l.rent = rent
	}
}

// WithSlot sets the initial slot for the ledger clock.
func WithSlot(slot uint64) Option {
	return func(l *Ledger) {
		l.slot = slot
	}
}

// New creates a ledger with no cells and no registered programs.
func New(options ...Option) *Ledger {
	l := &Ledger{
		rent:     DefaultRent,
		cells:    make(map[common.Address]*cell),
		programs: make(map[common.Address]Handler),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Rent returns the rent parameters of the ledger.
func (l *Ledger) Rent() Rent {
	return l.rent
}

// Slot returns the current slot of the ledger clock.
func (l *Ledger) Slot() uint64 {
	return l.slot
}

// AdvanceSlot moves the ledger clock forward.
func (l *Ledger) AdvanceSlot(by uint64) {
	l.slot += by
}

// RegisterProgram registers a program entry point at the given address.
func (l *Ledger) RegisterProgram(id common.Address, handler Handler) {
	l.programs[id] = handler
}

// cellAt returns the cell at the address, creating an empty
// system-owned cell on first reference.
func (l *Ledger) cellAt(address common.Address) *cell {
	c, ok := l.cells[address]
	if !ok {
		c = &cell{owner: SystemOwner}
		l.cells[address] = c
	}
	return c
}

// Account returns a handle over the cell at the given address for the
// current invocation. Signer and writable are invocation attributes,
// not cell state.
func (l *Ledger) Account(address common.Address, attributes ...Attribute) *Account {
	account := &Account{ledger: l, key: address}
	for _, attribute := range attributes {
		attribute(account)
	}
	return account
}

// Credit mints lamports into the cell at the given address. It stands
// in for balance the surrounding chain moved into the cell before the
// invocation.
func (l *Ledger) Credit(address common.Address, lamports uint64) {
	l.cellAt(address).lamports += lamports
}

// Balance returns the lamport balance of the cell at the given address.
func (l *Ledger) Balance(address common.Address) uint64 {
	return l.cellAt(address).lamports
}

// Transfer moves lamports between two accounts. The source must be a
// signer and hold enough lamports.
func (l *Ledger) Transfer(from, to *Account, lamports uint64) error {
	if !from.IsSigner() {
		return fmt.Errorf("%w: transfer source %s", ErrNotSigner, from.Key().Short())
	}
	fromCell := l.cellAt(from.key)
	if fromCell.lamports < lamports {
		return fmt.Errorf("%w: %s has %d lamports, needs %d",
			ErrInsufficientFunds, from.Key().Short(), fromCell.lamports, lamports)
	}
	toCell := l.cellAt(to.key)
	sum, err := checkedAdd(toCell.lamports, lamports)
	if err != nil {
		return err
	}
	fromCell.lamports -= lamports
	toCell.lamports = sum
	return nil
}

// Invoke synchronously calls the program registered at the given
// address. Control does not return until the program completes or
// fails; a failure aborts the enclosing operation.
func (l *Ledger) Invoke(program common.Address, accounts []*Account, data []byte) error {
	handler, ok := l.programs[program]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, program.Short())
	}
	return handler(l, accounts, data)
}

// Execute runs the given function with all-or-nothing semantics: if it
// returns an error, every cell is restored to its state from before the
// call. Invocations are serialised, modelling the exclusive cell locks
// the surrounding runtime takes.
func (l *Ledger) Execute(fn func() error) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	snapshot := make(map[common.Address]*cell, len(l.cells))
	for address, c := range l.cells {
		snapshot[address] = c.copy()
	}

	if err := fn(); err != nil {
		l.cells = snapshot
		return err
	}
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, a, b)
	}
	return sum, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	if a == 0 {
		return 0, nil
	}
	product := a * b
	if product/a != b {
		return 0, fmt.Errorf("%w: %d * %d", ErrBalanceOverflow, a, b)
	}
	return product, nil
}
