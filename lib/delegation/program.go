// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package delegation implements the delegation program: a
// custody-and-handoff state machine that takes ownership of storage
// cells so an external execution domain can operate on them, accepts
// sequentially numbered state commits from validators, and eventually
// hands the cells back to their owner program.
package delegation

import (
	"github.com/ChainSafe/delegation/config"
	"github.com/ChainSafe/delegation/internal/log"
	"github.com/ChainSafe/delegation/lib/common"
	"github.com/ChainSafe/delegation/lib/ledger"
)

var logger = log.NewFromGlobal(log.AddContext("pkg", "delegation"))

// HandbackDiscriminator prefixes the instruction the program sends to
// an owner program when handing an undelegated account back. The owner
// program is expected to recreate the account from the handback buffer
// when it receives this instruction.
var HandbackDiscriminator = [8]byte{196, 28, 41, 206, 48, 37, 51, 167}

// maxDelegationSeeds caps the number of seed components a delegated
// address may derive from.
const maxDelegationSeeds = 4

// Program is the delegation program bound to a ledger and an identity.
// All operations run atomically through the ledger.
type Program struct {
	id                common.Address
	rentFeePercentage uint8
	ledger            *ledger.Ledger
}

// New creates the delegation program from its configuration.
func New(cfg config.Config, l *ledger.Ledger) (*Program, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Program{
		id:                cfg.ProgramID,
		rentFeePercentage: cfg.RentFeePercentage,
		ledger:            l,
	}, nil
}

// ID returns the program identity.
func (p *Program) ID() common.Address {
	return p.id
}
