// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package config defines the runtime configuration of the delegation
// program and its validation rules.
package config

import (
	"fmt"

	"github.com/ChainSafe/delegation/lib/common"
	"github.com/go-playground/validator/v10"
)

// DefaultRentFeePercentage is the share of closed record rent routed to
// the fee vaults during undelegation cleanup.
const DefaultRentFeePercentage = 10

// Config holds the parameters the delegation program is instantiated
// with. The program identity is injected here rather than compiled in
// so that tests and deployments can each run under their own address.
type Config struct {
	// ProgramID is the on-ledger address the program is registered under.
	ProgramID common.Address `validate:"required"`
	// RentFeePercentage is the cut of reclaimed record rent paid into
	// the validator fees vault, cascading into the protocol fees vault.
	RentFeePercentage uint8 `validate:"lte=100"`
}

// Default returns a configuration with the standard fee percentage and
// no program identity set.
func Default() Config {
	return Config{
		RentFeePercentage: DefaultRentFeePercentage,
	}
}

// Validate checks the configuration is complete and within bounds.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}
	return nil
}
