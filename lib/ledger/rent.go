// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package ledger

// accountStorageOverhead is the number of bytes of metadata the ledger
// stores per cell on top of its data, included in rent computations.
const accountStorageOverhead = 128

// Rent holds the parameters for minimum rent-exempt balance
// computation.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

// DefaultRent matches the mainnet rent parameters.
var DefaultRent = Rent{
	LamportsPerByteYear: 3480,
	ExemptionThreshold:  2,
}

// MinimumBalance returns the minimum lamport balance a cell with the
// given data length must hold to be exempt from rent collection.
func (r Rent) MinimumBalance(dataLength int) uint64 {
	return (accountStorageOverhead + uint64(dataLength)) *
		r.LamportsPerByteYear * r.ExemptionThreshold
}
