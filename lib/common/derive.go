// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package common

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
)

// derivedAddressMarker domain-separates derived addresses from
// regular hashes.
var derivedAddressMarker = []byte("DerivedStorageCellAddress")

var (
	ErrTooManyDerivationSeeds = errors.New("too many derivation seeds")
	ErrSeedTooLong            = errors.New("derivation seed is too long")
	ErrNoDerivedAddress       = errors.New("could not derive an off-curve address")
)

// DeriveAddress finds the canonical derived address for the given seeds
// under the program identity. Derived addresses have no private key, so
// the derivation walks bump values downwards from 255 until the
// resulting address falls off the ed25519 curve. It returns the address
// together with the winning bump.
func DeriveAddress(program Address, seeds ...[]byte) (derived Address, bump uint8, err error) {
	if len(seeds) > maxSeeds {
		return Address{}, 0, fmt.Errorf("%w: %d seeds given, maximum is %d",
			ErrTooManyDerivationSeeds, len(seeds), maxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > maxSeedLength {
			return Address{}, 0, fmt.Errorf("%w: seed %d has %d bytes, maximum is %d",
				ErrSeedTooLong, i, len(seed), maxSeedLength)
		}
	}

	for bumpValue := 255; bumpValue >= 0; bumpValue-- {
		candidate := deriveWithBump(program, seeds, uint8(bumpValue))
		if !candidate.IsOnCurve() {
			return candidate, uint8(bumpValue), nil
		}
	}

	return Address{}, 0, ErrNoDerivedAddress
}

func deriveWithBump(program Address, seeds [][]byte, bump uint8) Address {
	hasher := sha256.New()
	for _, seed := range seeds {
		hasher.Write(seed)
	}
	hasher.Write([]byte{bump})
	hasher.Write(program[:])
	hasher.Write(derivedAddressMarker)
	return NewAddress(hasher.Sum(nil))
}
