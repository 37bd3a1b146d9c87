// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package common

import (
	"encoding/hex"

	"filippo.io/edwards25519"
)

const (
	// AddressLength is the expected length of the common.Address type
	AddressLength = 32
)

// ZeroAddress is the all-zero address. The delegation record uses it
// as the "any validator" authority sentinel.
var ZeroAddress = Address{}

// Address is a 32 byte ledger address.
type Address [AddressLength]byte

// NewAddress casts a byte slice to an Address.
// If the input is longer than 32 bytes, it takes the first 32 bytes.
func NewAddress(in []byte) (a Address) {
	copy(a[:], in)
	return a
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	b := [AddressLength]byte(a)
	return b[:]
}

// String returns the hex string for the address.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short returns a shortened hex string for the address.
func (a Address) Short() string {
	const nBytes = 4
	return "0x" + hex.EncodeToString(a[:nBytes]) + "..." + hex.EncodeToString(a[AddressLength-nBytes:])
}

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// IsOnCurve reports whether the address is a valid ed25519 curve point,
// meaning a private key could exist for it. Derived storage cell
// addresses must be off curve. Point validation is treated as an opaque
// primitive: an address is on curve exactly when it decodes as a
// canonical edwards25519 point.
func (a Address) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
