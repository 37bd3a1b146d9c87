// Copyright 2022 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package ledger

import (
	"errors"
	"fmt"

	"github.com/ChainSafe/delegation/lib/common"
)

var (
	// ErrCellOccupied is returned when creating a cell that already
	// holds data or belongs to a program.
	ErrCellOccupied = errors.New("cell is already allocated")
	// ErrFeeArguments is returned for an empty fee account list or a
	// fee percentage above 100.
	ErrFeeArguments = errors.New("invalid fee arguments")
)

// CreateCell allocates the target cell with the given data length and
// assigns it to the owner, funding it to its minimum rent-exempt
// balance from the payer. A target already holding lamports is only
// topped up to the missing amount.
func CreateCell(target *Account, owner common.Address, space int, payer *Account) error {
	l := target.ledger
	minimumBalance := l.rent.MinimumBalance(space)

	if target.Lamports() < minimumBalance {
		missing := minimumBalance - target.Lamports()
		if err := l.Transfer(payer, target, missing); err != nil {
			return fmt.Errorf("funding cell %s: %w", target.Key().Short(), err)
		}
	}

	if !target.DataIsEmpty() || target.Owner() != SystemOwner {
		return fmt.Errorf("%w: %s", ErrCellOccupied, target.Key().Short())
	}
	target.Resize(space)
	target.Assign(owner)
	return nil
}

// CloseCell empties the target cell, crediting its whole lamport
// balance to the destination and returning the cell to the system
// owner.
func CloseCell(target, destination *Account) error {
	sum, err := checkedAdd(destination.Lamports(), target.Lamports())
	if err != nil {
		return err
	}
	destination.SetLamports(sum)
	target.SetLamports(0)
	target.Assign(SystemOwner)
	target.Resize(0)
	return nil
}

// CloseCellWithFees closes the target cell, crediting its lamports to
// the destination after deducting a cascading fee split across the fee
// accounts: the first tier is feePercentage of the cell balance and
// every following tier is feePercentage of the previous tier's amount,
// so later accounts receive a compounding share rather than a
// proportional split of a fixed pool.
func CloseCellWithFees(target, destination *Account, feeAccounts []*Account, feePercentage uint8) error {
	if len(feeAccounts) == 0 || feePercentage > 100 {
		return fmt.Errorf("%w: %d fee accounts, fee percentage %d",
			ErrFeeArguments, len(feeAccounts), feePercentage)
	}

	initialLamports := target.Lamports()
	totalFee, err := checkedMul(initialLamports, uint64(feePercentage))
	if err != nil {
		return err
	}
	totalFee /= 100

	fees := make([]uint64, len(feeAccounts))
	tier := totalFee
	fees[0] = totalFee
	for i := 1; i < len(fees); i++ {
		tier, err = checkedMul(tier, uint64(feePercentage))
		if err != nil {
			return err
		}
		tier /= 100
		fees[i] = tier
	}
	// Every tier keeps its amount minus the next tier's, so the tiers
	// sum to the total fee.
	for i := 0; i < len(fees)-1; i++ {
		fees[i] -= fees[i+1]
	}

	for i, feeAccount := range feeAccounts {
		sum, err := checkedAdd(feeAccount.Lamports(), fees[i])
		if err != nil {
			return err
		}
		feeAccount.SetLamports(sum)
	}

	sum, err := checkedAdd(destination.Lamports(), initialLamports-totalFee)
	if err != nil {
		return err
	}
	destination.SetLamports(sum)
	target.SetLamports(0)
	target.Assign(SystemOwner)
	target.Resize(0)
	return nil
}
