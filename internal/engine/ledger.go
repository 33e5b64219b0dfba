package engine

import (
	"errors"
	"fmt"
)

// ErrInsufficientFunds is the expected failure of a reserve call. It is a
// routine rejection, not a bug.
var ErrInsufficientFunds = errors.New("insufficient available capital")

// ErrInvariant marks bookkeeping violations. These are bug-class failures:
// the affected portfolio halts and the mutation is never persisted.
var ErrInvariant = errors.New("portfolio invariant violated")

// committedTolerance absorbs float residue when partial-exit cost bases are
// summed back out of the committed total.
const committedTolerance = 1e-6

// capitalLedger tracks available vs committed capital for one portfolio.
// available never goes negative; committed is derivable from the open
// positions but tracked here so the conservation invariant is checkable.
type capitalLedger struct {
	initial   float64
	available float64
	committed float64
}

func newCapitalLedger(initial float64) *capitalLedger {
	return &capitalLedger{initial: initial, available: initial}
}

func restoreCapitalLedger(initial, available, committed float64) *capitalLedger {
	return &capitalLedger{initial: initial, available: available, committed: committed}
}

// reserve debits available capital for a new entry. Fails with
// ErrInsufficientFunds when amount exceeds available; capital is untouched
// on failure.
func (l *capitalLedger) reserve(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: reserve of non-positive amount %.2f", ErrInvariant, amount)
	}
	if amount > l.available {
		return ErrInsufficientFunds
	}
	l.available -= amount
	l.committed += amount
	// IEEE subtraction of b <= a cannot go below zero, so a negative here
	// means the ledger was corrupted before this call.
	if l.available < 0 {
		return fmt.Errorf("%w: available capital %.4f negative after reserve", ErrInvariant, l.available)
	}
	return nil
}

// release credits sale proceeds and retires the entry cost of the shares
// sold. Proceeds may exceed the cost basis on a profitable exit.
func (l *capitalLedger) release(proceeds, costBasis float64) error {
	if proceeds < 0 || costBasis < 0 {
		return fmt.Errorf("%w: release(%.2f, %.2f) with negative argument", ErrInvariant, proceeds, costBasis)
	}
	l.available += proceeds
	l.committed -= costBasis
	if l.committed < -committedTolerance {
		return fmt.Errorf("%w: committed capital %.4f negative after release", ErrInvariant, l.committed)
	}
	return nil
}
