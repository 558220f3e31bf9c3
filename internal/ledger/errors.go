package ledger

import "errors"

var (
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnknownInstrument is returned when a symbol is not in the active universe.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrInvalidQuantity is returned for non-positive amounts, for amounts
	// too small to buy any units and for fractional equity share counts.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrNoPosition is returned when selling a symbol the account does not hold.
	ErrNoPosition = errors.New("no position")
	// ErrBelowMinimum is returned for withdrawals under the configured minimum.
	ErrBelowMinimum = errors.New("below minimum withdrawal")
)
