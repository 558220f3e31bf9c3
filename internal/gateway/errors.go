package gateway

import (
	"errors"
	"net/http"

	"tradesim/internal/account"
	"tradesim/internal/ledger"
	"tradesim/internal/model"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrBelowMinimum):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnknownInstrument), errors.Is(err, model.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNoPosition), errors.Is(err, account.ErrAccountExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
