package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/store"
)

var (
	// ErrNotFound means a referenced member, installment, loan, repayment,
	// or expense does not exist. Nothing is written.
	ErrNotFound = errors.New("record not found")

	// ErrValidation covers bad amounts: negative or zero where a positive
	// amount is required, or a repayment exceeding the loan's outstanding.
	ErrValidation = errors.New("invalid input")

	// ErrImmutableLoan guards loans that already carry repayments or
	// interest payments; their principal cannot be changed and they cannot
	// be deleted, since that history can no longer be reversed cleanly.
	ErrImmutableLoan = errors.New("loan has repayment history and is immutable")

	// ErrNoActiveMembers means a distribution was requested while every
	// member is paused. Distributing to nobody has no meaningful result,
	// so the whole event is rejected.
	ErrNoActiveMembers = errors.New("no active members to distribute across")
)

// notFound translates a store-level miss into the engine's error taxonomy.
func notFound(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return err
}

func validatePositive(name string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrValidation, name, amount)
	}
	return nil
}
