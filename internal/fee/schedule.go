// Package fee implements fee assessment: consuming transfer-completed
// events, recording a fee per settled transfer exactly once, and emitting
// fee-assessed events for the ledger to collect.
package fee

import "github.com/pedrobono/BankMore/internal/domain"

// Schedule computes the fee owed for one settled transfer.
type Schedule interface {
	FeeFor(event TransferInfo) domain.Amount
}

// TransferInfo is the subset of a settled transfer a schedule may price on.
type TransferInfo struct {
	RequestID string
}

// DefaultFlatFee is the fee charged per transfer unless configured otherwise.
const DefaultFlatFee = domain.Amount("2.00")

// FlatSchedule charges the same fee for every transfer.
type FlatSchedule struct {
	Amount domain.Amount
}

// NewFlatSchedule creates a flat schedule; an empty amount falls back to
// DefaultFlatFee.
func NewFlatSchedule(amount domain.Amount) *FlatSchedule {
	if amount == "" {
		amount = DefaultFlatFee
	}
	return &FlatSchedule{Amount: amount}
}

// FeeFor returns the flat amount regardless of the transfer.
func (s *FlatSchedule) FeeFor(TransferInfo) domain.Amount {
	return s.Amount
}
