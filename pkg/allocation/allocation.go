// Package allocation splits a payment into interest and principal transaction rows
// across one or more credit instruments.
package allocation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/accrual"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned when the payment amount is not positive.
	ErrInvalidAmount = errors.New("allocation: invalid amount")
	// ErrNoOutstandingBalance is returned when no candidate instrument has anything owed.
	ErrNoOutstandingBalance = errors.New("allocation: no outstanding balance")
	// ErrInstrumentLocked is returned when a targeted instrument is locked.
	ErrInstrumentLocked = errors.New("allocation: instrument locked")
	// ErrInstrumentClosed is returned when a targeted instrument is closed.
	ErrInstrumentClosed = errors.New("allocation: instrument closed")
	// ErrSingleInstrument is returned when the single strategy gets zero or several instruments.
	ErrSingleInstrument = errors.New("allocation: exactly one instrument required")
	// ErrUnknownStrategy is returned by ByName.
	ErrUnknownStrategy = errors.New("allocation: unknown strategy")
)

const (
	StrategySequential = "sequential"
	StrategySingle     = "single"
)

// Payment is a single amount received from a counterparty.
type Payment struct {
	Amount decimal.Decimal
	Mode   models.PaymentMode
	Date   time.Time
	Notes  string
}

// Result holds the rows to insert and whatever could not be placed.
type Result struct {
	Strategy  string                     `json:"strategy"`
	Entries   []models.TransactionInsert `json:"entries"`
	Remainder decimal.Decimal            `json:"remainder"`
}

// Allocated sums the entry amounts.
func (r *Result) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// HasExcess reports an unallocated remainder. It is informational, not a failure.
func (r *Result) HasExcess() bool {
	return r.Remainder.IsPositive()
}

// InstrumentIDs lists the instruments touched by the entries, in entry order.
func (r *Result) InstrumentIDs() []uuid.UUID {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, e := range r.Entries {
		if !seen[e.InstrumentID] {
			seen[e.InstrumentID] = true
			ids = append(ids, e.InstrumentID)
		}
	}
	return ids
}

// Strategy distributes a payment across instruments. Implementations are pure and
// never change instrument state.
type Strategy interface {
	Name() string
	Allocate(p Payment, instruments []*models.CreditInstrument, txs map[uuid.UUID][]*models.Transaction) (*Result, error)
}

// ByName returns the named strategy backed by calc.
func ByName(name string, calc *accrual.Calculator) (Strategy, error) {
	switch name {
	case StrategySequential:
		return NewSequential(calc), nil
	case StrategySingle:
		return NewSingle(calc), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// due is the positive interest and balance still owed on one instrument.
type due struct {
	inst     *models.CreditInstrument
	interest decimal.Decimal
	balance  decimal.Decimal
}

func dueFor(calc *accrual.Calculator, inst *models.CreditInstrument, txs []*models.Transaction) (due, accrual.Outstanding) {
	out := calc.ComputeOutstanding(inst, txs)
	return due{
		inst:     inst,
		interest: positive(accrual.Cents(out.Interest)),
		balance:  positive(out.Balance),
	}, out
}

func positive(d decimal.Decimal) decimal.Decimal {
	if d.IsPositive() {
		return d
	}
	return decimal.Zero
}

func entry(p Payment, instID uuid.UUID, amount decimal.Decimal, typ models.TransactionType) models.TransactionInsert {
	return models.TransactionInsert{
		InstrumentID:    instID,
		Amount:          amount,
		TransactionType: typ,
		PaymentMode:     p.Mode,
		PaymentDate:     p.Date,
		Notes:           p.Notes,
	}
}
