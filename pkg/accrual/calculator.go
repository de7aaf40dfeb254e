// Package accrual derives the balance and accrued interest of a credit instrument
// from its transaction history. Nothing here is stored: every figure is recomputed
// from the instrument, its transactions and the current time.
package accrual

import (
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	percentDaysInYear  = decimal.NewFromInt(100 * 365)
	percentDaysInMonth = decimal.NewFromInt(100 * daysInMonth)
)

// Outstanding is what a counterparty owes on one instrument at a point in time.
type Outstanding struct {
	Balance          decimal.Decimal `json:"balance"`
	Interest         decimal.Decimal `json:"interest"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	// Indeterminate is set when interest applies but the instrument has no usable date.
	Indeterminate bool `json:"indeterminate,omitempty"`
}

// Closed reports whether nothing is owed any more.
func (o Outstanding) Closed() bool {
	return o.TotalOutstanding.LessThanOrEqual(decimal.Zero)
}

// Calculator computes outstanding amounts against a clock.
type Calculator struct {
	clock Clock
}

// NewCalculator creates a Calculator. A nil clock falls back to the local system clock.
func NewCalculator(clock Clock) *Calculator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Calculator{clock: clock}
}

// Clock returns the clock the calculator accrues against.
func (c *Calculator) Clock() Clock {
	return c.clock
}

// ComputeOutstanding returns the instrument's balance, accrued interest and their sum as of now.
// Transactions that belong to other instruments are ignored.
func (c *Calculator) ComputeOutstanding(inst *models.CreditInstrument, txs []*models.Transaction) Outstanding {
	paid, refunded := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if tx == nil || tx.InstrumentID != inst.ID {
			continue
		}
		switch tx.TransactionType {
		case models.TransactionTypePrincipal, models.TransactionTypePayment:
			paid = paid.Add(tx.Amount)
		case models.TransactionTypeRefund:
			refunded = refunded.Add(tx.Amount)
		}
	}

	base, _ := inst.BaseAmount()
	out := Outstanding{Balance: base.Sub(paid).Add(refunded), Interest: decimal.Zero}

	if inst.InterestRate.IsZero() || inst.InterestType == models.InterestNone {
		out.TotalOutstanding = out.Balance
		return out
	}
	if inst.InstrumentDate.IsZero() {
		out.Indeterminate = true
		out.TotalOutstanding = out.Balance
		return out
	}

	now := c.clock.Now()
	switch inst.InterestType {
	case models.InterestDaily:
		days := ElapsedDays(inst, now)
		out.Interest = out.Balance.Mul(inst.InterestRate).Mul(decimal.NewFromInt(days)).Div(percentDaysInYear)
	case models.InterestMonthly:
		// whole months plus (day difference / 30), kept as a count of 30ths to stay exact
		thirtieths := ElapsedThirtieths(inst, now)
		out.Interest = out.Balance.Mul(inst.InterestRate).Mul(decimal.NewFromInt(thirtieths)).Div(percentDaysInMonth)
	}
	out.TotalOutstanding = out.Balance.Add(out.Interest)
	return out
}
