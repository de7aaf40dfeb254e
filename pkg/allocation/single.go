package allocation

import (
	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/accrual"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

// Single splits a payment on one chosen instrument into an interest part and a principal part.
// The caller is expected to have checked the amount against what is owed.
type Single struct {
	calc *accrual.Calculator
}

func NewSingle(calc *accrual.Calculator) *Single {
	return &Single{calc: calc}
}

func (s *Single) Name() string { return StrategySingle }

func (s *Single) Allocate(p Payment, instruments []*models.CreditInstrument, txs map[uuid.UUID][]*models.Transaction) (*Result, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len(instruments) != 1 || instruments[0] == nil {
		return nil, ErrSingleInstrument
	}
	inst := instruments[0]
	if inst.Locked {
		return nil, ErrInstrumentLocked
	}
	if !inst.IsActive {
		return nil, ErrInstrumentClosed
	}

	d, out := dueFor(s.calc, inst, txs[inst.ID])
	if out.Closed() {
		return nil, ErrInstrumentClosed
	}

	interestPortion := decimal.Min(p.Amount, d.interest)
	principalPortion := p.Amount.Sub(interestPortion)

	res := &Result{Strategy: s.Name(), Remainder: decimal.Zero}
	if interestPortion.IsPositive() {
		res.Entries = append(res.Entries, entry(p, inst.ID, interestPortion, models.TransactionTypeInterest))
	}
	if principalPortion.IsPositive() {
		res.Entries = append(res.Entries, entry(p, inst.ID, principalPortion, models.TransactionTypePrincipal))
	}
	return res, nil
}
