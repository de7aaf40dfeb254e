package allocation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/accrual"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

// Sequential spreads one payment over every open instrument of a counterparty,
// oldest instrument first, paying each instrument's interest before its principal.
type Sequential struct {
	calc *accrual.Calculator
}

func NewSequential(calc *accrual.Calculator) *Sequential {
	return &Sequential{calc: calc}
}

func (s *Sequential) Name() string { return StrategySequential }

// Allocate places as much of the payment as the instruments can absorb. Inactive and
// locked instruments are skipped. Whatever is left over comes back in Result.Remainder.
func (s *Sequential) Allocate(p Payment, instruments []*models.CreditInstrument, txs map[uuid.UUID][]*models.Transaction) (*Result, error) {
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var queue []due
	for _, inst := range instruments {
		if inst == nil || !inst.Open() {
			continue
		}
		d, out := dueFor(s.calc, inst, txs[inst.ID])
		if out.Closed() {
			continue
		}
		if d.interest.Add(d.balance).IsZero() {
			continue
		}
		queue = append(queue, d)
	}
	if len(queue) == 0 {
		return nil, ErrNoOutstandingBalance
	}

	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i].inst, queue[j].inst
		if !a.InstrumentDate.Equal(b.InstrumentDate) {
			return a.InstrumentDate.Before(b.InstrumentDate)
		}
		return a.ID.String() < b.ID.String()
	})

	res := &Result{Strategy: s.Name()}
	remainder := p.Amount
	for _, d := range queue {
		if !remainder.IsPositive() {
			break
		}
		if d.interest.IsPositive() {
			part := decimal.Min(remainder, d.interest)
			res.Entries = append(res.Entries, entry(p, d.inst.ID, part, models.TransactionTypeInterest))
			remainder = remainder.Sub(part)
		}
		if d.balance.IsPositive() && remainder.IsPositive() {
			part := decimal.Min(remainder, d.balance)
			res.Entries = append(res.Entries, entry(p, d.inst.ID, part, models.TransactionTypePrincipal))
			remainder = remainder.Sub(part)
		}
	}
	res.Remainder = remainder
	return res, nil
}
