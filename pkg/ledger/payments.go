package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/accrual"
	"github.com/mcclellann/lendbook/pkg/allocation"
	"github.com/mcclellann/lendbook/pkg/events"
	"github.com/mcclellann/lendbook/pkg/metrics"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/mcclellann/lendbook/pkg/store"
	"github.com/shopspring/decimal"
)

// PaymentInput is an amount received, or refunded, on a given day.
type PaymentInput struct {
	Amount decimal.Decimal
	Mode   models.PaymentMode
	Date   time.Time
	Notes  string
}

// Receipt reports what a payment turned into.
type Receipt struct {
	Strategy     string                `json:"strategy"`
	Transactions []*models.Transaction `json:"transactions"`
	// Remainder is the part of a collection no instrument could absorb.
	Remainder         decimal.Decimal `json:"remainder"`
	CreditedToAdvance decimal.Decimal `json:"credited_to_advance"`
	Closed            []uuid.UUID     `json:"closed_instruments"`
}

func (l *Ledger) payment(in PaymentInput) (allocation.Payment, error) {
	if !in.Amount.IsPositive() {
		return allocation.Payment{}, allocation.ErrInvalidAmount
	}
	if in.Mode == "" {
		in.Mode = models.PaymentModeCash
	}
	if !in.Mode.Valid() {
		return allocation.Payment{}, invalid("unknown payment mode %q", in.Mode)
	}
	if in.Date.IsZero() {
		in.Date = l.now()
	}
	return allocation.Payment{Amount: in.Amount, Mode: in.Mode, Date: in.Date, Notes: in.Notes}, nil
}

func paymentResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrOverpayment),
		errors.Is(err, allocation.ErrInvalidAmount), errors.Is(err, allocation.ErrNoOutstandingBalance),
		errors.Is(err, allocation.ErrInstrumentLocked), errors.Is(err, allocation.ErrInstrumentClosed),
		errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrInstrumentNotOpen):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

// RecordPayment records a payment against one instrument, interest first. The amount may not
// exceed what is owed, rounded to cents.
func (l *Ledger) RecordPayment(ctx context.Context, instrumentID uuid.UUID, in PaymentInput) (receipt *Receipt, err error) {
	start := time.Now()
	defer func() { metrics.ObservePayment(l.single.Name(), paymentResult(err), time.Since(start)) }()

	p, err := l.payment(in)
	if err != nil {
		return nil, err
	}
	inst, err := l.storage.GetInstrument(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	txs, err := l.storage.ListTransactionsForInstrument(ctx, instrumentID)
	if err != nil {
		return nil, err
	}

	res, err := l.single.Allocate(p, []*models.CreditInstrument{inst}, map[uuid.UUID][]*models.Transaction{inst.ID: txs})
	if err != nil {
		return nil, err
	}
	owed := accrual.Cents(l.calc.ComputeOutstanding(inst, txs).TotalOutstanding)
	if p.Amount.GreaterThan(owed) {
		return nil, fmt.Errorf("%w: %s owed, %s offered", ErrOverpayment, owed.StringFixed(2), p.Amount.StringFixed(2))
	}

	return l.commit(ctx, inst.CounterpartyID, res, []*models.CreditInstrument{inst}, nil)
}

// CollectPayment spreads one payment over all of a counterparty's open instruments, oldest first.
// Whatever is left over is reported and, when configured, credited to the advance payment.
func (l *Ledger) CollectPayment(ctx context.Context, counterpartyID uuid.UUID, in PaymentInput) (receipt *Receipt, err error) {
	start := time.Now()
	defer func() { metrics.ObservePayment(l.sequential.Name(), paymentResult(err), time.Since(start)) }()

	p, err := l.payment(in)
	if err != nil {
		return nil, err
	}
	if _, err := l.storage.GetCounterparty(ctx, counterpartyID); err != nil {
		return nil, err
	}
	insts, txs, err := l.loadCounterparty(ctx, counterpartyID)
	if err != nil {
		return nil, err
	}

	res, err := l.sequential.Allocate(p, insts, txs)
	if err != nil {
		return nil, err
	}
	if len(res.Entries) == 0 {
		return nil, allocation.ErrNoOutstandingBalance
	}

	var credit *store.AdvanceCredit
	if res.HasExcess() && l.creditExcessToAdvance {
		credit = &store.AdvanceCredit{CounterpartyID: counterpartyID, Amount: res.Remainder}
	}
	receipt, err = l.commit(ctx, counterpartyID, res, insts, credit)
	if err != nil {
		return nil, err
	}

	if res.HasExcess() {
		metrics.IncAllocationExcess()
		l.logger.Printf("Payment for counterparty %s left %s unallocated", counterpartyID, res.Remainder.StringFixed(2))
	}
	return receipt, nil
}

// commit writes the allocation entries, and the advance credit if any, in one guarded batch,
// then closes settled instruments and announces the payment.
func (l *Ledger) commit(ctx context.Context, counterpartyID uuid.UUID, res *allocation.Result, insts []*models.CreditInstrument, credit *store.AdvanceCredit) (*Receipt, error) {
	touched := res.InstrumentIDs()
	byID := make(map[uuid.UUID]*models.CreditInstrument, len(insts))
	for _, inst := range insts {
		byID[inst.ID] = inst
	}
	guards := make([]store.InstrumentGuard, 0, len(touched))
	for _, id := range touched {
		guards = append(guards, store.Guard(byID[id]))
	}

	now := l.now()
	rows := make([]*models.Transaction, 0, len(res.Entries))
	for _, e := range res.Entries {
		rows = append(rows, e.Transaction(now))
	}
	credited := decimal.Zero
	if credit != nil {
		if err := l.storage.CommitCollection(ctx, rows, guards, *credit); err != nil {
			return nil, fmt.Errorf("failed to store payment: %w", err)
		}
		credited = credit.Amount
	} else if err := l.storage.CommitTransactions(ctx, rows, guards); err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}
	for _, row := range rows {
		metrics.IncAllocationEntry(string(row.TransactionType))
	}

	receipt := &Receipt{
		Strategy:          res.Strategy,
		Transactions:      rows,
		Remainder:         res.Remainder,
		CreditedToAdvance: credited,
		Closed:            l.syncClosure(ctx, touched),
	}
	l.publish(ctx, events.PaymentRecorded{
		CounterpartyID: counterpartyID,
		Strategy:       res.Strategy,
		Entries:        rows,
		Remainder:      res.Remainder,
	})
	return receipt, nil
}

// RecordRefund records money handed back on a bill. A bill closed by overpayment is reopened
// in the same commit as the refund and closed again if it is still settled afterwards.
func (l *Ledger) RecordRefund(ctx context.Context, instrumentID uuid.UUID, in PaymentInput) (*models.Transaction, error) {
	p, err := l.payment(in)
	if err != nil {
		return nil, err
	}
	inst, err := l.storage.GetInstrument(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	if inst.Kind != models.InstrumentBill {
		return nil, ErrNotRefundable
	}
	if inst.Locked {
		return nil, allocation.ErrInstrumentLocked
	}
	guard := store.Guard(inst)
	guard.Reopen = !inst.IsActive

	refund := models.TransactionInsert{
		InstrumentID:    inst.ID,
		Amount:          p.Amount,
		TransactionType: models.TransactionTypeRefund,
		PaymentMode:     p.Mode,
		PaymentDate:     p.Date,
		Notes:           p.Notes,
	}.Transaction(l.now())
	if err := l.storage.CommitTransactions(ctx, []*models.Transaction{refund}, []store.InstrumentGuard{guard}); err != nil {
		return nil, fmt.Errorf("failed to store refund: %w", err)
	}

	l.syncClosure(ctx, []uuid.UUID{inst.ID})
	l.publish(ctx, events.RefundRecorded{CounterpartyID: inst.CounterpartyID, Transaction: refund})
	return refund, nil
}

// TransactionUpdate holds the editable fields of a recorded transaction.
type TransactionUpdate struct {
	Amount          decimal.Decimal
	TransactionType models.TransactionType
	PaymentMode     models.PaymentMode
	PaymentDate     time.Time
	Notes           string
}

// UpdateTransaction edits a transaction while its instrument is open. Zero-valued fields other
// than Notes keep their recorded value.
func (l *Ledger) UpdateTransaction(ctx context.Context, id uuid.UUID, upd TransactionUpdate) (*models.Transaction, error) {
	tx, err := l.storage.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	inst, err := l.storage.GetInstrument(ctx, tx.InstrumentID)
	if err != nil {
		return nil, err
	}
	if err := requireOpen(inst); err != nil {
		return nil, err
	}

	if !upd.Amount.IsZero() {
		if upd.Amount.IsNegative() {
			return nil, allocation.ErrInvalidAmount
		}
		tx.Amount = upd.Amount
	}
	if upd.TransactionType != "" {
		if !upd.TransactionType.Valid() {
			return nil, invalid("unknown transaction type %q", upd.TransactionType)
		}
		if !inst.Kind.Accepts(upd.TransactionType) {
			if upd.TransactionType == models.TransactionTypeRefund {
				return nil, ErrNotRefundable
			}
			return nil, invalid("%s transactions cannot be recorded on a %s", upd.TransactionType, inst.Kind)
		}
		tx.TransactionType = upd.TransactionType
	}
	if upd.PaymentMode != "" {
		if !upd.PaymentMode.Valid() {
			return nil, invalid("unknown payment mode %q", upd.PaymentMode)
		}
		tx.PaymentMode = upd.PaymentMode
	}
	if !upd.PaymentDate.IsZero() {
		tx.PaymentDate = upd.PaymentDate
	}
	tx.Notes = upd.Notes

	if err := l.storage.UpdateTransaction(ctx, tx, store.Guard(inst)); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	l.syncClosure(ctx, []uuid.UUID{inst.ID})
	l.publish(ctx, events.TransactionChanged{CounterpartyID: inst.CounterpartyID, InstrumentID: inst.ID, TransactionID: tx.ID})
	return tx, nil
}

// DeleteTransaction removes a transaction while its instrument is open.
func (l *Ledger) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	tx, err := l.storage.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	inst, err := l.storage.GetInstrument(ctx, tx.InstrumentID)
	if err != nil {
		return err
	}
	if err := requireOpen(inst); err != nil {
		return err
	}
	if err := l.storage.DeleteTransaction(ctx, id, store.Guard(inst)); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	l.syncClosure(ctx, []uuid.UUID{inst.ID})
	l.publish(ctx, events.TransactionChanged{CounterpartyID: inst.CounterpartyID, InstrumentID: inst.ID, TransactionID: id, Deleted: true})
	return nil
}
