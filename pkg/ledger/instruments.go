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

// InstrumentInput holds the fields a caller supplies for a new loan or bill.
type InstrumentInput struct {
	CounterpartyID   uuid.UUID
	Kind             models.InstrumentKind
	PrincipalAmount  decimal.Decimal
	ProcessingFee    decimal.NullDecimal
	TotalOutstanding decimal.NullDecimal
	InterestRate     decimal.Decimal
	InterestType     models.InterestType
	InstrumentDate   time.Time
}

// InstrumentView is an instrument together with what is owed on it right now.
type InstrumentView struct {
	Instrument   *models.CreditInstrument `json:"instrument"`
	Outstanding  accrual.Outstanding      `json:"outstanding"`
	Closed       bool                     `json:"closed"`
	Transactions []*models.Transaction    `json:"transactions"`
}

func (l *Ledger) view(inst *models.CreditInstrument, txs []*models.Transaction) InstrumentView {
	out := l.calc.ComputeOutstanding(inst, txs)
	if txs == nil {
		txs = []*models.Transaction{}
	}
	return InstrumentView{
		Instrument:   inst,
		Outstanding:  out,
		Closed:       !inst.IsActive || out.Closed(),
		Transactions: txs,
	}
}

// CreateInstrument opens a new loan or bill for an existing counterparty. When a processing fee
// is given without an inception snapshot, the snapshot becomes principal plus fee.
func (l *Ledger) CreateInstrument(ctx context.Context, in InstrumentInput) (*models.CreditInstrument, error) {
	if !in.Kind.Valid() {
		return nil, invalid("unknown instrument kind %q", in.Kind)
	}
	if in.InterestType == "" {
		in.InterestType = models.InterestNone
	}
	if !in.InterestType.Valid() {
		return nil, invalid("unknown interest type %q", in.InterestType)
	}
	if in.PrincipalAmount.IsNegative() {
		return nil, invalid("principal amount must not be negative")
	}
	if in.ProcessingFee.Valid && in.ProcessingFee.Decimal.IsNegative() {
		return nil, invalid("processing fee must not be negative")
	}
	if in.TotalOutstanding.Valid && in.TotalOutstanding.Decimal.IsNegative() {
		return nil, invalid("total outstanding must not be negative")
	}
	if in.InterestRate.IsNegative() {
		return nil, invalid("interest rate must not be negative")
	}
	if _, err := l.storage.GetCounterparty(ctx, in.CounterpartyID); err != nil {
		return nil, err
	}

	now := l.now()
	if in.InstrumentDate.IsZero() {
		in.InstrumentDate = now
	}
	if in.ProcessingFee.Valid && !in.TotalOutstanding.Valid {
		in.TotalOutstanding = decimal.NewNullDecimal(in.PrincipalAmount.Add(in.ProcessingFee.Decimal))
	}

	inst := &models.CreditInstrument{
		ID:               uuid.New(),
		CounterpartyID:   in.CounterpartyID,
		Kind:             in.Kind,
		PrincipalAmount:  in.PrincipalAmount,
		ProcessingFee:    in.ProcessingFee,
		TotalOutstanding: in.TotalOutstanding,
		InterestRate:     in.InterestRate,
		InterestType:     in.InterestType,
		InstrumentDate:   in.InstrumentDate,
		IsActive:         true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := l.storage.CreateInstrument(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to store instrument: %w", err)
	}

	if err := l.refreshAggregate(ctx, inst.CounterpartyID); err != nil {
		l.logger.Printf("Error refreshing outstanding for counterparty %s: %v", inst.CounterpartyID, err)
	}
	return inst, nil
}

// GetInstrument returns an instrument with its transactions and current outstanding amount.
func (l *Ledger) GetInstrument(ctx context.Context, id uuid.UUID) (*InstrumentView, error) {
	inst, err := l.storage.GetInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	txs, err := l.storage.ListTransactionsForInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	v := l.view(inst, txs)
	return &v, nil
}

// DeleteInstrument removes an open, unlocked instrument that has no transactions.
func (l *Ledger) DeleteInstrument(ctx context.Context, id uuid.UUID) error {
	inst, err := l.storage.GetInstrument(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOpen(inst); err != nil {
		return err
	}
	if err := l.storage.DeleteInstrument(ctx, id); err != nil {
		return err
	}
	if err := l.refreshAggregate(ctx, inst.CounterpartyID); err != nil {
		l.logger.Printf("Error refreshing outstanding for counterparty %s: %v", inst.CounterpartyID, err)
	}
	return nil
}

// SetLocked locks or unlocks an instrument. Locked instruments reject payments and edits.
func (l *Ledger) SetLocked(ctx context.Context, id uuid.UUID, locked bool) (*models.CreditInstrument, error) {
	inst, err := l.storage.GetInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst.Locked == locked {
		return inst, nil
	}
	inst.Locked = locked
	inst.UpdatedAt = l.now()
	if err := l.storage.UpdateInstrument(ctx, inst); err != nil {
		return nil, fmt.Errorf("failed to update instrument: %w", err)
	}
	return inst, nil
}

// CloseInstrument closes an instrument by hand, whatever is still owed on it.
func (l *Ledger) CloseInstrument(ctx context.Context, id uuid.UUID) (*models.CreditInstrument, error) {
	inst, err := l.storage.GetInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.IsActive {
		return inst, nil
	}
	if inst.Locked {
		return nil, allocation.ErrInstrumentLocked
	}
	if err := l.deactivate(ctx, inst, true); err != nil {
		return nil, err
	}
	if err := l.refreshAggregate(ctx, inst.CounterpartyID); err != nil {
		l.logger.Printf("Error refreshing outstanding for counterparty %s: %v", inst.CounterpartyID, err)
	}
	return inst, nil
}

func (l *Ledger) deactivate(ctx context.Context, inst *models.CreditInstrument, manual bool) error {
	inst.IsActive = false
	inst.UpdatedAt = l.now()
	if err := l.storage.UpdateInstrument(ctx, inst); err != nil {
		inst.IsActive = true
		return fmt.Errorf("failed to close instrument %s: %w", inst.ID, err)
	}
	metrics.IncInstrumentClosed()
	l.publish(ctx, events.InstrumentClosed{CounterpartyID: inst.CounterpartyID, InstrumentID: inst.ID, Manual: manual})
	return nil
}

// closeIfSettled closes an active instrument once nothing is owed on it.
func (l *Ledger) closeIfSettled(ctx context.Context, inst *models.CreditInstrument, txs []*models.Transaction) (bool, error) {
	if !inst.IsActive {
		return false, nil
	}
	if !l.calc.ComputeOutstanding(inst, txs).Closed() {
		return false, nil
	}
	if err := l.deactivate(ctx, inst, false); err != nil {
		return false, err
	}
	l.logger.Printf("Closed settled instrument %s for counterparty %s", inst.ID, inst.CounterpartyID)
	return true, nil
}

// syncClosure re-reads the given instruments after a commit and closes the settled ones.
// A version conflict means another writer got there first; the sweep picks it up later.
func (l *Ledger) syncClosure(ctx context.Context, ids []uuid.UUID) []uuid.UUID {
	var closed []uuid.UUID
	for _, id := range ids {
		inst, err := l.storage.GetInstrument(ctx, id)
		if err != nil {
			l.logger.Printf("Error reloading instrument %s: %v", id, err)
			continue
		}
		txs, err := l.storage.ListTransactionsForInstrument(ctx, id)
		if err != nil {
			l.logger.Printf("Error loading transactions for instrument %s: %v", id, err)
			continue
		}
		ok, err := l.closeIfSettled(ctx, inst, txs)
		if err != nil {
			if !errors.Is(err, store.ErrVersionConflict) {
				l.logger.Printf("Error closing instrument %s: %v", id, err)
			}
			continue
		}
		if ok {
			closed = append(closed, id)
		}
	}
	return closed
}

// requireOpen rejects edits against locked or closed instruments.
func requireOpen(inst *models.CreditInstrument) error {
	if inst.Locked {
		return allocation.ErrInstrumentLocked
	}
	if !inst.IsActive {
		return allocation.ErrInstrumentClosed
	}
	return nil
}
