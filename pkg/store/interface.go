package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict is returned when an instrument changed since it was read.
	ErrVersionConflict = errors.New("store: instrument version conflict")
	// ErrInstrumentNotOpen is returned when writing transactions against a closed or locked instrument.
	ErrInstrumentNotOpen = errors.New("store: instrument not open")
	// ErrInstrumentHasTransactions is returned when deleting an instrument that has transactions.
	ErrInstrumentHasTransactions = errors.New("store: instrument has transactions")
)

// InstrumentGuard pins an instrument at the version it was read at. Writes carrying a guard
// fail with ErrVersionConflict if another writer got there first, and bump the version on success.
type InstrumentGuard struct {
	ID      uuid.UUID
	Version int64
	// Reopen lets the write land on a closed instrument and marks it active again.
	Reopen bool
}

// Guard returns the guard for an instrument as currently loaded.
func Guard(inst *models.CreditInstrument) InstrumentGuard {
	return InstrumentGuard{ID: inst.ID, Version: inst.Version}
}

// AdvanceCredit adds Amount to a counterparty's advance payment.
type AdvanceCredit struct {
	CounterpartyID uuid.UUID
	Amount         decimal.Decimal
}

// Storage defines the persistence operations the ledger needs.
type Storage interface {
	CreateCounterparty(ctx context.Context, cp *models.Counterparty) error
	GetCounterparty(ctx context.Context, id uuid.UUID) (*models.Counterparty, error)
	ListCounterparties(ctx context.Context, kind models.CounterpartyKind) ([]*models.Counterparty, error)
	SetCounterpartyOutstanding(ctx context.Context, id uuid.UUID, outstanding decimal.Decimal) error

	CreateInstrument(ctx context.Context, inst *models.CreditInstrument) error
	GetInstrument(ctx context.Context, id uuid.UUID) (*models.CreditInstrument, error)
	ListInstrumentsForCounterparty(ctx context.Context, counterpartyID uuid.UUID) ([]*models.CreditInstrument, error)
	ListActiveInstruments(ctx context.Context) ([]*models.CreditInstrument, error)
	UpdateInstrument(ctx context.Context, inst *models.CreditInstrument) error
	DeleteInstrument(ctx context.Context, id uuid.UUID) error

	CommitTransactions(ctx context.Context, txs []*models.Transaction, guards []InstrumentGuard) error
	CommitCollection(ctx context.Context, txs []*models.Transaction, guards []InstrumentGuard, credit AdvanceCredit) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactionsForInstrument(ctx context.Context, instrumentID uuid.UUID) ([]*models.Transaction, error)
	ListTransactionsForCounterparty(ctx context.Context, counterpartyID uuid.UUID) ([]*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction, guard InstrumentGuard) error
	DeleteTransaction(ctx context.Context, id uuid.UUID, guard InstrumentGuard) error

	Close() error
}
