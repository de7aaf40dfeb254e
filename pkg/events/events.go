// Package events carries ledger change notifications between components
// that would otherwise need to poll the store.
package events

import (
	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

// PaymentRecorded is published after allocation entries are committed.
type PaymentRecorded struct {
	CounterpartyID uuid.UUID
	Strategy       string
	Entries        []*models.Transaction
	Remainder      decimal.Decimal
}

// RefundRecorded is published after a refund row is committed.
type RefundRecorded struct {
	CounterpartyID uuid.UUID
	Transaction    *models.Transaction
}

// TransactionChanged is published after a transaction is edited or deleted.
type TransactionChanged struct {
	CounterpartyID uuid.UUID
	InstrumentID   uuid.UUID
	TransactionID  uuid.UUID
	Deleted        bool
}

// InstrumentClosed is published when an instrument is closed, automatically or by hand.
type InstrumentClosed struct {
	CounterpartyID uuid.UUID
	InstrumentID   uuid.UUID
	Manual         bool
}

var (
	PaymentRecordedType    = TypeOf(PaymentRecorded{})
	RefundRecordedType     = TypeOf(RefundRecorded{})
	TransactionChangedType = TypeOf(TransactionChanged{})
	InstrumentClosedType   = TypeOf(InstrumentClosed{})
)
