package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CounterpartyKind string

const (
	CounterpartyCustomer     CounterpartyKind = "customer"
	CounterpartyMahajan      CounterpartyKind = "mahajan"
	CounterpartyBillCustomer CounterpartyKind = "bill_customer"
)

func (k CounterpartyKind) Valid() bool {
	switch k {
	case CounterpartyCustomer, CounterpartyMahajan, CounterpartyBillCustomer:
		return true
	}
	return false
}

type Counterparty struct {
	ID                uuid.UUID        `json:"id"`
	Kind              CounterpartyKind `json:"kind"`
	Name              string           `json:"name"`
	AdvancePayment    decimal.Decimal  `json:"advance_payment"`    // Credit balance, offsets outstanding at display time only
	OutstandingAmount decimal.Decimal  `json:"outstanding_amount"` // Cached aggregate, refreshed by the ledger
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type InstrumentKind string

const (
	InstrumentLoan InstrumentKind = "loan"
	InstrumentBill InstrumentKind = "bill"
)

func (k InstrumentKind) Valid() bool {
	return k == InstrumentLoan || k == InstrumentBill
}

// Accepts reports whether transactions of type t may be recorded against this kind of instrument.
// Payments and refunds belong to bills; allocation writes principal and interest rows on both kinds.
func (k InstrumentKind) Accepts(t TransactionType) bool {
	switch t {
	case TransactionTypePrincipal, TransactionTypeInterest, TransactionTypeMixed:
		return k.Valid()
	case TransactionTypePayment, TransactionTypeRefund:
		return k == InstrumentBill
	}
	return false
}

type InterestType string

const (
	InterestNone    InterestType = "none"
	InterestDaily   InterestType = "daily"
	InterestMonthly InterestType = "monthly"
)

func (t InterestType) Valid() bool {
	switch t {
	case InterestNone, InterestDaily, InterestMonthly:
		return true
	}
	return false
}

// BaseSource tells where an instrument's balance calculation starts from.
type BaseSource int

const (
	BaseSourcePrincipal BaseSource = iota // principal_amount
	BaseSourceSnapshot                    // total_outstanding stored at inception
)

// CreditInstrument is a loan or a bill. Both behave the same for balance and interest purposes.
type CreditInstrument struct {
	ID               uuid.UUID           `json:"id"`
	CounterpartyID   uuid.UUID           `json:"counterparty_id"`
	Kind             InstrumentKind      `json:"kind"`
	PrincipalAmount  decimal.Decimal     `json:"principal_amount"`
	ProcessingFee    decimal.NullDecimal `json:"processing_fee"`
	TotalOutstanding decimal.NullDecimal `json:"total_outstanding"` // Amount owed at inception including fees
	InterestRate     decimal.Decimal     `json:"interest_rate"`     // Percent per period
	InterestType     InterestType        `json:"interest_type"`
	InstrumentDate   time.Time           `json:"instrument_date"` // Accrual anchor, never changes after creation
	IsActive         bool                `json:"is_active"`
	Locked           bool                `json:"locked"`
	Version          int64               `json:"version"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// BaseAmount resolves the starting amount for balance calculation and reports which field it came from.
func (c *CreditInstrument) BaseAmount() (decimal.Decimal, BaseSource) {
	if c.TotalOutstanding.Valid {
		return c.TotalOutstanding.Decimal, BaseSourceSnapshot
	}
	return c.PrincipalAmount, BaseSourcePrincipal
}

// Open reports whether the instrument still accepts payments and edits.
func (c *CreditInstrument) Open() bool {
	return c.IsActive && !c.Locked
}

type TransactionType string

const (
	TransactionTypePrincipal TransactionType = "principal"
	TransactionTypeInterest  TransactionType = "interest"
	TransactionTypeMixed     TransactionType = "mixed"
	TransactionTypePayment   TransactionType = "payment" // Sales paid by a bill-customer
	TransactionTypeRefund    TransactionType = "refund"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypePrincipal, TransactionTypeInterest, TransactionTypeMixed, TransactionTypePayment, TransactionTypeRefund:
		return true
	}
	return false
}

type PaymentMode string

const (
	PaymentModeCash PaymentMode = "cash"
	PaymentModeBank PaymentMode = "bank"
)

func (m PaymentMode) Valid() bool {
	return m == PaymentModeCash || m == PaymentModeBank
}

type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	InstrumentID    uuid.UUID       `json:"instrument_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType TransactionType `json:"transaction_type"`
	PaymentMode     PaymentMode     `json:"payment_mode"`
	PaymentDate     time.Time       `json:"payment_date"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransactionInsert is a transaction row that has been computed but not yet persisted.
type TransactionInsert struct {
	InstrumentID    uuid.UUID       `json:"instrument_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType TransactionType `json:"transaction_type"`
	PaymentMode     PaymentMode     `json:"payment_mode"`
	PaymentDate     time.Time       `json:"payment_date"`
	Notes           string          `json:"notes,omitempty"`
}

// Transaction materialises the insert with a fresh ID.
func (ti TransactionInsert) Transaction(now time.Time) *Transaction {
	return &Transaction{
		ID:              uuid.New(),
		InstrumentID:    ti.InstrumentID,
		Amount:          ti.Amount,
		TransactionType: ti.TransactionType,
		PaymentMode:     ti.PaymentMode,
		PaymentDate:     ti.PaymentDate,
		Notes:           ti.Notes,
		CreatedAt:       now,
	}
}
