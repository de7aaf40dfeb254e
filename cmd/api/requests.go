package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/ledger"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

// newValidator returns a validator that compares decimal fields numerically, so gt=0 and
// gte=0 work on amounts.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// decode reads a JSON body into req and validates it.
func (s *Server) decode(r *http.Request, req interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidInput, err)
	}
	return nil
}

type createCounterpartyRequest struct {
	Kind           string          `json:"kind" validate:"required,oneof=customer mahajan bill_customer"`
	Name           string          `json:"name" validate:"required,max=200"`
	AdvancePayment decimal.Decimal `json:"advance_payment" validate:"gte=0"`
}

func (req createCounterpartyRequest) input() ledger.CounterpartyInput {
	return ledger.CounterpartyInput{
		Kind:           models.CounterpartyKind(req.Kind),
		Name:           req.Name,
		AdvancePayment: req.AdvancePayment,
	}
}

type createInstrumentRequest struct {
	CounterpartyID   string              `json:"counterparty_id" validate:"required,uuid"`
	Kind             string              `json:"kind" validate:"required,oneof=loan bill"`
	PrincipalAmount  decimal.Decimal     `json:"principal_amount" validate:"gte=0"`
	ProcessingFee    decimal.NullDecimal `json:"processing_fee"`
	TotalOutstanding decimal.NullDecimal `json:"total_outstanding"`
	InterestRate     decimal.Decimal     `json:"interest_rate" validate:"gte=0"`
	InterestType     string              `json:"interest_type" validate:"omitempty,oneof=none daily monthly"`
	InstrumentDate   time.Time           `json:"instrument_date"`
}

func (req createInstrumentRequest) input() (ledger.InstrumentInput, error) {
	cpID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		return ledger.InstrumentInput{}, fmt.Errorf("%w: counterparty_id: %v", ledger.ErrInvalidInput, err)
	}
	return ledger.InstrumentInput{
		CounterpartyID:   cpID,
		Kind:             models.InstrumentKind(req.Kind),
		PrincipalAmount:  req.PrincipalAmount,
		ProcessingFee:    req.ProcessingFee,
		TotalOutstanding: req.TotalOutstanding,
		InterestRate:     req.InterestRate,
		InterestType:     models.InterestType(req.InterestType),
		InstrumentDate:   req.InstrumentDate,
	}, nil
}

type paymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentMode string          `json:"payment_mode" validate:"omitempty,oneof=cash bank"`
	PaymentDate time.Time       `json:"payment_date"`
	Notes       string          `json:"notes" validate:"max=500"`
}

func (req paymentRequest) input() ledger.PaymentInput {
	return ledger.PaymentInput{
		Amount: req.Amount,
		Mode:   models.PaymentMode(req.PaymentMode),
		Date:   req.PaymentDate,
		Notes:  req.Notes,
	}
}

type updateTransactionRequest struct {
	Amount          decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	TransactionType string          `json:"transaction_type" validate:"omitempty,oneof=principal interest mixed payment refund"`
	PaymentMode     string          `json:"payment_mode" validate:"omitempty,oneof=cash bank"`
	PaymentDate     time.Time       `json:"payment_date"`
	Notes           string          `json:"notes" validate:"max=500"`
}

func (req updateTransactionRequest) update() ledger.TransactionUpdate {
	return ledger.TransactionUpdate{
		Amount:          req.Amount,
		TransactionType: models.TransactionType(req.TransactionType),
		PaymentMode:     models.PaymentMode(req.PaymentMode),
		PaymentDate:     req.PaymentDate,
		Notes:           req.Notes,
	}
}
