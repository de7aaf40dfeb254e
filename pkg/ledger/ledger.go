package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/accrual"
	"github.com/mcclellann/lendbook/pkg/allocation"
	"github.com/mcclellann/lendbook/pkg/events"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/mcclellann/lendbook/pkg/store"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInput is returned when a request field is missing or out of range.
	ErrInvalidInput = errors.New("ledger: invalid input")
	// ErrOverpayment is returned when a single-instrument payment exceeds what is owed.
	ErrOverpayment = errors.New("ledger: payment exceeds outstanding")
	// ErrNotRefundable is returned when a refund targets an instrument that is not a bill.
	ErrNotRefundable = errors.New("ledger: refunds apply to bills only")
)

// Options tunes ledger behaviour.
type Options struct {
	// CreditExcessToAdvance adds the unallocated remainder of a collection to the counterparty's advance payment.
	CreditExcessToAdvance bool
	Logger                *log.Logger
}

// Ledger handles the business logic for counterparties, instruments and transactions.
// Every operation reads from storage, computes with the accrual engine and writes back.
type Ledger struct {
	storage store.Storage
	calc    *accrual.Calculator
	bus     events.Bus
	logger  *log.Logger

	sequential allocation.Strategy
	single     allocation.Strategy

	creditExcessToAdvance bool
}

// NewLedger creates a new Ledger with a given Storage implementation. A nil calculator accrues
// against the system clock and a nil bus is replaced by an in-memory one.
func NewLedger(s store.Storage, calc *accrual.Calculator, bus events.Bus, opts Options) *Ledger {
	if calc == nil {
		calc = accrual.NewCalculator(nil)
	}
	if bus == nil {
		bus = events.NewInMemoryBus()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	l := &Ledger{
		storage:               s,
		calc:                  calc,
		bus:                   bus,
		logger:                logger,
		sequential:            allocation.NewSequential(calc),
		single:                allocation.NewSingle(calc),
		creditExcessToAdvance: opts.CreditExcessToAdvance,
	}

	bus.Subscribe(events.PaymentRecordedType, l.onBalanceChanged)
	bus.Subscribe(events.RefundRecordedType, l.onBalanceChanged)
	bus.Subscribe(events.TransactionChangedType, l.onBalanceChanged)
	return l
}

// Calculator exposes the accrual engine the ledger computes with.
func (l *Ledger) Calculator() *accrual.Calculator {
	return l.calc
}

func (l *Ledger) now() time.Time {
	return l.calc.Clock().Now()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// CounterpartyInput holds the fields a caller supplies for a new counterparty.
type CounterpartyInput struct {
	Kind           models.CounterpartyKind
	Name           string
	AdvancePayment decimal.Decimal
}

// CreateCounterparty registers a customer, mahajan or bill-customer.
func (l *Ledger) CreateCounterparty(ctx context.Context, in CounterpartyInput) (*models.Counterparty, error) {
	if !in.Kind.Valid() {
		return nil, invalid("unknown counterparty kind %q", in.Kind)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name required")
	}
	if in.AdvancePayment.IsNegative() {
		return nil, invalid("advance payment must not be negative")
	}

	now := l.now()
	cp := &models.Counterparty{
		ID:                uuid.New(),
		Kind:              in.Kind,
		Name:              name,
		AdvancePayment:    in.AdvancePayment,
		OutstandingAmount: decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.storage.CreateCounterparty(ctx, cp); err != nil {
		return nil, fmt.Errorf("failed to store counterparty: %w", err)
	}
	return cp, nil
}

// GetCounterparty retrieves a counterparty by its ID.
func (l *Ledger) GetCounterparty(ctx context.Context, id uuid.UUID) (*models.Counterparty, error) {
	return l.storage.GetCounterparty(ctx, id)
}

// ListCounterparties lists counterparties of one kind, or all when kind is empty.
func (l *Ledger) ListCounterparties(ctx context.Context, kind models.CounterpartyKind) ([]*models.Counterparty, error) {
	if kind != "" && !kind.Valid() {
		return nil, invalid("unknown counterparty kind %q", kind)
	}
	return l.storage.ListCounterparties(ctx, kind)
}

// Summary is a counterparty's position across all of its instruments.
type Summary struct {
	Counterparty     *models.Counterparty `json:"counterparty"`
	Instruments      []InstrumentView     `json:"instruments"`
	TotalOutstanding decimal.Decimal      `json:"total_outstanding"`
	AdvancePayment   decimal.Decimal      `json:"advance_payment"`
	// NetOutstanding is the total less the advance payment, floored at zero. Display only.
	NetOutstanding decimal.Decimal `json:"net_outstanding"`
}

// CounterpartySummary computes the outstanding position of every instrument a counterparty holds.
func (l *Ledger) CounterpartySummary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	cp, err := l.storage.GetCounterparty(ctx, id)
	if err != nil {
		return nil, err
	}
	insts, byInstrument, err := l.loadCounterparty(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]InstrumentView, 0, len(insts))
	for _, inst := range insts {
		views = append(views, l.view(inst, byInstrument[inst.ID]))
	}
	total := l.totalOutstanding(insts, byInstrument)

	net := total.Sub(cp.AdvancePayment)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return &Summary{
		Counterparty:     cp,
		Instruments:      views,
		TotalOutstanding: total,
		AdvancePayment:   cp.AdvancePayment,
		NetOutstanding:   net,
	}, nil
}

// loadCounterparty reads a counterparty's instruments and groups its transactions by instrument.
func (l *Ledger) loadCounterparty(ctx context.Context, id uuid.UUID) ([]*models.CreditInstrument, map[uuid.UUID][]*models.Transaction, error) {
	insts, err := l.storage.ListInstrumentsForCounterparty(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	txs, err := l.storage.ListTransactionsForCounterparty(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	byInstrument := make(map[uuid.UUID][]*models.Transaction, len(insts))
	for _, tx := range txs {
		byInstrument[tx.InstrumentID] = append(byInstrument[tx.InstrumentID], tx)
	}
	return insts, byInstrument, nil
}

// totalOutstanding sums what is still owed on active instruments, in cents.
// Overpaid instruments contribute nothing.
func (l *Ledger) totalOutstanding(insts []*models.CreditInstrument, txs map[uuid.UUID][]*models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range insts {
		if !inst.IsActive {
			continue
		}
		out := l.calc.ComputeOutstanding(inst, txs[inst.ID])
		if out.TotalOutstanding.IsPositive() {
			total = total.Add(accrual.Cents(out.TotalOutstanding))
		}
	}
	return total
}

// refreshAggregate recomputes the counterparty's cached outstanding amount.
func (l *Ledger) refreshAggregate(ctx context.Context, counterpartyID uuid.UUID) error {
	insts, txs, err := l.loadCounterparty(ctx, counterpartyID)
	if err != nil {
		return err
	}
	if err := l.storage.SetCounterpartyOutstanding(ctx, counterpartyID, l.totalOutstanding(insts, txs)); err != nil {
		return fmt.Errorf("failed to refresh outstanding for counterparty %s: %w", counterpartyID, err)
	}
	return nil
}

func (l *Ledger) onBalanceChanged(ctx context.Context, event any) error {
	var id uuid.UUID
	switch e := events.Value(event).(type) {
	case events.PaymentRecorded:
		id = e.CounterpartyID
	case events.RefundRecorded:
		id = e.CounterpartyID
	case events.TransactionChanged:
		id = e.CounterpartyID
	default:
		return nil
	}
	return l.refreshAggregate(ctx, id)
}

// publish delivers an event after its change is committed. Handler failures are logged rather
// than returned because the write they follow has already succeeded.
func (l *Ledger) publish(ctx context.Context, event any) {
	if err := l.bus.Publish(ctx, event); err != nil {
		l.logger.Printf("Error handling %s: %v", events.TypeOf(event), err)
	}
}
