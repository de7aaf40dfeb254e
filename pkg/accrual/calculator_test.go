package accrual

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func newInstrument(principal int64, rate string, typ models.InterestType, date time.Time) *models.CreditInstrument {
	return &models.CreditInstrument{
		ID:              uuid.New(),
		Kind:            models.InstrumentLoan,
		PrincipalAmount: decimal.NewFromInt(principal),
		InterestRate:    decimal.RequireFromString(rate),
		InterestType:    typ,
		InstrumentDate:  date,
		IsActive:        true,
	}
}

func tx(inst *models.CreditInstrument, amount string, typ models.TransactionType) *models.Transaction {
	return &models.Transaction{
		ID:              uuid.New(),
		InstrumentID:    inst.ID,
		Amount:          decimal.RequireFromString(amount),
		TransactionType: typ,
		PaymentMode:     models.PaymentModeCash,
		PaymentDate:     testNow,
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "%s: expected %s, got %s", msg, want, got)
}

func TestComputeOutstanding_MonthlyTwoMonths(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	inst := newInstrument(1000, "12", models.InterestMonthly, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))

	out := calc.ComputeOutstanding(inst, nil)

	assertDecimal(t, "1000", out.Balance, "balance")
	assertDecimal(t, "240", out.Interest, "interest")
	assertDecimal(t, "1240", out.TotalOutstanding, "total")
	assert.False(t, out.Closed())
}

func TestComputeOutstanding_MonthlyNegativePartialMonth(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	// Two whole months minus five days: 55/30 months.
	inst := newInstrument(1000, "12", models.InterestMonthly, time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC))

	out := calc.ComputeOutstanding(inst, nil)

	assertDecimal(t, "220", out.Interest, "interest")
}

func TestComputeOutstanding_DailyWholeDays(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	inst := newInstrument(1000, "36.5", models.InterestDaily, testNow.AddDate(0, 0, -10))

	out := calc.ComputeOutstanding(inst, nil)

	assertDecimal(t, "10", out.Interest, "interest")
	assertDecimal(t, "1010", out.TotalOutstanding, "total")
}

func TestComputeOutstanding_DailyRoundsElapsedUp(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))

	partial := newInstrument(1000, "36.5", models.InterestDaily, testNow.AddDate(0, 0, -10).Add(-time.Hour))
	assertDecimal(t, "11", calc.ComputeOutstanding(partial, nil).Interest, "ten days and an hour")

	sameDay := newInstrument(1000, "36.5", models.InterestDaily, testNow.Add(-time.Minute))
	assertDecimal(t, "1", calc.ComputeOutstanding(sameDay, nil).Interest, "one minute")

	assert.Equal(t, int64(0), ElapsedDays(newInstrument(1000, "1", models.InterestDaily, testNow), testNow))
}

func TestComputeOutstanding_ZeroInterestInvariant(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	longAgo := testNow.AddDate(-3, 0, 0)

	cases := []*models.CreditInstrument{
		newInstrument(5000, "18", models.InterestNone, longAgo),
		newInstrument(5000, "0", models.InterestDaily, longAgo),
		newInstrument(5000, "0", models.InterestMonthly, longAgo),
	}
	for _, inst := range cases {
		out := calc.ComputeOutstanding(inst, nil)
		assert.True(t, out.Interest.IsZero(), "%s/%s should not accrue", inst.InterestType, inst.InterestRate)
		assertDecimal(t, "5000", out.TotalOutstanding, "total")
	}
}

func TestComputeOutstanding_TransactionTypes(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	inst := newInstrument(1000, "0", models.InterestNone, testNow)
	other := newInstrument(1000, "0", models.InterestNone, testNow)

	txs := []*models.Transaction{
		tx(inst, "200", models.TransactionTypePrincipal),
		tx(inst, "100", models.TransactionTypePayment),
		tx(inst, "50", models.TransactionTypeRefund),
		tx(inst, "30", models.TransactionTypeInterest),
		tx(inst, "40", models.TransactionTypeMixed),
		tx(other, "500", models.TransactionTypePrincipal),
	}

	out := calc.ComputeOutstanding(inst, txs)

	assertDecimal(t, "750", out.Balance, "balance")
}

func TestComputeOutstanding_BalanceConservation(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	inst := newInstrument(1000, "2", models.InterestMonthly, testNow.AddDate(0, -1, 0))
	before := calc.ComputeOutstanding(inst, nil)

	paid := calc.ComputeOutstanding(inst, []*models.Transaction{tx(inst, "123.45", models.TransactionTypePrincipal)})
	assertDecimal(t, "123.45", before.Balance.Sub(paid.Balance), "principal decrease")

	refunded := calc.ComputeOutstanding(inst, []*models.Transaction{tx(inst, "10.10", models.TransactionTypeRefund)})
	assertDecimal(t, "10.10", refunded.Balance.Sub(before.Balance), "refund increase")
}

func TestComputeOutstanding_PrefersSnapshot(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	inst := newInstrument(1000, "0", models.InterestNone, testNow)
	inst.ProcessingFee = decimal.NewNullDecimal(decimal.NewFromInt(50))
	inst.TotalOutstanding = decimal.NewNullDecimal(decimal.NewFromInt(1050))

	_, source := inst.BaseAmount()
	require.Equal(t, models.BaseSourceSnapshot, source)

	out := calc.ComputeOutstanding(inst, []*models.Transaction{tx(inst, "50", models.TransactionTypePrincipal)})
	assertDecimal(t, "1000", out.Balance, "balance")
}

func TestComputeOutstanding_OverpaidIsClosedNotError(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	inst := newInstrument(100, "12", models.InterestMonthly, testNow.AddDate(0, -1, 0))

	out := calc.ComputeOutstanding(inst, []*models.Transaction{tx(inst, "150", models.TransactionTypePrincipal)})

	assertDecimal(t, "-50", out.Balance, "balance")
	assert.True(t, out.Interest.IsNegative())
	assert.True(t, out.Closed())
}

func TestComputeOutstanding_ZeroDateIsIndeterminate(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	inst := newInstrument(1000, "12", models.InterestMonthly, time.Time{})

	out := calc.ComputeOutstanding(inst, nil)

	assert.True(t, out.Indeterminate)
	assert.True(t, out.Interest.IsZero())
	assertDecimal(t, "1000", out.TotalOutstanding, "total")
}

func TestComputeOutstanding_Idempotent(t *testing.T) {
	calc := NewCalculator(FixedClock(testNow))
	inst := newInstrument(777, "1.7", models.InterestDaily, testNow.AddDate(0, 0, -41).Add(-3*time.Hour))
	txs := []*models.Transaction{tx(inst, "12.34", models.TransactionTypePrincipal)}

	first := calc.ComputeOutstanding(inst, txs)
	second := calc.ComputeOutstanding(inst, txs)

	assert.Equal(t, first.Balance.String(), second.Balance.String())
	assert.Equal(t, first.Interest.String(), second.Interest.String())
	assert.Equal(t, first.TotalOutstanding.String(), second.TotalOutstanding.String())
}

func TestElapsedThirtieths_UsesClockLocation(t *testing.T) {
	// Stored as UTC midnight; read in a zone west of UTC it is still the previous day.
	ny := time.FixedZone("EST", -5*60*60)
	inst := newInstrument(1000, "12", models.InterestMonthly, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, ny)

	assert.Equal(t, int64(61), ElapsedThirtieths(inst, now))
}

func TestCents(t *testing.T) {
	assertDecimal(t, "10.13", Cents(decimal.RequireFromString("10.125")), "half up")
	assertDecimal(t, "10.12", Cents(decimal.RequireFromString("10.1249")), "down")
}
