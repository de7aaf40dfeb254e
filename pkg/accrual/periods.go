package accrual

import (
	"time"

	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	msPerDay    = 24 * 60 * 60 * 1000
	daysInMonth = 30
)

// ElapsedDays is the ceiling of the elapsed milliseconds since the instrument date, in days.
// Any elapsed time above zero counts as at least one day.
func ElapsedDays(inst *models.CreditInstrument, now time.Time) int64 {
	ms := now.Sub(inst.InstrumentDate).Milliseconds()
	days := ms / msPerDay
	if ms%msPerDay > 0 {
		days++
	}
	return days
}

// ElapsedThirtieths counts elapsed monthly periods in thirtieths of a month: whole calendar
// months between the two dates, plus the difference in day-of-month over a flat 30-day month.
// The day difference may be negative and is not clamped.
func ElapsedThirtieths(inst *models.CreditInstrument, now time.Time) int64 {
	from := inst.InstrumentDate.In(now.Location())
	wholeMonths := int64(now.Year()-from.Year())*12 + int64(now.Month()-from.Month())
	partialDays := int64(now.Day() - from.Day())
	return wholeMonths*daysInMonth + partialDays
}

// Cents rounds an amount to two decimal places for currency use.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
