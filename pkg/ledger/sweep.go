package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/mcclellann/lendbook/pkg/metrics"
)

// SweepReport summarises one RefreshOutstanding pass.
type SweepReport struct {
	Closed         int `json:"closed"`
	Counterparties int `json:"counterparties"`
	Failures       int `json:"failures"`
}

// RefreshOutstanding closes every active instrument that has been settled and recomputes the
// cached outstanding amount of every counterparty. Failures on one row are logged and the pass
// continues; the first one is returned.
func (l *Ledger) RefreshOutstanding(ctx context.Context) (report SweepReport, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveSweep(result, time.Since(start))
	}()

	var firstErr error
	fail := func(e error) {
		report.Failures++
		if firstErr == nil {
			firstErr = e
		}
	}

	active, err := l.storage.ListActiveInstruments(ctx)
	if err != nil {
		return report, err
	}
	for _, inst := range active {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		txs, err := l.storage.ListTransactionsForInstrument(ctx, inst.ID)
		if err != nil {
			l.logger.Printf("Error getting transactions for instrument %s during sweep: %v", inst.ID, err)
			fail(err)
			continue
		}
		closed, err := l.closeIfSettled(ctx, inst, txs)
		if err != nil {
			l.logger.Printf("Error closing instrument %s during sweep: %v", inst.ID, err)
			fail(err)
			continue
		}
		if closed {
			report.Closed++
		}
	}

	cps, err := l.storage.ListCounterparties(ctx, "")
	if err != nil {
		return report, err
	}
	for _, cp := range cps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := l.refreshAggregate(ctx, cp.ID); err != nil {
			l.logger.Printf("Error refreshing outstanding for counterparty %s: %v", cp.ID, err)
			fail(err)
			continue
		}
		report.Counterparties++
	}

	return report, firstErr
}

// RunSweeps calls RefreshOutstanding every interval until ctx is cancelled.
func (l *Ledger) RunSweeps(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := l.RefreshOutstanding(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Printf("Outstanding sweep finished with errors: %v", err)
			}
			l.logger.Printf("Outstanding sweep: %d closed, %d counterparties refreshed, %d failures",
				report.Closed, report.Counterparties, report.Failures)
		}
	}
}
