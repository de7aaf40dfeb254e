package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) (*SQLStore, string) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test_store.db")
	s, err := NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dbFile
}

func seedCounterparty(t *testing.T, s *SQLStore) *models.Counterparty {
	t.Helper()
	now := time.Now()
	cp := &models.Counterparty{
		ID:                uuid.New(),
		Kind:              models.CounterpartyCustomer,
		Name:              "Ramesh Traders",
		AdvancePayment:    decimal.Zero,
		OutstandingAmount: decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.CreateCounterparty(context.Background(), cp); err != nil {
		t.Fatalf("Failed to create counterparty: %v", err)
	}
	return cp
}

func seedInstrument(t *testing.T, s *SQLStore, cp *models.Counterparty, principal int64) *models.CreditInstrument {
	t.Helper()
	now := time.Now()
	inst := &models.CreditInstrument{
		ID:              uuid.New(),
		CounterpartyID:  cp.ID,
		Kind:            models.InstrumentLoan,
		PrincipalAmount: decimal.NewFromInt(principal),
		InterestRate:    decimal.RequireFromString("1.5"),
		InterestType:    models.InterestMonthly,
		InstrumentDate:  time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		IsActive:        true,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.CreateInstrument(context.Background(), inst); err != nil {
		t.Fatalf("Failed to create instrument: %v", err)
	}
	return inst
}

func newTx(inst *models.CreditInstrument, amount string, typ models.TransactionType) *models.Transaction {
	return &models.Transaction{
		ID:              uuid.New(),
		InstrumentID:    inst.ID,
		Amount:          decimal.RequireFromString(amount),
		TransactionType: typ,
		PaymentMode:     models.PaymentModeBank,
		PaymentDate:     time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		Notes:           "neft",
		CreatedAt:       time.Now(),
	}
}

func TestSQLiteStore_CreateAndGetInstrument(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)

	inst := seedInstrument(t, s, cp, 2000)

	fetched, err := s.GetInstrument(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Failed to get instrument: %v", err)
	}

	if fetched.CounterpartyID != cp.ID {
		t.Errorf("Expected CounterpartyID %s, got %s", cp.ID, fetched.CounterpartyID)
	}
	if !fetched.PrincipalAmount.Equal(inst.PrincipalAmount) {
		t.Errorf("Expected PrincipalAmount %s, got %s", inst.PrincipalAmount, fetched.PrincipalAmount)
	}
	if !fetched.InterestRate.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Expected InterestRate 1.5, got %s", fetched.InterestRate)
	}
	if fetched.TotalOutstanding.Valid || fetched.ProcessingFee.Valid {
		t.Errorf("Expected null fee and snapshot, got %v / %v", fetched.ProcessingFee, fetched.TotalOutstanding)
	}
	if fetched.InterestType != models.InterestMonthly || !fetched.IsActive || fetched.Locked || fetched.Version != 1 {
		t.Errorf("Unexpected flags: %+v", fetched)
	}
	if !fetched.InstrumentDate.Equal(inst.InstrumentDate) {
		t.Errorf("Expected InstrumentDate %s, got %s", inst.InstrumentDate, fetched.InstrumentDate)
	}

	list, err := s.ListInstrumentsForCounterparty(ctx, cp.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("Expected 1 instrument for counterparty, got %d (%v)", len(list), err)
	}

	if _, err := s.GetInstrument(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_CommitTransactions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)
	a := seedInstrument(t, s, cp, 100)
	b := seedInstrument(t, s, cp, 200)

	txs := []*models.Transaction{
		newTx(a, "10.25", models.TransactionTypeInterest),
		newTx(a, "89.75", models.TransactionTypePrincipal),
		newTx(b, "50", models.TransactionTypePrincipal),
	}
	if err := s.CommitTransactions(ctx, txs, []InstrumentGuard{Guard(a), Guard(b)}); err != nil {
		t.Fatalf("Failed to commit transactions: %v", err)
	}

	forA, err := s.ListTransactionsForInstrument(ctx, a.ID)
	if err != nil {
		t.Fatalf("Failed to get transactions: %v", err)
	}
	if len(forA) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(forA))
	}
	if !forA[0].Amount.Add(forA[1].Amount).Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected amounts to sum to 100, got %s and %s", forA[0].Amount, forA[1].Amount)
	}
	if forA[0].PaymentMode != models.PaymentModeBank || forA[0].Notes != "neft" {
		t.Errorf("Unexpected transaction fields: %+v", forA[0])
	}

	all, err := s.ListTransactionsForCounterparty(ctx, cp.ID)
	if err != nil || len(all) != 3 {
		t.Fatalf("Expected 3 counterparty transactions, got %d (%v)", len(all), err)
	}

	fetched, _ := s.GetInstrument(ctx, a.ID)
	if fetched.Version != 2 {
		t.Errorf("Expected version 2 after commit, got %d", fetched.Version)
	}
}

func TestSQLiteStore_CommitRejectsStaleVersion(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)
	inst := seedInstrument(t, s, cp, 100)
	stale := Guard(inst)

	if err := s.CommitTransactions(ctx, []*models.Transaction{newTx(inst, "10", models.TransactionTypePrincipal)}, []InstrumentGuard{stale}); err != nil {
		t.Fatalf("First commit failed: %v", err)
	}
	err := s.CommitTransactions(ctx, []*models.Transaction{newTx(inst, "20", models.TransactionTypePrincipal)}, []InstrumentGuard{stale})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}

	txs, _ := s.ListTransactionsForInstrument(ctx, inst.ID)
	if len(txs) != 1 {
		t.Errorf("Expected the rejected commit to insert nothing, got %d rows", len(txs))
	}
}

func TestSQLiteStore_CommitRejectsLockedInstrument(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)
	inst := seedInstrument(t, s, cp, 100)

	inst.Locked = true
	if err := s.UpdateInstrument(ctx, inst); err != nil {
		t.Fatalf("Failed to lock instrument: %v", err)
	}
	if inst.Version != 2 {
		t.Errorf("Expected version 2 after update, got %d", inst.Version)
	}

	err := s.CommitTransactions(ctx, []*models.Transaction{newTx(inst, "10", models.TransactionTypePrincipal)}, []InstrumentGuard{Guard(inst)})
	if !errors.Is(err, ErrInstrumentNotOpen) {
		t.Fatalf("Expected ErrInstrumentNotOpen, got %v", err)
	}
}

func TestSQLiteStore_UpdateInstrumentConflict(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)
	inst := seedInstrument(t, s, cp, 100)

	other, _ := s.GetInstrument(ctx, inst.ID)
	other.Locked = true
	if err := s.UpdateInstrument(ctx, other); err != nil {
		t.Fatalf("Failed first update: %v", err)
	}

	inst.IsActive = false
	if err := s.UpdateInstrument(ctx, inst); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}

	missing := *inst
	missing.ID = uuid.New()
	if err := s.UpdateInstrument(ctx, &missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_DeleteInstrument(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)
	used := seedInstrument(t, s, cp, 100)
	unused := seedInstrument(t, s, cp, 100)

	if err := s.CommitTransactions(ctx, []*models.Transaction{newTx(used, "1", models.TransactionTypePrincipal)}, []InstrumentGuard{Guard(used)}); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	if err := s.DeleteInstrument(ctx, used.ID); !errors.Is(err, ErrInstrumentHasTransactions) {
		t.Errorf("Expected ErrInstrumentHasTransactions, got %v", err)
	}

	locked := seedInstrument(t, s, cp, 100)
	locked.Locked = true
	if err := s.UpdateInstrument(ctx, locked); err != nil {
		t.Fatalf("Failed to lock instrument: %v", err)
	}
	if err := s.DeleteInstrument(ctx, locked.ID); !errors.Is(err, ErrInstrumentNotOpen) {
		t.Errorf("Expected ErrInstrumentNotOpen for locked instrument, got %v", err)
	}
	if _, err := s.GetInstrument(ctx, locked.ID); err != nil {
		t.Errorf("Expected locked instrument to survive delete, got %v", err)
	}

	closed := seedInstrument(t, s, cp, 100)
	closed.IsActive = false
	if err := s.UpdateInstrument(ctx, closed); err != nil {
		t.Fatalf("Failed to close instrument: %v", err)
	}
	if err := s.DeleteInstrument(ctx, closed.ID); !errors.Is(err, ErrInstrumentNotOpen) {
		t.Errorf("Expected ErrInstrumentNotOpen for closed instrument, got %v", err)
	}

	if err := s.DeleteInstrument(ctx, unused.ID); err != nil {
		t.Errorf("Failed to delete unused instrument: %v", err)
	}
	if err := s.DeleteInstrument(ctx, unused.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteStore_CommitCollectionIsAtomic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)
	inst := seedInstrument(t, s, cp, 100)

	rows := []*models.Transaction{newTx(inst, "100", models.TransactionTypePrincipal)}
	credit := AdvanceCredit{CounterpartyID: cp.ID, Amount: decimal.NewFromInt(25)}
	if err := s.CommitCollection(ctx, rows, []InstrumentGuard{Guard(inst)}, credit); err != nil {
		t.Fatalf("Failed to commit collection: %v", err)
	}
	fetched, _ := s.GetCounterparty(ctx, cp.ID)
	if !fetched.AdvancePayment.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected advance 25, got %s", fetched.AdvancePayment)
	}

	// A credit that cannot be applied rolls back the transaction rows with it.
	inst, _ = s.GetInstrument(ctx, inst.ID)
	rows = []*models.Transaction{newTx(inst, "5", models.TransactionTypePrincipal)}
	credit = AdvanceCredit{CounterpartyID: uuid.New(), Amount: decimal.NewFromInt(5)}
	if err := s.CommitCollection(ctx, rows, []InstrumentGuard{Guard(inst)}, credit); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	txs, _ := s.ListTransactionsForInstrument(ctx, inst.ID)
	if len(txs) != 1 {
		t.Errorf("Expected the failed collection to insert nothing, got %d rows", len(txs))
	}
	after, _ := s.GetInstrument(ctx, inst.ID)
	if after.Version != inst.Version {
		t.Errorf("Expected version %d to be unchanged, got %d", inst.Version, after.Version)
	}
}

func TestSQLiteStore_ReopeningGuard(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)
	inst := seedInstrument(t, s, cp, 100)
	inst.IsActive = false
	if err := s.UpdateInstrument(ctx, inst); err != nil {
		t.Fatalf("Failed to close instrument: %v", err)
	}

	err := s.CommitTransactions(ctx, []*models.Transaction{newTx(inst, "10", models.TransactionTypeRefund)}, []InstrumentGuard{Guard(inst)})
	if !errors.Is(err, ErrInstrumentNotOpen) {
		t.Fatalf("Expected ErrInstrumentNotOpen without reopen, got %v", err)
	}

	// A failed commit leaves the instrument closed.
	guard := Guard(inst)
	guard.Reopen = true
	dup := newTx(inst, "10", models.TransactionTypeRefund)
	err = s.CommitTransactions(ctx, []*models.Transaction{dup, dup}, []InstrumentGuard{guard})
	if err == nil {
		t.Fatal("Expected duplicate transaction IDs to fail the commit")
	}
	fetched, _ := s.GetInstrument(ctx, inst.ID)
	if fetched.IsActive {
		t.Error("Expected instrument to stay closed after a failed reopening commit")
	}

	if err := s.CommitTransactions(ctx, []*models.Transaction{newTx(inst, "10", models.TransactionTypeRefund)}, []InstrumentGuard{guard}); err != nil {
		t.Fatalf("Failed reopening commit: %v", err)
	}
	fetched, _ = s.GetInstrument(ctx, inst.ID)
	if !fetched.IsActive || fetched.Version != inst.Version+1 {
		t.Errorf("Expected active instrument at version %d, got active=%t version=%d", inst.Version+1, fetched.IsActive, fetched.Version)
	}

	locked := seedInstrument(t, s, cp, 100)
	locked.IsActive = false
	locked.Locked = true
	if err := s.UpdateInstrument(ctx, locked); err != nil {
		t.Fatalf("Failed to lock instrument: %v", err)
	}
	guard = Guard(locked)
	guard.Reopen = true
	err = s.CommitTransactions(ctx, []*models.Transaction{newTx(locked, "10", models.TransactionTypeRefund)}, []InstrumentGuard{guard})
	if !errors.Is(err, ErrInstrumentNotOpen) {
		t.Errorf("Expected ErrInstrumentNotOpen for locked instrument, got %v", err)
	}
}

func TestSQLiteStore_UpdateAndDeleteTransaction(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)
	inst := seedInstrument(t, s, cp, 100)
	tx := newTx(inst, "10", models.TransactionTypePrincipal)
	if err := s.CommitTransactions(ctx, []*models.Transaction{tx}, []InstrumentGuard{Guard(inst)}); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	inst, _ = s.GetInstrument(ctx, inst.ID)

	tx.Amount = decimal.RequireFromString("12.5")
	tx.PaymentMode = models.PaymentModeCash
	tx.Notes = "corrected"
	if err := s.UpdateTransaction(ctx, tx, Guard(inst)); err != nil {
		t.Fatalf("Failed to update transaction: %v", err)
	}
	fetched, err := s.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Failed to get transaction: %v", err)
	}
	if !fetched.Amount.Equal(tx.Amount) || fetched.PaymentMode != models.PaymentModeCash || fetched.Notes != "corrected" {
		t.Errorf("Update not persisted: %+v", fetched)
	}

	inst, _ = s.GetInstrument(ctx, inst.ID)
	if err := s.DeleteTransaction(ctx, tx.ID, Guard(inst)); err != nil {
		t.Fatalf("Failed to delete transaction: %v", err)
	}
	if _, err := s.GetTransaction(ctx, tx.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStore_CounterpartyAggregates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	cp := seedCounterparty(t, s)

	if err := s.CommitCollection(ctx, nil, nil, AdvanceCredit{CounterpartyID: cp.ID, Amount: decimal.RequireFromString("40.10")}); err != nil {
		t.Fatalf("Failed to add advance: %v", err)
	}
	if err := s.CommitCollection(ctx, nil, nil, AdvanceCredit{CounterpartyID: cp.ID, Amount: decimal.RequireFromString("-0.10")}); err != nil {
		t.Fatalf("Failed to add advance: %v", err)
	}
	if err := s.SetCounterpartyOutstanding(ctx, cp.ID, decimal.RequireFromString("1234.56")); err != nil {
		t.Fatalf("Failed to set outstanding: %v", err)
	}

	fetched, err := s.GetCounterparty(ctx, cp.ID)
	if err != nil {
		t.Fatalf("Failed to get counterparty: %v", err)
	}
	if !fetched.AdvancePayment.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected advance 40, got %s", fetched.AdvancePayment)
	}
	if !fetched.OutstandingAmount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("Expected outstanding 1234.56, got %s", fetched.OutstandingAmount)
	}

	mahajans, err := s.ListCounterparties(ctx, models.CounterpartyMahajan)
	if err != nil || len(mahajans) != 0 {
		t.Errorf("Expected no mahajans, got %d (%v)", len(mahajans), err)
	}
	all, err := s.ListCounterparties(ctx, "")
	if err != nil || len(all) != 1 {
		t.Errorf("Expected 1 counterparty, got %d (%v)", len(all), err)
	}

	if err := s.SetCounterpartyOutstanding(ctx, uuid.New(), decimal.Zero); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	s, dbFile := newTestStore(t)
	cp := seedCounterparty(t, s)
	s.Close()

	reopened, err := NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetCounterparty(context.Background(), cp.ID); err != nil {
		t.Errorf("Expected counterparty after reopen, got %v", err)
	}
}

func TestDialectBind(t *testing.T) {
	query := `UPDATE t SET a = ?, b = ? WHERE id = ?`
	if got := sqliteDialect.bind(query); got != query {
		t.Errorf("sqlite should keep ? placeholders, got %q", got)
	}
	if got := postgresDialect.bind(query); got != `UPDATE t SET a = $1, b = $2 WHERE id = $3` {
		t.Errorf("unexpected postgres query %q", got)
	}
}
