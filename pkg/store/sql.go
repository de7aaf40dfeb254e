package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	counterpartyColumns = "id, kind, name, advance_payment, outstanding_amount, created_at, updated_at"
	instrumentColumns   = "id, counterparty_id, kind, principal_amount, processing_fee, total_outstanding, interest_rate, interest_type, instrument_date, is_active, locked, version, created_at, updated_at"
	transactionColumns  = "id, instrument_id, amount, transaction_type, payment_mode, payment_date, notes, created_at"
)

// dialect holds the differences between the SQL engines SQLStore runs on.
type dialect struct {
	name                 string
	timestampType        string
	numbered             bool // $1, $2 placeholders instead of ?
	addColumnIfNotExists bool
}

var (
	sqliteDialect   = dialect{name: "sqlite", timestampType: "DATETIME"}
	postgresDialect = dialect{name: "postgres", timestampType: "TIMESTAMPTZ", numbered: true, addColumnIfNotExists: true}
)

// bind rewrites ? placeholders for engines that number them.
func (d dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Storage on database/sql. Decimal amounts are stored as TEXT so no precision is lost.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Printf("Database connection established and %s schema initialized.", d.name)
	return s, nil
}

// initSchema creates the tables if they don't already exist and adds columns introduced later.
func (s *SQLStore) initSchema() error {
	ts := s.dialect.timestampType
	statements := []string{
		`CREATE TABLE IF NOT EXISTS counterparties (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			advance_payment TEXT NOT NULL DEFAULT '0',
			outstanding_amount TEXT NOT NULL DEFAULT '0',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS instruments (
			id TEXT PRIMARY KEY,
			counterparty_id TEXT NOT NULL REFERENCES counterparties(id),
			kind TEXT NOT NULL,
			principal_amount TEXT NOT NULL,
			processing_fee TEXT,
			total_outstanding TEXT,
			interest_rate TEXT NOT NULL DEFAULT '0',
			interest_type TEXT NOT NULL DEFAULT 'none',
			instrument_date ` + ts + ` NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			locked BOOLEAN NOT NULL DEFAULT FALSE,
			version BIGINT NOT NULL DEFAULT 1,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			instrument_id TEXT NOT NULL REFERENCES instruments(id),
			amount TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			payment_mode TEXT NOT NULL,
			payment_date ` + ts + ` NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instruments_counterparty ON instruments(counterparty_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_instrument ON transactions(instrument_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	// Columns that older databases may lack.
	columns := map[string][]string{
		"counterparties": {"outstanding_amount TEXT NOT NULL DEFAULT '0'"},
		"instruments": {
			"locked BOOLEAN NOT NULL DEFAULT FALSE",
			"version BIGINT NOT NULL DEFAULT 1",
		},
	}
	for table, cols := range columns {
		for _, col := range cols {
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, col)
			if s.dialect.addColumnIfNotExists {
				stmt = fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", table, col)
			}
			if _, err := s.db.Exec(stmt); err != nil && !isDuplicateColumnError(err) {
				return fmt.Errorf("failed to add column %s.%s: %w", table, col, err)
			}
		}
	}
	return nil
}

// isDuplicateColumnError checks if the error indicates a duplicate column.
func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate column name")
}

func (s *SQLStore) q(query string) string {
	return s.dialect.bind(query)
}

type scanner interface {
	Scan(dest ...any) error
}

// CreateCounterparty inserts a new counterparty.
func (s *SQLStore) CreateCounterparty(ctx context.Context, cp *models.Counterparty) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO counterparties (`+counterpartyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		cp.ID.String(), cp.Kind, cp.Name, cp.AdvancePayment, cp.OutstandingAmount, cp.CreatedAt, cp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create counterparty: %w", err)
	}
	return nil
}

func scanCounterparty(row scanner) (*models.Counterparty, error) {
	var cp models.Counterparty
	if err := row.Scan(&cp.ID, &cp.Kind, &cp.Name, &cp.AdvancePayment, &cp.OutstandingAmount, &cp.CreatedAt, &cp.UpdatedAt); err != nil {
		return nil, err
	}
	return &cp, nil
}

// GetCounterparty retrieves a counterparty by its ID.
func (s *SQLStore) GetCounterparty(ctx context.Context, id uuid.UUID) (*models.Counterparty, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+counterpartyColumns+` FROM counterparties WHERE id = ?`), id.String())
	cp, err := scanCounterparty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("counterparty %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get counterparty: %w", err)
	}
	return cp, nil
}

// ListCounterparties returns counterparties of one kind, or all of them when kind is empty.
func (s *SQLStore) ListCounterparties(ctx context.Context, kind models.CounterpartyKind) ([]*models.Counterparty, error) {
	query := `SELECT ` + counterpartyColumns + ` FROM counterparties`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparties: %w", err)
	}
	defer rows.Close()

	var out []*models.Counterparty
	for rows.Next() {
		cp, err := scanCounterparty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan counterparty row: %w", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

// SetCounterpartyOutstanding refreshes the cached outstanding aggregate.
func (s *SQLStore) SetCounterpartyOutstanding(ctx context.Context, id uuid.UUID, outstanding decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx,
		s.q(`UPDATE counterparties SET outstanding_amount = ?, updated_at = ? WHERE id = ?`),
		outstanding, time.Now(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update counterparty outstanding: %w", err)
	}
	return expectOne(result, "counterparty", id)
}

// CreateInstrument inserts a new loan or bill.
func (s *SQLStore) CreateInstrument(ctx context.Context, inst *models.CreditInstrument) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO instruments (`+instrumentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		inst.ID.String(), inst.CounterpartyID.String(), inst.Kind, inst.PrincipalAmount, inst.ProcessingFee, inst.TotalOutstanding,
		inst.InterestRate, inst.InterestType, inst.InstrumentDate, inst.IsActive, inst.Locked, inst.Version, inst.CreatedAt, inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create instrument: %w", err)
	}
	return nil
}

func scanInstrument(row scanner) (*models.CreditInstrument, error) {
	var inst models.CreditInstrument
	err := row.Scan(&inst.ID, &inst.CounterpartyID, &inst.Kind, &inst.PrincipalAmount, &inst.ProcessingFee, &inst.TotalOutstanding,
		&inst.InterestRate, &inst.InterestType, &inst.InstrumentDate, &inst.IsActive, &inst.Locked, &inst.Version, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// GetInstrument retrieves an instrument by its ID.
func (s *SQLStore) GetInstrument(ctx context.Context, id uuid.UUID) (*models.CreditInstrument, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+instrumentColumns+` FROM instruments WHERE id = ?`), id.String())
	inst, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("instrument %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return inst, nil
}

// ListInstrumentsForCounterparty returns every instrument a counterparty holds, oldest first.
func (s *SQLStore) ListInstrumentsForCounterparty(ctx context.Context, counterpartyID uuid.UUID) ([]*models.CreditInstrument, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+instrumentColumns+` FROM instruments WHERE counterparty_id = ? ORDER BY instrument_date, id`),
		counterpartyID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments for counterparty %s: %w", counterpartyID, err)
	}
	defer rows.Close()
	return scanInstruments(rows)
}

// ListActiveInstruments returns all instruments not yet closed.
func (s *SQLStore) ListActiveInstruments(ctx context.Context) ([]*models.CreditInstrument, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+instrumentColumns+` FROM instruments WHERE is_active = ? ORDER BY counterparty_id, instrument_date, id`), true)
	if err != nil {
		return nil, fmt.Errorf("failed to list active instruments: %w", err)
	}
	defer rows.Close()
	return scanInstruments(rows)
}

func scanInstruments(rows *sql.Rows) ([]*models.CreditInstrument, error) {
	var out []*models.CreditInstrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument row: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

// UpdateInstrument writes the mutable fields of an instrument if its version still matches,
// then bumps inst.Version. The instrument date is never rewritten.
func (s *SQLStore) UpdateInstrument(ctx context.Context, inst *models.CreditInstrument) error {
	result, err := s.db.ExecContext(ctx,
		s.q(`UPDATE instruments SET principal_amount = ?, processing_fee = ?, total_outstanding = ?, interest_rate = ?, interest_type = ?,
			is_active = ?, locked = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`),
		inst.PrincipalAmount, inst.ProcessingFee, inst.TotalOutstanding, inst.InterestRate, inst.InterestType,
		inst.IsActive, inst.Locked, inst.UpdatedAt, inst.ID.String(), inst.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update instrument: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := s.GetInstrument(ctx, inst.ID); err != nil {
			return err
		}
		return fmt.Errorf("instrument %s at version %d: %w", inst.ID, inst.Version, ErrVersionConflict)
	}
	inst.Version++
	return nil
}

// DeleteInstrument removes an open, unlocked instrument that has no transactions.
func (s *SQLStore) DeleteInstrument(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM transactions WHERE instrument_id = ?`), id.String()).Scan(&count); err != nil {
		return fmt.Errorf("failed to count transactions: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("instrument %s has %d transactions: %w", id, count, ErrInstrumentHasTransactions)
	}

	result, err := tx.ExecContext(ctx, s.q(`DELETE FROM instruments WHERE id = ? AND locked = ? AND is_active = ?`), id.String(), false, true)
	if err != nil {
		return fmt.Errorf("failed to delete instrument: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var one int
		err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM instruments WHERE id = ?`), id.String()).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("instrument %s: %w", id, ErrNotFound)
		case err != nil:
			return fmt.Errorf("failed to read instrument %s: %w", id, err)
		}
		return fmt.Errorf("instrument %s: %w", id, ErrInstrumentNotOpen)
	}
	return tx.Commit()
}

// claim checks an instrument is open and still at the guarded version, and bumps the version.
// A reopening guard accepts a closed instrument and marks it active again.
func (s *SQLStore) claim(ctx context.Context, tx *sql.Tx, g InstrumentGuard, now time.Time) error {
	query := `UPDATE instruments SET version = version + 1, updated_at = ? WHERE id = ? AND version = ? AND is_active = ? AND locked = ?`
	args := []any{now, g.ID.String(), g.Version, true, false}
	if g.Reopen {
		query = `UPDATE instruments SET version = version + 1, is_active = ?, updated_at = ? WHERE id = ? AND version = ? AND locked = ?`
		args = []any{true, now, g.ID.String(), g.Version, false}
	}
	result, err := tx.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("failed to claim instrument %s: %w", g.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var version int64
	var active, locked bool
	err = tx.QueryRowContext(ctx, s.q(`SELECT version, is_active, locked FROM instruments WHERE id = ?`), g.ID.String()).Scan(&version, &active, &locked)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("instrument %s: %w", g.ID, ErrNotFound)
	case err != nil:
		return fmt.Errorf("failed to read instrument %s: %w", g.ID, err)
	case version != g.Version:
		return fmt.Errorf("instrument %s at version %d, now %d: %w", g.ID, g.Version, version, ErrVersionConflict)
	default:
		return fmt.Errorf("instrument %s: %w", g.ID, ErrInstrumentNotOpen)
	}
}

// CommitTransactions claims every guarded instrument and inserts the transactions, all or nothing.
func (s *SQLStore) CommitTransactions(ctx context.Context, txs []*models.Transaction, guards []InstrumentGuard) error {
	return s.commit(ctx, txs, guards, nil)
}

// CommitCollection is CommitTransactions plus a credit to the counterparty's advance payment,
// applied in the same database transaction.
func (s *SQLStore) CommitCollection(ctx context.Context, txs []*models.Transaction, guards []InstrumentGuard, credit AdvanceCredit) error {
	return s.commit(ctx, txs, guards, &credit)
}

func (s *SQLStore) commit(ctx context.Context, txs []*models.Transaction, guards []InstrumentGuard, credit *AdvanceCredit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, g := range guards {
		if err := s.claim(ctx, tx, g, now); err != nil {
			return err
		}
	}

	for _, t := range txs {
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			t.ID.String(), t.InstrumentID.String(), t.Amount, t.TransactionType, t.PaymentMode, t.PaymentDate, t.Notes, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
	}

	if credit != nil && !credit.Amount.IsZero() {
		if err := s.addAdvance(ctx, tx, credit.CounterpartyID, credit.Amount, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// addAdvance adds delta (which may be negative) to the counterparty's advance payment.
func (s *SQLStore) addAdvance(ctx context.Context, tx *sql.Tx, id uuid.UUID, delta decimal.Decimal, now time.Time) error {
	var current decimal.Decimal
	err := tx.QueryRowContext(ctx, s.q(`SELECT advance_payment FROM counterparties WHERE id = ?`), id.String()).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("counterparty %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to read advance payment: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		s.q(`UPDATE counterparties SET advance_payment = ?, updated_at = ? WHERE id = ?`),
		current.Add(delta), now, id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update advance payment: %w", err)
	}
	return nil
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var t models.Transaction
	if err := row.Scan(&t.ID, &t.InstrumentID, &t.Amount, &t.TransactionType, &t.PaymentMode, &t.PaymentDate, &t.Notes, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for transactions: %w", err)
	}
	return out, nil
}

// GetTransaction retrieves a transaction by its ID.
func (s *SQLStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`), id.String())
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// ListTransactionsForInstrument retrieves all transactions for one instrument.
func (s *SQLStore) ListTransactionsForInstrument(ctx context.Context, instrumentID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+transactionColumns+` FROM transactions WHERE instrument_id = ? ORDER BY payment_date, created_at, id`),
		instrumentID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for instrument %s: %w", instrumentID, err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListTransactionsForCounterparty retrieves the transactions of every instrument a counterparty holds.
func (s *SQLStore) ListTransactionsForCounterparty(ctx context.Context, counterpartyID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT t.id, t.instrument_id, t.amount, t.transaction_type, t.payment_mode, t.payment_date, t.notes, t.created_at
			FROM transactions t JOIN instruments i ON i.id = t.instrument_id
			WHERE i.counterparty_id = ? ORDER BY t.payment_date, t.created_at, t.id`),
		counterpartyID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for counterparty %s: %w", counterpartyID, err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// UpdateTransaction rewrites a transaction's editable fields while its instrument is open.
func (s *SQLStore) UpdateTransaction(ctx context.Context, t *models.Transaction, guard InstrumentGuard) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.claim(ctx, tx, guard, time.Now()); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx,
		s.q(`UPDATE transactions SET amount = ?, transaction_type = ?, payment_mode = ?, payment_date = ?, notes = ? WHERE id = ? AND instrument_id = ?`),
		t.Amount, t.TransactionType, t.PaymentMode, t.PaymentDate, t.Notes, t.ID.String(), guard.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if err := expectOne(result, "transaction", t.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteTransaction removes a transaction while its instrument is open.
func (s *SQLStore) DeleteTransaction(ctx context.Context, id uuid.UUID, guard InstrumentGuard) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.claim(ctx, tx, guard, time.Now()); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, s.q(`DELETE FROM transactions WHERE id = ? AND instrument_id = ?`), id.String(), guard.ID.String())
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if err := expectOne(result, "transaction", id); err != nil {
		return err
	}
	return tx.Commit()
}

func expectOne(result sql.Result, what string, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
