package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same statement
// code serves direct calls and calls inside RunInTx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  querier
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, q: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS fund (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_fund TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		investment_balance TEXT NOT NULL,
		interest_earned TEXT NOT NULL,
		paused INTEGER NOT NULL DEFAULT 0,
		joined_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		date DATETIME NOT NULL,
		recorded_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(member_id) REFERENCES members(id)
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		deduction TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		status TEXT NOT NULL,
		outstanding TEXT NOT NULL,
		approved_by TEXT NOT NULL,
		date DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(member_id) REFERENCES members(id)
	);
	CREATE TABLE IF NOT EXISTS repayments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		date DATETIME NOT NULL,
		interest_payment_id TEXT,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS interest_payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		date DATETIME NOT NULL,
		distribution_id TEXT NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS distributions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		per_member_amount TEXT NOT NULL,
		date DATETIME NOT NULL,
		ref_id TEXT
	);
	CREATE TABLE IF NOT EXISTS distribution_shares (
		distribution_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (distribution_id, member_id),
		FOREIGN KEY(distribution_id) REFERENCES distributions(id)
	);
	CREATE TABLE IF NOT EXISTS history_entries (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		type TEXT NOT NULL,
		date DATETIME NOT NULL,
		ref_id TEXT NOT NULL,
		FOREIGN KEY(member_id) REFERENCES members(id)
	);
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		description TEXT NOT NULL,
		date DATETIME NOT NULL,
		recorded_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transaction_logs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		action TEXT NOT NULL,
		amount TEXT NOT NULL,
		member_id TEXT,
		reference_id TEXT NOT NULL,
		fund_before TEXT NOT NULL,
		fund_after TEXT NOT NULL,
		date DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_ref ON history_entries(ref_id);
	CREATE INDEX IF NOT EXISTS idx_distributions_ref ON distributions(ref_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RunInTx runs fn against a transaction-scoped store. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *SQLiteStore) RunInTx(fn func(Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Fund ---

func (s *SQLiteStore) GetFund() (*models.Fund, error) {
	var fund models.Fund
	err := s.q.QueryRow(`SELECT total_fund FROM fund WHERE id = 1`).Scan(&fund.TotalFund)
	if err == sql.ErrNoRows {
		if _, err := s.q.Exec(`INSERT INTO fund (id, total_fund) VALUES (1, '0')`); err != nil {
			return nil, fmt.Errorf("failed to initialize fund: %w", err)
		}
		return &models.Fund{TotalFund: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund: %w", err)
	}
	return &fund, nil
}

func (s *SQLiteStore) AdjustFund(delta decimal.Decimal) (*models.Fund, error) {
	fund, err := s.GetFund()
	if err != nil {
		return nil, err
	}
	fund.TotalFund = fund.TotalFund.Add(delta)
	if _, err := s.q.Exec(`UPDATE fund SET total_fund = ? WHERE id = 1`, fund.TotalFund); err != nil {
		return nil, fmt.Errorf("failed to adjust fund: %w", err)
	}
	return fund, nil
}

// --- Members ---

func (s *SQLiteStore) CreateMember(m *models.Member) error {
	_, err := s.q.Exec(
		`INSERT INTO members (id, name, investment_balance, interest_earned, paused, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.Name, m.InvestmentBalance, m.InterestEarned, m.Paused, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMember(id uuid.UUID) (*models.Member, error) {
	row := s.q.QueryRow(
		`SELECT id, name, investment_balance, interest_earned, paused, joined_at FROM members WHERE id = ?`,
		id.String())
	return scanMember(row)
}

func (s *SQLiteStore) UpdateMember(m *models.Member) error {
	result, err := s.q.Exec(
		`UPDATE members SET name = ?, investment_balance = ?, interest_earned = ?, paused = ? WHERE id = ?`,
		m.Name, m.InvestmentBalance, m.InterestEarned, m.Paused, m.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) GetAllMembers() ([]*models.Member, error) {
	return s.queryMembers(`SELECT id, name, investment_balance, interest_earned, paused, joined_at FROM members ORDER BY id ASC`)
}

func (s *SQLiteStore) GetActiveMembers() ([]*models.Member, error) {
	return s.queryMembers(`SELECT id, name, investment_balance, interest_earned, paused, joined_at FROM members WHERE paused = 0 ORDER BY id ASC`)
}

func (s *SQLiteStore) queryMembers(query string, args ...any) ([]*models.Member, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during member rows iteration: %w", err)
	}
	return members, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*models.Member, error) {
	var m models.Member
	var idStr string
	var joined time.Time
	err := row.Scan(&idStr, &m.Name, &m.InvestmentBalance, &m.InterestEarned, &m.Paused, &joined)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	m.ID = uuid.MustParse(idStr)
	m.JoinedAt = joined
	return &m, nil
}

// --- Installments ---

func (s *SQLiteStore) CreateInstallment(in *models.Installment) error {
	_, err := s.q.Exec(
		`INSERT INTO installments (id, member_id, amount, date, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID.String(), in.MemberID.String(), in.Amount, in.Date, in.RecordedBy, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create installment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetInstallment(id uuid.UUID) (*models.Installment, error) {
	var in models.Installment
	var idStr, memberIDStr string
	row := s.q.QueryRow(
		`SELECT id, member_id, amount, date, recorded_by, created_at FROM installments WHERE id = ?`,
		id.String())
	err := row.Scan(&idStr, &memberIDStr, &in.Amount, &in.Date, &in.RecordedBy, &in.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	in.ID = uuid.MustParse(idStr)
	in.MemberID = uuid.MustParse(memberIDStr)
	return &in, nil
}

func (s *SQLiteStore) UpdateInstallment(in *models.Installment) error {
	result, err := s.q.Exec(
		`UPDATE installments SET member_id = ?, amount = ?, date = ?, recorded_by = ? WHERE id = ?`,
		in.MemberID.String(), in.Amount, in.Date, in.RecordedBy, in.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) DeleteInstallment(id uuid.UUID) error {
	result, err := s.q.Exec(`DELETE FROM installments WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete installment: %w", err)
	}
	return checkAffected(result)
}

// --- Loans ---

func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	_, err := s.q.Exec(
		`INSERT INTO loans (id, member_id, amount, deduction, net_amount, interest_rate, status, outstanding, approved_by, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.MemberID.String(), loan.Amount, loan.Deduction, loan.NetAmount,
		loan.InterestRate, loan.Status, loan.Outstanding, loan.ApprovedBy, loan.Date, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.q.QueryRow(
		`SELECT id, member_id, amount, deduction, net_amount, interest_rate, status, outstanding, approved_by, date, created_at, updated_at
		FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadLoanChildren(loan); err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *SQLiteStore) UpdateLoan(loan *models.Loan) error {
	result, err := s.q.Exec(
		`UPDATE loans SET member_id = ?, amount = ?, deduction = ?, net_amount = ?, interest_rate = ?, status = ?, outstanding = ?, approved_by = ?, date = ?, updated_at = ? WHERE id = ?`,
		loan.MemberID.String(), loan.Amount, loan.Deduction, loan.NetAmount, loan.InterestRate,
		loan.Status, loan.Outstanding, loan.ApprovedBy, loan.Date, loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return checkAffected(result)
}

// DeleteLoan removes a loan and its child records.
func (s *SQLiteStore) DeleteLoan(id uuid.UUID) error {
	if _, err := s.q.Exec(`DELETE FROM repayments WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete loan repayments: %w", err)
	}
	if _, err := s.q.Exec(`DELETE FROM interest_payments WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete loan interest payments: %w", err)
	}
	result, err := s.q.Exec(`DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) GetActiveLoansForMember(memberID uuid.UUID) ([]*models.Loan, error) {
	rows, err := s.q.Query(
		`SELECT id, member_id, amount, deduction, net_amount, interest_rate, status, outstanding, approved_by, date, created_at, updated_at
		FROM loans WHERE member_id = ? AND status = ? ORDER BY date ASC, created_at ASC`,
		memberID.String(), models.LoanStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to get active loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during loan rows iteration: %w", err)
	}
	for _, loan := range loans {
		if err := s.loadLoanChildren(loan); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var idStr, memberIDStr string
	err := row.Scan(&idStr, &memberIDStr, &loan.Amount, &loan.Deduction, &loan.NetAmount,
		&loan.InterestRate, &loan.Status, &loan.Outstanding, &loan.ApprovedBy, &loan.Date,
		&loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}
	loan.ID = uuid.MustParse(idStr)
	loan.MemberID = uuid.MustParse(memberIDStr)
	return &loan, nil
}

func (s *SQLiteStore) loadLoanChildren(loan *models.Loan) error {
	rows, err := s.q.Query(
		`SELECT id, loan_id, amount, date, interest_payment_id FROM repayments WHERE loan_id = ? ORDER BY date ASC, id ASC`,
		loan.ID.String())
	if err != nil {
		return fmt.Errorf("failed to get repayments for loan %s: %w", loan.ID, err)
	}
	defer rows.Close()

	loan.Repayments = []models.Repayment{}
	for rows.Next() {
		var r models.Repayment
		var idStr, loanIDStr string
		var interestID sql.NullString
		if err := rows.Scan(&idStr, &loanIDStr, &r.Amount, &r.Date, &interestID); err != nil {
			return fmt.Errorf("failed to scan repayment row: %w", err)
		}
		r.ID = uuid.MustParse(idStr)
		r.LoanID = uuid.MustParse(loanIDStr)
		if interestID.Valid {
			id := uuid.MustParse(interestID.String)
			r.InterestPaymentID = &id
		}
		loan.Repayments = append(loan.Repayments, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during repayment rows iteration: %w", err)
	}

	irows, err := s.q.Query(
		`SELECT id, loan_id, amount, date, distribution_id FROM interest_payments WHERE loan_id = ? ORDER BY date ASC, id ASC`,
		loan.ID.String())
	if err != nil {
		return fmt.Errorf("failed to get interest payments for loan %s: %w", loan.ID, err)
	}
	defer irows.Close()

	loan.InterestPayments = []models.InterestPayment{}
	for irows.Next() {
		var p models.InterestPayment
		var idStr, loanIDStr, distIDStr string
		if err := irows.Scan(&idStr, &loanIDStr, &p.Amount, &p.Date, &distIDStr); err != nil {
			return fmt.Errorf("failed to scan interest payment row: %w", err)
		}
		p.ID = uuid.MustParse(idStr)
		p.LoanID = uuid.MustParse(loanIDStr)
		p.DistributionID = uuid.MustParse(distIDStr)
		loan.InterestPayments = append(loan.InterestPayments, p)
	}
	if err := irows.Err(); err != nil {
		return fmt.Errorf("error during interest payment rows iteration: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateRepayment(r *models.Repayment) error {
	var interestID any
	if r.InterestPaymentID != nil {
		interestID = r.InterestPaymentID.String()
	}
	_, err := s.q.Exec(
		`INSERT INTO repayments (id, loan_id, amount, date, interest_payment_id) VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.LoanID.String(), r.Amount, r.Date, interestID,
	)
	if err != nil {
		return fmt.Errorf("failed to create repayment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRepayment(r *models.Repayment) error {
	result, err := s.q.Exec(
		`UPDATE repayments SET amount = ?, date = ? WHERE id = ?`,
		r.Amount, r.Date, r.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update repayment: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) DeleteRepayment(id uuid.UUID) error {
	result, err := s.q.Exec(`DELETE FROM repayments WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete repayment: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) CreateInterestPayment(p *models.InterestPayment) error {
	_, err := s.q.Exec(
		`INSERT INTO interest_payments (id, loan_id, amount, date, distribution_id) VALUES (?, ?, ?, ?, ?)`,
		p.ID.String(), p.LoanID.String(), p.Amount, p.Date, p.DistributionID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create interest payment: %w", err)
	}
	return nil
}

// --- Expenses ---

func (s *SQLiteStore) CreateExpense(e *models.Expense) error {
	_, err := s.q.Exec(
		`INSERT INTO expenses (id, amount, description, date, recorded_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Amount, e.Description, e.Date, e.RecordedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExpense(id uuid.UUID) (*models.Expense, error) {
	var e models.Expense
	var idStr string
	row := s.q.QueryRow(
		`SELECT id, amount, description, date, recorded_by, created_at FROM expenses WHERE id = ?`,
		id.String())
	err := row.Scan(&idStr, &e.Amount, &e.Description, &e.Date, &e.RecordedBy, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	e.ID = uuid.MustParse(idStr)
	return &e, nil
}

func (s *SQLiteStore) UpdateExpense(e *models.Expense) error {
	result, err := s.q.Exec(
		`UPDATE expenses SET amount = ?, description = ?, date = ? WHERE id = ?`,
		e.Amount, e.Description, e.Date, e.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return checkAffected(result)
}

func (s *SQLiteStore) DeleteExpense(id uuid.UUID) error {
	result, err := s.q.Exec(`DELETE FROM expenses WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return checkAffected(result)
}

// --- Distributions ---

func (s *SQLiteStore) CreateDistribution(d *models.Distribution) error {
	var refID any
	if d.RefID != nil {
		refID = d.RefID.String()
	}
	_, err := s.q.Exec(
		`INSERT INTO distributions (id, type, total_amount, per_member_amount, date, ref_id) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID.String(), string(d.Type), d.TotalAmount, d.PerMemberAmount, d.Date, refID,
	)
	if err != nil {
		return fmt.Errorf("failed to create distribution: %w", err)
	}
	for _, share := range d.Shares {
		_, err := s.q.Exec(
			`INSERT INTO distribution_shares (distribution_id, member_id, amount) VALUES (?, ?, ?)`,
			d.ID.String(), share.MemberID.String(), share.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to create distribution share: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetDistributionsByRef(refID uuid.UUID) ([]*models.Distribution, error) {
	rows, err := s.q.Query(
		`SELECT id, type, total_amount, per_member_amount, date, ref_id FROM distributions WHERE ref_id = ? ORDER BY date ASC, id ASC`,
		refID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get distributions: %w", err)
	}
	defer rows.Close()

	var dists []*models.Distribution
	for rows.Next() {
		var d models.Distribution
		var idStr, typ string
		var ref sql.NullString
		if err := rows.Scan(&idStr, &typ, &d.TotalAmount, &d.PerMemberAmount, &d.Date, &ref); err != nil {
			return nil, fmt.Errorf("failed to scan distribution row: %w", err)
		}
		d.ID = uuid.MustParse(idStr)
		d.Type = models.DistributionType(typ)
		if ref.Valid {
			id := uuid.MustParse(ref.String)
			d.RefID = &id
		}
		dists = append(dists, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during distribution rows iteration: %w", err)
	}
	for _, d := range dists {
		if err := s.loadShares(d); err != nil {
			return nil, err
		}
	}
	return dists, nil
}

func (s *SQLiteStore) loadShares(d *models.Distribution) error {
	rows, err := s.q.Query(
		`SELECT distribution_id, member_id, amount FROM distribution_shares WHERE distribution_id = ? ORDER BY member_id ASC`,
		d.ID.String())
	if err != nil {
		return fmt.Errorf("failed to get distribution shares: %w", err)
	}
	defer rows.Close()

	d.Shares = []models.DistributionShare{}
	for rows.Next() {
		var share models.DistributionShare
		var distIDStr, memberIDStr string
		if err := rows.Scan(&distIDStr, &memberIDStr, &share.Amount); err != nil {
			return fmt.Errorf("failed to scan distribution share row: %w", err)
		}
		share.DistributionID = uuid.MustParse(distIDStr)
		share.MemberID = uuid.MustParse(memberIDStr)
		d.Shares = append(d.Shares, share)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during share rows iteration: %w", err)
	}
	return nil
}

// DeleteDistribution removes a distribution and its share snapshot.
func (s *SQLiteStore) DeleteDistribution(id uuid.UUID) error {
	if _, err := s.q.Exec(`DELETE FROM distribution_shares WHERE distribution_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete distribution shares: %w", err)
	}
	result, err := s.q.Exec(`DELETE FROM distributions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete distribution: %w", err)
	}
	return checkAffected(result)
}

// --- History and audit log ---

func (s *SQLiteStore) CreateHistoryEntry(h *models.HistoryEntry) error {
	_, err := s.q.Exec(
		`INSERT INTO history_entries (id, member_id, amount, type, date, ref_id) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID.String(), h.MemberID.String(), h.Amount, string(h.Type), h.Date, h.RefID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to create history entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteHistoryByRef(refID uuid.UUID) error {
	if _, err := s.q.Exec(`DELETE FROM history_entries WHERE ref_id = ?`, refID.String()); err != nil {
		return fmt.Errorf("failed to delete history entries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetHistoryForMember(memberID uuid.UUID) ([]*models.HistoryEntry, error) {
	rows, err := s.q.Query(
		`SELECT id, member_id, amount, type, date, ref_id FROM history_entries WHERE member_id = ? ORDER BY date ASC, id ASC`,
		memberID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get history for member %s: %w", memberID, err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var h models.HistoryEntry
		var idStr, memberIDStr, typ, refIDStr string
		if err := rows.Scan(&idStr, &memberIDStr, &h.Amount, &typ, &h.Date, &refIDStr); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		h.ID = uuid.MustParse(idStr)
		h.MemberID = uuid.MustParse(memberIDStr)
		h.Type = models.HistoryType(typ)
		h.RefID = uuid.MustParse(refIDStr)
		entries = append(entries, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during history rows iteration: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) CreateTransactionLog(t *models.TransactionLog) error {
	var memberID any
	if t.MemberID != nil {
		memberID = t.MemberID.String()
	}
	_, err := s.q.Exec(
		`INSERT INTO transaction_logs (id, type, action, amount, member_id, reference_id, fund_before, fund_after, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Type, t.Action, t.Amount, memberID, t.ReferenceID.String(), t.FundBefore, t.FundAfter, t.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTransactionLogs() ([]*models.TransactionLog, error) {
	rows, err := s.q.Query(
		`SELECT id, type, action, amount, member_id, reference_id, fund_before, fund_after, date FROM transaction_logs ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.TransactionLog
	for rows.Next() {
		var t models.TransactionLog
		var idStr, refIDStr string
		var memberID sql.NullString
		if err := rows.Scan(&idStr, &t.Type, &t.Action, &t.Amount, &memberID, &refIDStr, &t.FundBefore, &t.FundAfter, &t.Date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction log row: %w", err)
		}
		t.ID = uuid.MustParse(idStr)
		t.ReferenceID = uuid.MustParse(refIDStr)
		if memberID.Valid {
			id := uuid.MustParse(memberID.String)
			t.MemberID = &id
		}
		logs = append(logs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during transaction log rows iteration: %w", err)
	}
	return logs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
