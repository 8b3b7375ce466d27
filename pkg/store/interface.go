package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the record-level operations shared by a durable connection
// and a transaction bound to it.
type Store interface {
	// GetFund creates the zero-balance row on first access.
	GetFund() (*models.Fund, error)
	AdjustFund(delta decimal.Decimal) (*models.Fund, error)

	CreateMember(m *models.Member) error
	GetMember(id uuid.UUID) (*models.Member, error)
	UpdateMember(m *models.Member) error
	GetAllMembers() ([]*models.Member, error)
	// GetActiveMembers returns non-paused members in ascending ID order.
	// The order is the tie-break for remainder cents in a distribution.
	GetActiveMembers() ([]*models.Member, error)

	CreateInstallment(in *models.Installment) error
	GetInstallment(id uuid.UUID) (*models.Installment, error)
	UpdateInstallment(in *models.Installment) error
	DeleteInstallment(id uuid.UUID) error

	// GetLoan loads the loan with its repayments and interest payments.
	CreateLoan(loan *models.Loan) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	UpdateLoan(loan *models.Loan) error
	DeleteLoan(id uuid.UUID) error
	// GetActiveLoansForMember returns the member's active loans oldest first.
	GetActiveLoansForMember(memberID uuid.UUID) ([]*models.Loan, error)

	CreateRepayment(r *models.Repayment) error
	UpdateRepayment(r *models.Repayment) error
	DeleteRepayment(id uuid.UUID) error
	CreateInterestPayment(p *models.InterestPayment) error

	CreateExpense(e *models.Expense) error
	GetExpense(id uuid.UUID) (*models.Expense, error)
	UpdateExpense(e *models.Expense) error
	DeleteExpense(id uuid.UUID) error

	// CreateDistribution persists the distribution and its share snapshot;
	// DeleteDistribution removes both.
	CreateDistribution(d *models.Distribution) error
	GetDistributionsByRef(refID uuid.UUID) ([]*models.Distribution, error)
	DeleteDistribution(id uuid.UUID) error

	CreateHistoryEntry(h *models.HistoryEntry) error
	DeleteHistoryByRef(refID uuid.UUID) error
	GetHistoryForMember(memberID uuid.UUID) ([]*models.HistoryEntry, error)

	CreateTransactionLog(t *models.TransactionLog) error
	GetTransactionLogs() ([]*models.TransactionLog, error)
}

// Storage is a Store that can also run a function atomically. Every mutating
// ledger operation performs all of its reads and writes inside one RunInTx
// call, so a failure anywhere rolls the whole event back.
type Storage interface {
	Store
	RunInTx(fn func(Store) error) error
	Close() error
}
