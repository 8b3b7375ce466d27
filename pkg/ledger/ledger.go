package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
	"coopfund/pkg/store"
)

// deductionRate is the origination fee taken from every approved loan and
// redistributed across the active members.
var deductionRate = decimal.NewFromFloat(0.02)

var hundred = decimal.NewFromInt(100)

// centsScale is the rounding scale for all monetary amounts.
const centsScale = 2

// Ledger is the consistency engine of the cooperative. Every mutating
// operation runs inside one storage transaction covering the primary
// record, the fund, the affected member balances, the distribution
// snapshot, and both audit trails, so an event either lands completely or
// not at all.
type Ledger struct {
	storage store.Storage
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{storage: s}
}

// Fund returns the pooled balance, creating the zero record on first use.
func (l *Ledger) Fund() (*models.Fund, error) {
	return l.storage.GetFund()
}

// CreateMember registers a new member with zero balances.
func (l *Ledger) CreateMember(name string) (*models.Member, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: member name must not be empty", ErrValidation)
	}
	member := &models.Member{
		ID:                uuid.New(),
		Name:              name,
		InvestmentBalance: decimal.Zero,
		InterestEarned:    decimal.Zero,
		JoinedAt:          time.Now(),
	}
	if err := l.storage.CreateMember(member); err != nil {
		return nil, fmt.Errorf("failed to store member: %w", err)
	}
	return member, nil
}

// SetMemberPaused pauses or unpauses a member. A paused member is left out
// of every subsequent distribution snapshot but keeps their stored balances.
func (l *Ledger) SetMemberPaused(id uuid.UUID, paused bool) (*models.Member, error) {
	var member *models.Member
	err := l.storage.RunInTx(func(s store.Store) error {
		m, err := s.GetMember(id)
		if err != nil {
			return notFound(err, "member", id)
		}
		m.Paused = paused
		if err := s.UpdateMember(m); err != nil {
			return err
		}
		member = m
		return nil
	})
	return member, err
}

// GetMember retrieves a member by ID.
func (l *Ledger) GetMember(id uuid.UUID) (*models.Member, error) {
	m, err := l.storage.GetMember(id)
	if err != nil {
		return nil, notFound(err, "member", id)
	}
	return m, nil
}

// ListMembers returns all members, active and paused.
func (l *Ledger) ListMembers() ([]*models.Member, error) {
	return l.storage.GetAllMembers()
}

// GetLoan retrieves a loan with its repayments and interest payments.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, notFound(err, "loan", id)
	}
	return loan, nil
}

// MemberHistory returns a member's append-only ledger lines. Their signed
// sum always equals the member's stored balances.
func (l *Ledger) MemberHistory(id uuid.UUID) ([]*models.HistoryEntry, error) {
	if _, err := l.storage.GetMember(id); err != nil {
		return nil, notFound(err, "member", id)
	}
	return l.storage.GetHistoryForMember(id)
}

// TransactionLogs returns the system-wide audit trail for reporting.
func (l *Ledger) TransactionLogs() ([]*models.TransactionLog, error) {
	return l.storage.GetTransactionLogs()
}

// logTransaction appends one system-wide audit record for a mutation. The
// log is write-only from the engine's point of view; balances are never
// rebuilt from it.
func logTransaction(s store.Store, entry models.TransactionLog) error {
	entry.ID = uuid.New()
	if entry.Date.IsZero() {
		entry.Date = time.Now()
	}
	return s.CreateTransactionLog(&entry)
}
