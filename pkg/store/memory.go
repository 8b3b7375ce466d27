package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
)

// MemoryStore is an in-memory Storage used by tests and the "memory"
// backend. RunInTx snapshots the whole dataset and restores it on error,
// mirroring the rollback semantics of the SQLite backend.
type MemoryStore struct {
	mu sync.Mutex
	d  memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{d: newMemData()}
}

type memData struct {
	fund             *models.Fund
	members          map[uuid.UUID]models.Member
	installments     map[uuid.UUID]models.Installment
	loans            map[uuid.UUID]models.Loan
	repayments       map[uuid.UUID]models.Repayment
	interestPayments map[uuid.UUID]models.InterestPayment
	expenses         map[uuid.UUID]models.Expense
	distributions    map[uuid.UUID]models.Distribution
	history          []models.HistoryEntry
	txlogs           []models.TransactionLog
}

func newMemData() memData {
	return memData{
		members:          make(map[uuid.UUID]models.Member),
		installments:     make(map[uuid.UUID]models.Installment),
		loans:            make(map[uuid.UUID]models.Loan),
		repayments:       make(map[uuid.UUID]models.Repayment),
		interestPayments: make(map[uuid.UUID]models.InterestPayment),
		expenses:         make(map[uuid.UUID]models.Expense),
		distributions:    make(map[uuid.UUID]models.Distribution),
	}
}

// clone deep-copies the dataset. Record structs hold only value types and
// immutable decimals, so copying the containers is enough.
func (d *memData) clone() memData {
	c := newMemData()
	if d.fund != nil {
		f := *d.fund
		c.fund = &f
	}
	for k, v := range d.members {
		c.members[k] = v
	}
	for k, v := range d.installments {
		c.installments[k] = v
	}
	for k, v := range d.loans {
		v.Repayments = nil
		v.InterestPayments = nil
		c.loans[k] = v
	}
	for k, v := range d.repayments {
		c.repayments[k] = v
	}
	for k, v := range d.interestPayments {
		c.interestPayments[k] = v
	}
	for k, v := range d.expenses {
		c.expenses[k] = v
	}
	for k, v := range d.distributions {
		shares := make([]models.DistributionShare, len(v.Shares))
		copy(shares, v.Shares)
		v.Shares = shares
		c.distributions[k] = v
	}
	c.history = append([]models.HistoryEntry(nil), d.history...)
	c.txlogs = append([]models.TransactionLog(nil), d.txlogs...)
	return c
}

// memTx is the unlocked Store view used inside RunInTx and by the locked
// wrappers on MemoryStore.
type memTx struct {
	d *memData
}

func (s *MemoryStore) RunInTx(fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.d.clone()
	if err := fn(&memTx{d: &s.d}); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (t *memTx) GetFund() (*models.Fund, error) {
	if t.d.fund == nil {
		t.d.fund = &models.Fund{TotalFund: decimal.Zero}
	}
	f := *t.d.fund
	return &f, nil
}

func (t *memTx) AdjustFund(delta decimal.Decimal) (*models.Fund, error) {
	fund, err := t.GetFund()
	if err != nil {
		return nil, err
	}
	fund.TotalFund = fund.TotalFund.Add(delta)
	t.d.fund = &models.Fund{TotalFund: fund.TotalFund}
	return fund, nil
}

func (t *memTx) CreateMember(m *models.Member) error {
	t.d.members[m.ID] = *m
	return nil
}

func (t *memTx) GetMember(id uuid.UUID) (*models.Member, error) {
	m, ok := t.d.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (t *memTx) UpdateMember(m *models.Member) error {
	if _, ok := t.d.members[m.ID]; !ok {
		return ErrNotFound
	}
	t.d.members[m.ID] = *m
	return nil
}

func (t *memTx) GetAllMembers() ([]*models.Member, error) {
	return t.memberList(func(models.Member) bool { return true }), nil
}

func (t *memTx) GetActiveMembers() ([]*models.Member, error) {
	return t.memberList(func(m models.Member) bool { return !m.Paused }), nil
}

func (t *memTx) memberList(keep func(models.Member) bool) []*models.Member {
	var members []*models.Member
	for _, m := range t.d.members {
		if keep(m) {
			mm := m
			members = append(members, &mm)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].ID.String() < members[j].ID.String()
	})
	return members
}

func (t *memTx) CreateInstallment(in *models.Installment) error {
	t.d.installments[in.ID] = *in
	return nil
}

func (t *memTx) GetInstallment(id uuid.UUID) (*models.Installment, error) {
	in, ok := t.d.installments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &in, nil
}

func (t *memTx) UpdateInstallment(in *models.Installment) error {
	if _, ok := t.d.installments[in.ID]; !ok {
		return ErrNotFound
	}
	t.d.installments[in.ID] = *in
	return nil
}

func (t *memTx) DeleteInstallment(id uuid.UUID) error {
	if _, ok := t.d.installments[id]; !ok {
		return ErrNotFound
	}
	delete(t.d.installments, id)
	return nil
}

func (t *memTx) CreateLoan(loan *models.Loan) error {
	stored := *loan
	stored.Repayments = nil
	stored.InterestPayments = nil
	t.d.loans[loan.ID] = stored
	return nil
}

func (t *memTx) GetLoan(id uuid.UUID) (*models.Loan, error) {
	stored, ok := t.d.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	loan := stored
	t.attachChildren(&loan)
	return &loan, nil
}

func (t *memTx) attachChildren(loan *models.Loan) {
	loan.Repayments = []models.Repayment{}
	for _, r := range t.d.repayments {
		if r.LoanID == loan.ID {
			loan.Repayments = append(loan.Repayments, r)
		}
	}
	sort.Slice(loan.Repayments, func(i, j int) bool {
		a, b := loan.Repayments[i], loan.Repayments[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID.String() < b.ID.String()
	})

	loan.InterestPayments = []models.InterestPayment{}
	for _, p := range t.d.interestPayments {
		if p.LoanID == loan.ID {
			loan.InterestPayments = append(loan.InterestPayments, p)
		}
	}
	sort.Slice(loan.InterestPayments, func(i, j int) bool {
		a, b := loan.InterestPayments[i], loan.InterestPayments[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID.String() < b.ID.String()
	})
}

func (t *memTx) UpdateLoan(loan *models.Loan) error {
	if _, ok := t.d.loans[loan.ID]; !ok {
		return ErrNotFound
	}
	stored := *loan
	stored.Repayments = nil
	stored.InterestPayments = nil
	t.d.loans[loan.ID] = stored
	return nil
}

func (t *memTx) DeleteLoan(id uuid.UUID) error {
	if _, ok := t.d.loans[id]; !ok {
		return ErrNotFound
	}
	for rid, r := range t.d.repayments {
		if r.LoanID == id {
			delete(t.d.repayments, rid)
		}
	}
	for pid, p := range t.d.interestPayments {
		if p.LoanID == id {
			delete(t.d.interestPayments, pid)
		}
	}
	delete(t.d.loans, id)
	return nil
}

func (t *memTx) GetActiveLoansForMember(memberID uuid.UUID) ([]*models.Loan, error) {
	var loans []*models.Loan
	for _, stored := range t.d.loans {
		if stored.MemberID == memberID && stored.Status == models.LoanStatusActive {
			loan := stored
			t.attachChildren(&loan)
			loans = append(loans, &loan)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		a, b := loans[i], loans[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return loans, nil
}

func (t *memTx) CreateRepayment(r *models.Repayment) error {
	t.d.repayments[r.ID] = *r
	return nil
}

func (t *memTx) UpdateRepayment(r *models.Repayment) error {
	if _, ok := t.d.repayments[r.ID]; !ok {
		return ErrNotFound
	}
	t.d.repayments[r.ID] = *r
	return nil
}

func (t *memTx) DeleteRepayment(id uuid.UUID) error {
	if _, ok := t.d.repayments[id]; !ok {
		return ErrNotFound
	}
	delete(t.d.repayments, id)
	return nil
}

func (t *memTx) CreateInterestPayment(p *models.InterestPayment) error {
	t.d.interestPayments[p.ID] = *p
	return nil
}

func (t *memTx) CreateExpense(e *models.Expense) error {
	t.d.expenses[e.ID] = *e
	return nil
}

func (t *memTx) GetExpense(id uuid.UUID) (*models.Expense, error) {
	e, ok := t.d.expenses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (t *memTx) UpdateExpense(e *models.Expense) error {
	if _, ok := t.d.expenses[e.ID]; !ok {
		return ErrNotFound
	}
	t.d.expenses[e.ID] = *e
	return nil
}

func (t *memTx) DeleteExpense(id uuid.UUID) error {
	if _, ok := t.d.expenses[id]; !ok {
		return ErrNotFound
	}
	delete(t.d.expenses, id)
	return nil
}

func (t *memTx) CreateDistribution(d *models.Distribution) error {
	stored := *d
	stored.Shares = append([]models.DistributionShare(nil), d.Shares...)
	t.d.distributions[d.ID] = stored
	return nil
}

func (t *memTx) GetDistributionsByRef(refID uuid.UUID) ([]*models.Distribution, error) {
	var dists []*models.Distribution
	for _, stored := range t.d.distributions {
		if stored.RefID != nil && *stored.RefID == refID {
			d := stored
			d.Shares = append([]models.DistributionShare(nil), stored.Shares...)
			dists = append(dists, &d)
		}
	}
	sort.Slice(dists, func(i, j int) bool {
		a, b := dists[i], dists[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID.String() < b.ID.String()
	})
	return dists, nil
}

func (t *memTx) DeleteDistribution(id uuid.UUID) error {
	if _, ok := t.d.distributions[id]; !ok {
		return ErrNotFound
	}
	delete(t.d.distributions, id)
	return nil
}

func (t *memTx) CreateHistoryEntry(h *models.HistoryEntry) error {
	t.d.history = append(t.d.history, *h)
	return nil
}

func (t *memTx) DeleteHistoryByRef(refID uuid.UUID) error {
	kept := t.d.history[:0]
	for _, h := range t.d.history {
		if h.RefID != refID {
			kept = append(kept, h)
		}
	}
	t.d.history = kept
	return nil
}

func (t *memTx) GetHistoryForMember(memberID uuid.UUID) ([]*models.HistoryEntry, error) {
	var entries []*models.HistoryEntry
	for i := range t.d.history {
		if t.d.history[i].MemberID == memberID {
			h := t.d.history[i]
			entries = append(entries, &h)
		}
	}
	return entries, nil
}

func (t *memTx) CreateTransactionLog(tl *models.TransactionLog) error {
	t.d.txlogs = append(t.d.txlogs, *tl)
	return nil
}

func (t *memTx) GetTransactionLogs() ([]*models.TransactionLog, error) {
	logs := make([]*models.TransactionLog, 0, len(t.d.txlogs))
	for i := range t.d.txlogs {
		tl := t.d.txlogs[i]
		logs = append(logs, &tl)
	}
	return logs, nil
}

// Locked wrappers so MemoryStore itself satisfies Storage for display reads
// and test setup outside a transaction.

func (s *MemoryStore) tx() *memTx { return &memTx{d: &s.d} }

func (s *MemoryStore) GetFund() (*models.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetFund()
}

func (s *MemoryStore) AdjustFund(delta decimal.Decimal) (*models.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().AdjustFund(delta)
}

func (s *MemoryStore) CreateMember(m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateMember(m)
}

func (s *MemoryStore) GetMember(id uuid.UUID) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetMember(id)
}

func (s *MemoryStore) UpdateMember(m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateMember(m)
}

func (s *MemoryStore) GetAllMembers() ([]*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetAllMembers()
}

func (s *MemoryStore) GetActiveMembers() ([]*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetActiveMembers()
}

func (s *MemoryStore) CreateInstallment(in *models.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateInstallment(in)
}

func (s *MemoryStore) GetInstallment(id uuid.UUID) (*models.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetInstallment(id)
}

func (s *MemoryStore) UpdateInstallment(in *models.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateInstallment(in)
}

func (s *MemoryStore) DeleteInstallment(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().DeleteInstallment(id)
}

func (s *MemoryStore) CreateLoan(loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateLoan(loan)
}

func (s *MemoryStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetLoan(id)
}

func (s *MemoryStore) UpdateLoan(loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateLoan(loan)
}

func (s *MemoryStore) DeleteLoan(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().DeleteLoan(id)
}

func (s *MemoryStore) GetActiveLoansForMember(memberID uuid.UUID) ([]*models.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetActiveLoansForMember(memberID)
}

func (s *MemoryStore) CreateRepayment(r *models.Repayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateRepayment(r)
}

func (s *MemoryStore) UpdateRepayment(r *models.Repayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateRepayment(r)
}

func (s *MemoryStore) DeleteRepayment(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().DeleteRepayment(id)
}

func (s *MemoryStore) CreateInterestPayment(p *models.InterestPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateInterestPayment(p)
}

func (s *MemoryStore) CreateExpense(e *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateExpense(e)
}

func (s *MemoryStore) GetExpense(id uuid.UUID) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetExpense(id)
}

func (s *MemoryStore) UpdateExpense(e *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().UpdateExpense(e)
}

func (s *MemoryStore) DeleteExpense(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().DeleteExpense(id)
}

func (s *MemoryStore) CreateDistribution(d *models.Distribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateDistribution(d)
}

func (s *MemoryStore) GetDistributionsByRef(refID uuid.UUID) ([]*models.Distribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetDistributionsByRef(refID)
}

func (s *MemoryStore) DeleteDistribution(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().DeleteDistribution(id)
}

func (s *MemoryStore) CreateHistoryEntry(h *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateHistoryEntry(h)
}

func (s *MemoryStore) DeleteHistoryByRef(refID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().DeleteHistoryByRef(refID)
}

func (s *MemoryStore) GetHistoryForMember(memberID uuid.UUID) ([]*models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetHistoryForMember(memberID)
}

func (s *MemoryStore) CreateTransactionLog(tl *models.TransactionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().CreateTransactionLog(tl)
}

func (s *MemoryStore) GetTransactionLogs() ([]*models.TransactionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx().GetTransactionLogs()
}
