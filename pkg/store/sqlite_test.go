package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "coopfund_test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestMember(name string) *models.Member {
	return &models.Member{
		ID:                uuid.New(),
		Name:              name,
		InvestmentBalance: decimal.Zero,
		InterestEarned:    decimal.Zero,
		JoinedAt:          time.Now(),
	}
}

func TestSQLiteStore_FundLazyInit(t *testing.T) {
	s := newTestStore(t)

	fund, err := s.GetFund()
	if err != nil {
		t.Fatalf("Failed to get fund: %v", err)
	}
	if !fund.TotalFund.IsZero() {
		t.Errorf("Expected zero fund on first access, got %s", fund.TotalFund)
	}

	adjusted, err := s.AdjustFund(decimal.NewFromFloat(123.45))
	if err != nil {
		t.Fatalf("Failed to adjust fund: %v", err)
	}
	if !adjusted.TotalFund.Equal(decimal.NewFromFloat(123.45)) {
		t.Errorf("Expected fund 123.45, got %s", adjusted.TotalFund)
	}

	fund, err = s.GetFund()
	if err != nil {
		t.Fatalf("Failed to re-read fund: %v", err)
	}
	if !fund.TotalFund.Equal(decimal.NewFromFloat(123.45)) {
		t.Errorf("Expected persisted fund 123.45, got %s", fund.TotalFund)
	}
}

func TestSQLiteStore_ActiveMembersOrderedAndFiltered(t *testing.T) {
	s := newTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		m := newTestMember(fmt.Sprintf("m%d", i))
		if i == 1 {
			m.Paused = true
		}
		if err := s.CreateMember(m); err != nil {
			t.Fatalf("Failed to create member: %v", err)
		}
		if !m.Paused {
			ids = append(ids, m.ID.String())
		}
	}

	active, err := s.GetActiveMembers()
	if err != nil {
		t.Fatalf("Failed to get active members: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Expected 2 active members, got %d", len(active))
	}
	if active[0].ID.String() > active[1].ID.String() {
		t.Error("Active members not in ascending ID order")
	}
	for _, m := range active {
		found := false
		for _, id := range ids {
			if m.ID.String() == id {
				found = true
			}
		}
		if !found {
			t.Errorf("Unexpected member %s in active set", m.ID)
		}
	}
}

func TestSQLiteStore_LoanWithChildren(t *testing.T) {
	s := newTestStore(t)

	member := newTestMember("borrower")
	if err := s.CreateMember(member); err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	now := time.Now()
	loan := &models.Loan{
		ID:           uuid.New(),
		MemberID:     member.ID,
		Amount:       decimal.NewFromInt(10000),
		Deduction:    decimal.NewFromInt(200),
		NetAmount:    decimal.NewFromInt(9800),
		InterestRate: decimal.NewFromInt(1),
		Status:       models.LoanStatusActive,
		Outstanding:  decimal.NewFromInt(10000),
		ApprovedBy:   "admin",
		Date:         now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	ip := &models.InterestPayment{
		ID:             uuid.New(),
		LoanID:         loan.ID,
		Amount:         decimal.NewFromInt(100),
		Date:           now,
		DistributionID: uuid.New(),
	}
	if err := s.CreateInterestPayment(ip); err != nil {
		t.Fatalf("Failed to create interest payment: %v", err)
	}
	repayment := &models.Repayment{
		ID:                uuid.New(),
		LoanID:            loan.ID,
		Amount:            decimal.NewFromInt(5000),
		Date:              now,
		InterestPaymentID: &ip.ID,
	}
	if err := s.CreateRepayment(repayment); err != nil {
		t.Fatalf("Failed to create repayment: %v", err)
	}

	fetched, err := s.GetLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if !fetched.Amount.Equal(loan.Amount) {
		t.Errorf("Expected amount %s, got %s", loan.Amount, fetched.Amount)
	}
	if len(fetched.Repayments) != 1 || len(fetched.InterestPayments) != 1 {
		t.Fatalf("Expected 1 repayment and 1 interest payment, got %d/%d",
			len(fetched.Repayments), len(fetched.InterestPayments))
	}
	if fetched.Repayments[0].InterestPaymentID == nil || *fetched.Repayments[0].InterestPaymentID != ip.ID {
		t.Error("Repayment lost its interest payment link")
	}

	if err := s.DeleteLoan(loan.ID); err != nil {
		t.Fatalf("Failed to delete loan: %v", err)
	}
	if _, err := s.GetLoan(loan.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStore_DistributionSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)

	refID := uuid.New()
	dist := &models.Distribution{
		ID:              uuid.New(),
		Type:            models.DistributionTypeInterest,
		TotalAmount:     decimal.NewFromInt(100),
		PerMemberAmount: decimal.RequireFromString("33.33"),
		Date:            time.Now(),
		RefID:           &refID,
		Shares: []models.DistributionShare{
			{MemberID: uuid.New(), Amount: decimal.RequireFromString("33.34")},
			{MemberID: uuid.New(), Amount: decimal.RequireFromString("33.33")},
			{MemberID: uuid.New(), Amount: decimal.RequireFromString("33.33")},
		},
	}
	for i := range dist.Shares {
		dist.Shares[i].DistributionID = dist.ID
	}
	if err := s.CreateDistribution(dist); err != nil {
		t.Fatalf("Failed to create distribution: %v", err)
	}

	dists, err := s.GetDistributionsByRef(refID)
	if err != nil {
		t.Fatalf("Failed to get distributions: %v", err)
	}
	if len(dists) != 1 {
		t.Fatalf("Expected 1 distribution, got %d", len(dists))
	}
	if len(dists[0].Shares) != 3 {
		t.Fatalf("Expected 3 shares, got %d", len(dists[0].Shares))
	}
	sum := decimal.Zero
	for _, share := range dists[0].Shares {
		sum = sum.Add(share.Amount)
	}
	if !sum.Equal(dist.TotalAmount) {
		t.Errorf("Expected shares to sum to %s, got %s", dist.TotalAmount, sum)
	}

	if err := s.DeleteDistribution(dist.ID); err != nil {
		t.Fatalf("Failed to delete distribution: %v", err)
	}
	dists, err = s.GetDistributionsByRef(refID)
	if err != nil {
		t.Fatalf("Failed to re-query distributions: %v", err)
	}
	if len(dists) != 0 {
		t.Errorf("Expected no distributions after delete, got %d", len(dists))
	}
}

func TestSQLiteStore_RunInTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)

	member := newTestMember("alice")
	boom := errors.New("boom")
	err := s.RunInTx(func(tx Store) error {
		if err := tx.CreateMember(member); err != nil {
			return err
		}
		if _, err := tx.AdjustFund(decimal.NewFromInt(500)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the inner error back, got %v", err)
	}

	if _, err := s.GetMember(member.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected member write rolled back, got %v", err)
	}
	fund, err := s.GetFund()
	if err != nil {
		t.Fatalf("Failed to get fund: %v", err)
	}
	if !fund.TotalFund.IsZero() {
		t.Errorf("Expected fund write rolled back, got %s", fund.TotalFund)
	}
}

func TestSQLiteStore_RunInTxCommits(t *testing.T) {
	s := newTestStore(t)

	member := newTestMember("bob")
	err := s.RunInTx(func(tx Store) error {
		if err := tx.CreateMember(member); err != nil {
			return err
		}
		_, err := tx.AdjustFund(decimal.NewFromInt(250))
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	if _, err := s.GetMember(member.ID); err != nil {
		t.Errorf("Expected member persisted, got %v", err)
	}
	fund, err := s.GetFund()
	if err != nil {
		t.Fatalf("Failed to get fund: %v", err)
	}
	if !fund.TotalFund.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected fund 250, got %s", fund.TotalFund)
	}
}

func TestSQLiteStore_HistoryByRef(t *testing.T) {
	s := newTestStore(t)

	member := newTestMember("carol")
	if err := s.CreateMember(member); err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	refA, refB := uuid.New(), uuid.New()
	for _, ref := range []uuid.UUID{refA, refB} {
		entry := &models.HistoryEntry{
			ID:       uuid.New(),
			MemberID: member.ID,
			Amount:   decimal.NewFromInt(10),
			Type:     models.HistoryTypeInterest,
			Date:     time.Now(),
			RefID:    ref,
		}
		if err := s.CreateHistoryEntry(entry); err != nil {
			t.Fatalf("Failed to create history entry: %v", err)
		}
	}

	if err := s.DeleteHistoryByRef(refA); err != nil {
		t.Fatalf("Failed to delete history by ref: %v", err)
	}
	entries, err := s.GetHistoryForMember(member.ID)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(entries) != 1 || entries[0].RefID != refB {
		t.Errorf("Expected only the refB entry to remain, got %d entries", len(entries))
	}
}
