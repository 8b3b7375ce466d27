package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
	"coopfund/pkg/store"
)

func newTestLedger(t *testing.T, memberCount int) (*Ledger, []*models.Member) {
	t.Helper()
	l := NewLedger(store.NewMemoryStore())
	var members []*models.Member
	for i := 0; i < memberCount; i++ {
		m, err := l.CreateMember(fmt.Sprintf("member-%d", i+1))
		if err != nil {
			t.Fatalf("Failed to create member: %v", err)
		}
		members = append(members, m)
	}
	return l, members
}

func fundTotal(t *testing.T, l *Ledger) decimal.Decimal {
	t.Helper()
	fund, err := l.Fund()
	if err != nil {
		t.Fatalf("Failed to get fund: %v", err)
	}
	return fund.TotalFund
}

func getMember(t *testing.T, l *Ledger, id uuid.UUID) *models.Member {
	t.Helper()
	m, err := l.GetMember(id)
	if err != nil {
		t.Fatalf("Failed to get member: %v", err)
	}
	return m
}

// checkHistoryInvariant rebuilds a member's balances from their history
// lines and compares against the stored values. Positive interest and
// deduction lines belong to InterestEarned; installment lines and negative
// deduction lines (expense debits) belong to InvestmentBalance.
func checkHistoryInvariant(t *testing.T, l *Ledger, memberID uuid.UUID) {
	t.Helper()
	member := getMember(t, l, memberID)
	entries, err := l.MemberHistory(memberID)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}

	investment := decimal.Zero
	interest := decimal.Zero
	for _, e := range entries {
		switch {
		case e.Type == models.HistoryTypeInstallment:
			investment = investment.Add(e.Amount)
		case e.Type == models.HistoryTypeDeduction && e.Amount.IsNegative():
			investment = investment.Add(e.Amount)
		default:
			interest = interest.Add(e.Amount)
		}
	}
	if !member.InvestmentBalance.Equal(investment) {
		t.Errorf("Investment balance %s does not match history sum %s", member.InvestmentBalance, investment)
	}
	if !member.InterestEarned.Equal(interest) {
		t.Errorf("Interest earned %s does not match history sum %s", member.InterestEarned, interest)
	}
}

func TestSplitEvenExactSum(t *testing.T) {
	cases := []struct {
		total string
		n     int
	}{
		{"200", 3},
		{"100", 3},
		{"0.01", 2},
		{"1000", 7},
		{"33.35", 4},
	}
	for _, tc := range cases {
		total := decimal.RequireFromString(tc.total)
		shares := splitEven(total, tc.n)
		if len(shares) != tc.n {
			t.Fatalf("Expected %d shares, got %d", tc.n, len(shares))
		}
		sum := decimal.Zero
		for _, sh := range shares {
			sum = sum.Add(sh)
		}
		if !sum.Equal(total) {
			t.Errorf("Shares of %s across %d sum to %s", tc.total, tc.n, sum)
		}
		spread := shares[0].Sub(shares[len(shares)-1])
		if spread.GreaterThan(decimal.New(1, -2)) || spread.IsNegative() {
			t.Errorf("Shares of %s across %d are uneven beyond one cent: %v", tc.total, tc.n, shares)
		}
	}
}

func TestSubCentDistributionSkipsZeroShares(t *testing.T) {
	l, members := newTestLedger(t, 3)

	if _, err := l.CreateExpense(decimal.RequireFromString("0.01"), "stamp", "admin"); err != nil {
		t.Fatalf("Failed to create expense: %v", err)
	}

	// One member carries the cent; the others get no history padding.
	var charged, empty int
	for _, m := range members {
		entries, err := l.MemberHistory(m.ID)
		if err != nil {
			t.Fatalf("Failed to get history: %v", err)
		}
		switch len(entries) {
		case 0:
			empty++
		case 1:
			charged++
			if !entries[0].Amount.Equal(decimal.RequireFromString("-0.01")) {
				t.Errorf("Expected history amount -0.01, got %s", entries[0].Amount)
			}
		default:
			t.Errorf("Expected at most 1 history entry, got %d", len(entries))
		}
		checkHistoryInvariant(t, l, m.ID)
	}
	if charged != 1 || empty != 2 {
		t.Errorf("Expected 1 charged and 2 untouched members, got %d/%d", charged, empty)
	}
	if fund := fundTotal(t, l); !fund.Equal(decimal.RequireFromString("-0.01")) {
		t.Errorf("Expected fund -0.01, got %s", fund)
	}
}

func TestDistributionRejectsZeroActiveMembers(t *testing.T) {
	l, members := newTestLedger(t, 1)
	if _, err := l.SetMemberPaused(members[0].ID, true); err != nil {
		t.Fatalf("Failed to pause member: %v", err)
	}

	_, err := l.CreateExpense(decimal.NewFromInt(50), "rent", "admin")
	if err == nil {
		t.Fatal("Expected error distributing with no active members")
	}
	if fund := fundTotal(t, l); !fund.IsZero() {
		t.Errorf("Expected fund untouched after rejected expense, got %s", fund)
	}
}

func TestPausedMemberExcludedFromSnapshots(t *testing.T) {
	l, members := newTestLedger(t, 3)

	// Seed a balance on the member we are about to pause.
	if _, err := l.CreateInstallment(members[0].ID, decimal.NewFromInt(300), time.Now(), "admin"); err != nil {
		t.Fatalf("Failed to create installment: %v", err)
	}
	before := getMember(t, l, members[0].ID)

	if _, err := l.SetMemberPaused(members[0].ID, true); err != nil {
		t.Fatalf("Failed to pause member: %v", err)
	}

	loan, err := l.ApproveLoan(members[1].ID, decimal.NewFromInt(10000), decimal.NewFromInt(1), time.Now(), "admin")
	if err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}

	after := getMember(t, l, members[0].ID)
	if !after.InvestmentBalance.Equal(before.InvestmentBalance) || !after.InterestEarned.Equal(before.InterestEarned) {
		t.Error("Paused member's balances changed by a distribution")
	}

	// The two remaining active members split the whole deduction.
	expected := loan.Deduction.Div(decimal.NewFromInt(2))
	for _, id := range []uuid.UUID{members[1].ID, members[2].ID} {
		m := getMember(t, l, id)
		if !m.InterestEarned.Equal(expected) {
			t.Errorf("Expected interest earned %s for active member, got %s", expected, m.InterestEarned)
		}
	}
}

func TestUnpausedMemberRejoinsSnapshots(t *testing.T) {
	l, members := newTestLedger(t, 2)

	if _, err := l.SetMemberPaused(members[0].ID, true); err != nil {
		t.Fatalf("Failed to pause member: %v", err)
	}
	if _, err := l.SetMemberPaused(members[0].ID, false); err != nil {
		t.Fatalf("Failed to unpause member: %v", err)
	}

	if _, err := l.ApproveLoan(members[1].ID, decimal.NewFromInt(1000), decimal.NewFromInt(1), time.Now(), "admin"); err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}
	m := getMember(t, l, members[0].ID)
	if m.InterestEarned.IsZero() {
		t.Error("Unpaused member missing from subsequent distribution")
	}
}
