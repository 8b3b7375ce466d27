package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
)

var onePercent = decimal.NewFromInt(1)

func TestApproveLoan(t *testing.T) {
	l, members := newTestLedger(t, 3)

	loan, err := l.ApproveLoan(members[0].ID, decimal.NewFromInt(10000), onePercent, time.Now(), "admin")
	if err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}

	if !loan.Deduction.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected deduction 200, got %s", loan.Deduction)
	}
	if !loan.NetAmount.Equal(decimal.NewFromInt(9800)) {
		t.Errorf("Expected net amount 9800, got %s", loan.NetAmount)
	}
	if !loan.Outstanding.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected outstanding 10000, got %s", loan.Outstanding)
	}
	if loan.Status != models.LoanStatusActive {
		t.Errorf("Expected status active, got %s", loan.Status)
	}

	// The fund grows only by the redistributed deduction.
	if fund := fundTotal(t, l); !fund.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected fund 200, got %s", fund)
	}

	earned := decimal.Zero
	for _, m := range members {
		earned = earned.Add(getMember(t, l, m.ID).InterestEarned)
	}
	if !earned.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected deduction shares to sum to 200 exactly, got %s", earned)
	}
	for _, m := range members {
		checkHistoryInvariant(t, l, m.ID)
	}
}

func TestUpdateLoanReissuesDeduction(t *testing.T) {
	l, members := newTestLedger(t, 3)

	loan, err := l.ApproveLoan(members[0].ID, decimal.NewFromInt(10000), onePercent, time.Now(), "admin")
	if err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}

	updated, err := l.UpdateLoan(loan.ID, decimal.NewFromInt(5000))
	if err != nil {
		t.Fatalf("Failed to update loan: %v", err)
	}
	if !updated.Deduction.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected deduction 100, got %s", updated.Deduction)
	}
	if !updated.NetAmount.Equal(decimal.NewFromInt(4900)) {
		t.Errorf("Expected net amount 4900, got %s", updated.NetAmount)
	}
	if !updated.Outstanding.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Expected outstanding 5000, got %s", updated.Outstanding)
	}

	// Only the new deduction remains in the fund and the member balances.
	if fund := fundTotal(t, l); !fund.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected fund 100 after correction, got %s", fund)
	}
	earned := decimal.Zero
	for _, m := range members {
		earned = earned.Add(getMember(t, l, m.ID).InterestEarned)
	}
	if !earned.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected redistributed deduction to sum to 100, got %s", earned)
	}
	for _, m := range members {
		checkHistoryInvariant(t, l, m.ID)
	}
}

func TestDeleteLoanRestoresState(t *testing.T) {
	l, members := newTestLedger(t, 3)

	loan, err := l.ApproveLoan(members[0].ID, decimal.NewFromInt(10000), onePercent, time.Now(), "admin")
	if err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}
	if err := l.DeleteLoan(loan.ID); err != nil {
		t.Fatalf("Failed to delete loan: %v", err)
	}

	if fund := fundTotal(t, l); !fund.IsZero() {
		t.Errorf("Expected fund restored to 0, got %s", fund)
	}
	for _, m := range members {
		member := getMember(t, l, m.ID)
		if !member.InterestEarned.IsZero() {
			t.Errorf("Expected interest earned restored to 0, got %s", member.InterestEarned)
		}
		checkHistoryInvariant(t, l, m.ID)
	}
	if _, err := l.GetLoan(loan.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestLoanWithHistoryIsImmutable(t *testing.T) {
	l, members := newTestLedger(t, 3)

	loan, err := l.ApproveLoan(members[0].ID, decimal.NewFromInt(10000), onePercent, time.Now(), "admin")
	if err != nil {
		t.Fatalf("Failed to approve loan: %v", err)
	}
	if _, err := l.AddRepayment(loan.ID, decimal.NewFromInt(1000), time.Now()); err != nil {
		t.Fatalf("Failed to add repayment: %v", err)
	}

	if _, err := l.UpdateLoan(loan.ID, decimal.NewFromInt(5000)); !errors.Is(err, ErrImmutableLoan) {
		t.Errorf("Expected ErrImmutableLoan on update, got %v", err)
	}
	if err := l.DeleteLoan(loan.ID); !errors.Is(err, ErrImmutableLoan) {
		t.Errorf("Expected ErrImmutableLoan on delete, got %v", err)
	}
}

func TestApproveLoanValidation(t *testing.T) {
	l, members := newTestLedger(t, 1)

	if _, err := l.ApproveLoan(members[0].ID, decimal.Zero, onePercent, time.Now(), "admin"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for zero amount, got %v", err)
	}
	if _, err := l.ApproveLoan(members[0].ID, decimal.NewFromInt(1000), decimal.NewFromInt(-1), time.Now(), "admin"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for negative rate, got %v", err)
	}
}
