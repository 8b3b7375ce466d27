package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCreateInstallment(t *testing.T) {
	l, members := newTestLedger(t, 3)

	amount := decimal.NewFromInt(1000)
	inst, err := l.CreateInstallment(members[0].ID, amount, time.Now(), "admin")
	if err != nil {
		t.Fatalf("Failed to create installment: %v", err)
	}

	if fund := fundTotal(t, l); !fund.Equal(amount) {
		t.Errorf("Expected fund 1000, got %s", fund)
	}
	m := getMember(t, l, members[0].ID)
	if !m.InvestmentBalance.Equal(amount) {
		t.Errorf("Expected investment balance 1000, got %s", m.InvestmentBalance)
	}

	history, err := l.MemberHistory(members[0].ID)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected exactly 1 history entry, got %d", len(history))
	}
	if history[0].RefID != inst.ID || !history[0].Amount.Equal(amount) {
		t.Errorf("History entry does not match installment: %+v", history[0])
	}
	checkHistoryInvariant(t, l, members[0].ID)
}

func TestCreateInstallmentValidation(t *testing.T) {
	l, members := newTestLedger(t, 1)

	if _, err := l.CreateInstallment(members[0].ID, decimal.NewFromInt(-5), time.Now(), "admin"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for negative amount, got %v", err)
	}
	if _, err := l.CreateInstallment(uuid.New(), decimal.NewFromInt(100), time.Now(), "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown member, got %v", err)
	}
	if fund := fundTotal(t, l); !fund.IsZero() {
		t.Errorf("Expected fund untouched after rejected installments, got %s", fund)
	}
}

func TestDeleteInstallmentRoundTrip(t *testing.T) {
	l, members := newTestLedger(t, 3)

	inst, err := l.CreateInstallment(members[0].ID, decimal.NewFromInt(1000), time.Now(), "admin")
	if err != nil {
		t.Fatalf("Failed to create installment: %v", err)
	}
	if err := l.DeleteInstallment(inst.ID); err != nil {
		t.Fatalf("Failed to delete installment: %v", err)
	}

	if fund := fundTotal(t, l); !fund.IsZero() {
		t.Errorf("Expected fund restored to 0, got %s", fund)
	}
	m := getMember(t, l, members[0].ID)
	if !m.InvestmentBalance.IsZero() {
		t.Errorf("Expected investment balance restored to 0, got %s", m.InvestmentBalance)
	}
	history, err := l.MemberHistory(members[0].ID)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected history emptied, got %d entries", len(history))
	}
}

func TestUpdateInstallmentCorrectionIsIdempotent(t *testing.T) {
	l, members := newTestLedger(t, 2)

	inst, err := l.CreateInstallment(members[0].ID, decimal.NewFromInt(100), time.Now(), "admin")
	if err != nil {
		t.Fatalf("Failed to create installment: %v", err)
	}
	if _, err := l.UpdateInstallment(inst.ID, decimal.NewFromInt(150)); err != nil {
		t.Fatalf("Failed to update installment: %v", err)
	}
	if _, err := l.UpdateInstallment(inst.ID, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Failed to update installment back: %v", err)
	}

	if fund := fundTotal(t, l); !fund.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected fund 100 after correcting back, got %s", fund)
	}
	m := getMember(t, l, members[0].ID)
	if !m.InvestmentBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected investment balance 100, got %s", m.InvestmentBalance)
	}
	history, err := l.MemberHistory(members[0].ID)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected exactly 1 history entry after corrections, got %d", len(history))
	}
	checkHistoryInvariant(t, l, members[0].ID)
}

func TestInstallmentTransactionLog(t *testing.T) {
	l, members := newTestLedger(t, 1)

	if _, err := l.CreateInstallment(members[0].ID, decimal.NewFromInt(500), time.Now(), "admin"); err != nil {
		t.Fatalf("Failed to create installment: %v", err)
	}
	logs, err := l.TransactionLogs()
	if err != nil {
		t.Fatalf("Failed to get transaction logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("Expected 1 transaction log, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Type != "installment" || entry.Action != "create" {
		t.Errorf("Unexpected log entry %s/%s", entry.Type, entry.Action)
	}
	if !entry.FundBefore.IsZero() || !entry.FundAfter.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected fund 0 -> 500 in log, got %s -> %s", entry.FundBefore, entry.FundAfter)
	}
}
