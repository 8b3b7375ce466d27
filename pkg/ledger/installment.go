package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
	"coopfund/pkg/store"
)

// CreateInstallment records one capital contribution: the installment row,
// the member's investment balance, the fund, a history line, and the audit
// log all land in one transaction.
func (l *Ledger) CreateInstallment(memberID uuid.UUID, amount decimal.Decimal, date time.Time, actor string) (*models.Installment, error) {
	if err := validatePositive("installment amount", amount); err != nil {
		return nil, err
	}
	amount = amount.Round(centsScale)

	var created *models.Installment
	err := l.storage.RunInTx(func(s store.Store) error {
		member, err := s.GetMember(memberID)
		if err != nil {
			return notFound(err, "member", memberID)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		inst := &models.Installment{
			ID:         uuid.New(),
			MemberID:   memberID,
			Amount:     amount,
			Date:       date,
			RecordedBy: actor,
			CreatedAt:  time.Now(),
		}
		if err := s.CreateInstallment(inst); err != nil {
			return err
		}
		if err := applyInstallment(s, member, inst); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "installment",
			Action:      "create",
			Amount:      amount,
			MemberID:    &memberID,
			ReferenceID: inst.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        date,
		}); err != nil {
			return err
		}
		created = inst
		return nil
	})
	return created, err
}

// applyInstallment folds the balance mutation and its ledger append into
// one step so the cached balance and the history stream cannot diverge.
func applyInstallment(s store.Store, member *models.Member, inst *models.Installment) error {
	member.InvestmentBalance = member.InvestmentBalance.Add(inst.Amount)
	if err := s.UpdateMember(member); err != nil {
		return err
	}
	if _, err := s.AdjustFund(inst.Amount); err != nil {
		return err
	}
	return s.CreateHistoryEntry(&models.HistoryEntry{
		ID:       uuid.New(),
		MemberID: member.ID,
		Amount:   inst.Amount,
		Type:     models.HistoryTypeInstallment,
		Date:     inst.Date,
		RefID:    inst.ID,
	})
}

// UpdateInstallment corrects a contribution amount by reversing the old
// event's effects and applying the new amount in its place.
func (l *Ledger) UpdateInstallment(id uuid.UUID, newAmount decimal.Decimal) (*models.Installment, error) {
	if err := validatePositive("installment amount", newAmount); err != nil {
		return nil, err
	}
	newAmount = newAmount.Round(centsScale)

	var updated *models.Installment
	err := l.storage.RunInTx(func(s store.Store) error {
		inst, err := s.GetInstallment(id)
		if err != nil {
			return notFound(err, "installment", id)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		if err := reverseInstallment(s, inst); err != nil {
			return err
		}
		inst.Amount = newAmount
		if err := s.UpdateInstallment(inst); err != nil {
			return err
		}
		member, err := s.GetMember(inst.MemberID)
		if err != nil {
			return notFound(err, "member", inst.MemberID)
		}
		if err := applyInstallment(s, member, inst); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "installment",
			Action:      "update",
			Amount:      newAmount,
			MemberID:    &inst.MemberID,
			ReferenceID: inst.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        inst.Date,
		}); err != nil {
			return err
		}
		updated = inst
		return nil
	})
	return updated, err
}

// DeleteInstallment reverses the contribution's effects and removes it.
func (l *Ledger) DeleteInstallment(id uuid.UUID) error {
	return l.storage.RunInTx(func(s store.Store) error {
		inst, err := s.GetInstallment(id)
		if err != nil {
			return notFound(err, "installment", id)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		if err := reverseInstallment(s, inst); err != nil {
			return err
		}
		if err := s.DeleteInstallment(id); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		return logTransaction(s, models.TransactionLog{
			Type:        "installment",
			Action:      "delete",
			Amount:      inst.Amount,
			MemberID:    &inst.MemberID,
			ReferenceID: inst.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        inst.Date,
		})
	})
}
