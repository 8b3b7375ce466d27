package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
	"coopfund/pkg/store"
)

// CreateExpense records a shared operating cost. The amount is split
// equally across the active members, debited from each investment balance,
// and taken out of the fund, all in one transaction.
func (l *Ledger) CreateExpense(amount decimal.Decimal, description, actor string) (*models.Expense, error) {
	if err := validatePositive("expense amount", amount); err != nil {
		return nil, err
	}
	amount = amount.Round(centsScale)

	var created *models.Expense
	err := l.storage.RunInTx(func(s store.Store) error {
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		now := time.Now()
		expense := &models.Expense{
			ID:          uuid.New(),
			Amount:      amount,
			Description: description,
			Date:        now,
			RecordedBy:  actor,
			CreatedAt:   now,
		}
		if err := s.CreateExpense(expense); err != nil {
			return err
		}
		refID := expense.ID
		if _, err := distribute(s, models.DistributionTypeExpense, amount, &refID, expense.Date); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "expense",
			Action:      "create",
			Amount:      amount,
			ReferenceID: expense.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        expense.Date,
		}); err != nil {
			return err
		}
		created = expense
		return nil
	})
	return created, err
}

// UpdateExpense corrects an expense amount: the original split is reversed
// from its snapshot, then the new amount is distributed across the members
// active now.
func (l *Ledger) UpdateExpense(id uuid.UUID, newAmount decimal.Decimal) (*models.Expense, error) {
	if err := validatePositive("expense amount", newAmount); err != nil {
		return nil, err
	}
	newAmount = newAmount.Round(centsScale)

	var updated *models.Expense
	err := l.storage.RunInTx(func(s store.Store) error {
		expense, err := s.GetExpense(id)
		if err != nil {
			return notFound(err, "expense", id)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		if err := reverseDistributions(s, expense.ID, models.DistributionTypeExpense); err != nil {
			return err
		}
		expense.Amount = newAmount
		if err := s.UpdateExpense(expense); err != nil {
			return err
		}
		refID := expense.ID
		if _, err := distribute(s, models.DistributionTypeExpense, newAmount, &refID, expense.Date); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "expense",
			Action:      "update",
			Amount:      newAmount,
			ReferenceID: expense.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        expense.Date,
		}); err != nil {
			return err
		}
		updated = expense
		return nil
	})
	return updated, err
}

// DeleteExpense reverses the expense's split from its snapshot and removes
// the record.
func (l *Ledger) DeleteExpense(id uuid.UUID) error {
	return l.storage.RunInTx(func(s store.Store) error {
		expense, err := s.GetExpense(id)
		if err != nil {
			return notFound(err, "expense", id)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		if err := reverseDistributions(s, expense.ID, models.DistributionTypeExpense); err != nil {
			return err
		}
		if err := s.DeleteExpense(id); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		return logTransaction(s, models.TransactionLog{
			Type:        "expense",
			Action:      "delete",
			Amount:      expense.Amount,
			ReferenceID: expense.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        expense.Date,
		})
	})
}
