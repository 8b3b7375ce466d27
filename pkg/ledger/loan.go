package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
	"coopfund/pkg/store"
)

// ApproveLoan issues a loan to a member. The 2% origination deduction is
// split across the active members in the same transaction; the member
// receives the net amount but owes the full principal.
func (l *Ledger) ApproveLoan(memberID uuid.UUID, amount, interestRate decimal.Decimal, date time.Time, actor string) (*models.Loan, error) {
	if err := validatePositive("loan amount", amount); err != nil {
		return nil, err
	}
	if interestRate.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate must not be negative, got %s", ErrValidation, interestRate)
	}
	amount = amount.Round(centsScale)

	var loan *models.Loan
	err := l.storage.RunInTx(func(s store.Store) error {
		if _, err := s.GetMember(memberID); err != nil {
			return notFound(err, "member", memberID)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		deduction := amount.Mul(deductionRate).Round(centsScale)
		now := time.Now()
		created := &models.Loan{
			ID:           uuid.New(),
			MemberID:     memberID,
			Amount:       amount,
			Deduction:    deduction,
			NetAmount:    amount.Sub(deduction),
			InterestRate: interestRate,
			Status:       models.LoanStatusActive,
			Outstanding:  amount,
			ApprovedBy:   actor,
			Date:         date,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.CreateLoan(created); err != nil {
			return err
		}
		if deduction.IsPositive() {
			refID := created.ID
			if _, err := distribute(s, models.DistributionTypeDeduction, deduction, &refID, date); err != nil {
				return err
			}
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "loan",
			Action:      "create",
			Amount:      amount,
			MemberID:    &memberID,
			ReferenceID: created.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        date,
		}); err != nil {
			return err
		}

		created.Repayments = []models.Repayment{}
		created.InterestPayments = []models.InterestPayment{}
		loan = created
		return nil
	})
	return loan, err
}

// UpdateLoan corrects a loan's principal. Only a loan with no repayments
// and no interest payments may be changed: the old deduction distribution
// is reversed from its snapshot, the loan is re-sized, and a new deduction
// is distributed across the members active now. The two member sets can
// differ if members were paused or unpaused in between; the new split
// deliberately follows the current set.
func (l *Ledger) UpdateLoan(loanID uuid.UUID, newAmount decimal.Decimal) (*models.Loan, error) {
	if err := validatePositive("loan amount", newAmount); err != nil {
		return nil, err
	}
	newAmount = newAmount.Round(centsScale)

	var loan *models.Loan
	err := l.storage.RunInTx(func(s store.Store) error {
		current, err := s.GetLoan(loanID)
		if err != nil {
			return notFound(err, "loan", loanID)
		}
		if len(current.Repayments) > 0 || len(current.InterestPayments) > 0 {
			return fmt.Errorf("%w: loan %s", ErrImmutableLoan, loanID)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		if err := reverseDistributions(s, current.ID, models.DistributionTypeDeduction); err != nil {
			return err
		}

		deduction := newAmount.Mul(deductionRate).Round(centsScale)
		current.Amount = newAmount
		current.Deduction = deduction
		current.NetAmount = newAmount.Sub(deduction)
		current.Outstanding = newAmount
		current.UpdatedAt = time.Now()
		if err := s.UpdateLoan(current); err != nil {
			return err
		}
		if deduction.IsPositive() {
			refID := current.ID
			if _, err := distribute(s, models.DistributionTypeDeduction, deduction, &refID, current.Date); err != nil {
				return err
			}
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "loan",
			Action:      "update",
			Amount:      newAmount,
			MemberID:    &current.MemberID,
			ReferenceID: current.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        current.Date,
		}); err != nil {
			return err
		}
		loan = current
		return nil
	})
	return loan, err
}

// DeleteLoan removes a loan that has no repayment or interest history,
// reversing its deduction distribution from the snapshot first.
func (l *Ledger) DeleteLoan(loanID uuid.UUID) error {
	return l.storage.RunInTx(func(s store.Store) error {
		loan, err := s.GetLoan(loanID)
		if err != nil {
			return notFound(err, "loan", loanID)
		}
		if len(loan.Repayments) > 0 || len(loan.InterestPayments) > 0 {
			return fmt.Errorf("%w: loan %s", ErrImmutableLoan, loanID)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		if err := reverseDistributions(s, loan.ID, models.DistributionTypeDeduction); err != nil {
			return err
		}
		if err := s.DeleteLoan(loanID); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		return logTransaction(s, models.TransactionLog{
			Type:        "loan",
			Action:      "delete",
			Amount:      loan.Amount,
			MemberID:    &loan.MemberID,
			ReferenceID: loan.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        loan.Date,
		})
	})
}
