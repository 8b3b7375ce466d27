package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
	"coopfund/pkg/store"
)

// MultiLoanRepayment is the result of spreading one payment across a
// member's active loans. RemainingUnapplied is whatever the payment could
// not consume; it is reported back, never silently dropped.
type MultiLoanRepayment struct {
	AppliedRepayment   decimal.Decimal `json:"applied_repayment"`
	RemainingUnapplied decimal.Decimal `json:"remaining_unapplied"`
	Loans              []*models.Loan  `json:"loans"`
}

// AddRepayment applies one payment to a loan. The interest cycle runs first
// on the outstanding before the payment; the principal is applied after.
// A zero amount is valid and triggers only the interest cycle.
func (l *Ledger) AddRepayment(loanID uuid.UUID, amount decimal.Decimal, date time.Time) (*models.Loan, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: repayment amount must not be negative, got %s", ErrValidation, amount)
	}
	amount = amount.Round(centsScale)

	var out *models.Loan
	err := l.storage.RunInTx(func(s store.Store) error {
		loan, err := s.GetLoan(loanID)
		if err != nil {
			return notFound(err, "loan", loanID)
		}
		if amount.GreaterThan(loan.Outstanding) {
			return fmt.Errorf("%w: repayment %s exceeds outstanding %s", ErrValidation, amount, loan.Outstanding)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		interestPayment, err := runInterestCycle(s, loan, date)
		if err != nil {
			return err
		}
		if amount.IsPositive() {
			if err := recordRepayment(s, loan, amount, date, interestPayment); err != nil {
				return err
			}
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "repayment",
			Action:      "create",
			Amount:      amount,
			MemberID:    &loan.MemberID,
			ReferenceID: loan.ID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        date,
		}); err != nil {
			return err
		}

		out, err = s.GetLoan(loanID)
		return err
	})
	return out, err
}

// RepayAcrossLoans spreads one payment across the member's active loans,
// oldest first. Each touched loan gets its interest cycle before principal
// is applied; the walk stops as soon as the payment is consumed.
func (l *Ledger) RepayAcrossLoans(memberID uuid.UUID, total decimal.Decimal, date time.Time) (*MultiLoanRepayment, error) {
	if err := validatePositive("repayment amount", total); err != nil {
		return nil, err
	}
	total = total.Round(centsScale)

	result := &MultiLoanRepayment{}
	err := l.storage.RunInTx(func(s store.Store) error {
		if _, err := s.GetMember(memberID); err != nil {
			return notFound(err, "member", memberID)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}
		loans, err := s.GetActiveLoansForMember(memberID)
		if err != nil {
			return err
		}

		remaining := total
		for _, loan := range loans {
			if remaining.IsZero() {
				break
			}
			interestPayment, err := runInterestCycle(s, loan, date)
			if err != nil {
				return err
			}
			alloc := decimal.Min(remaining, loan.Outstanding)
			if alloc.IsPositive() {
				if err := recordRepayment(s, loan, alloc, date, interestPayment); err != nil {
					return err
				}
			}
			remaining = remaining.Sub(alloc)

			touched, err := s.GetLoan(loan.ID)
			if err != nil {
				return err
			}
			result.Loans = append(result.Loans, touched)
		}
		result.AppliedRepayment = total.Sub(remaining)
		result.RemainingUnapplied = remaining

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		return logTransaction(s, models.TransactionLog{
			Type:        "repayment",
			Action:      "create",
			Amount:      result.AppliedRepayment,
			MemberID:    &memberID,
			ReferenceID: memberID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        date,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateRepayment corrects a recorded principal payment. The linked
// interest cycle is left untouched: that interest was charged on the
// outstanding before the payment and really was distributed.
func (l *Ledger) UpdateRepayment(loanID, repaymentID uuid.UUID, newAmount decimal.Decimal) (*models.Loan, error) {
	if newAmount.IsNegative() {
		return nil, fmt.Errorf("%w: repayment amount must not be negative, got %s", ErrValidation, newAmount)
	}
	newAmount = newAmount.Round(centsScale)

	var out *models.Loan
	err := l.storage.RunInTx(func(s store.Store) error {
		loan, err := s.GetLoan(loanID)
		if err != nil {
			return notFound(err, "loan", loanID)
		}
		repayment := findRepayment(loan, repaymentID)
		if repayment == nil {
			return fmt.Errorf("%w: repayment %s on loan %s", ErrNotFound, repaymentID, loanID)
		}
		if newAmount.GreaterThan(loan.Outstanding.Add(repayment.Amount)) {
			return fmt.Errorf("%w: repayment %s exceeds outstanding %s plus the corrected payment %s",
				ErrValidation, newAmount, loan.Outstanding, repayment.Amount)
		}
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		fundDelta := newAmount.Sub(repayment.Amount)
		repayment.Amount = newAmount
		if err := s.UpdateRepayment(repayment); err != nil {
			return err
		}
		if err := settleLoan(s, loan); err != nil {
			return err
		}
		if _, err := s.AdjustFund(fundDelta); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "repayment",
			Action:      "update",
			Amount:      newAmount,
			MemberID:    &loan.MemberID,
			ReferenceID: repaymentID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        repayment.Date,
		}); err != nil {
			return err
		}

		out, err = s.GetLoan(loanID)
		return err
	})
	return out, err
}

// DeleteRepayment removes a recorded principal payment and hands the money
// back out of the fund. Removing the last payment reopens the loan.
func (l *Ledger) DeleteRepayment(loanID, repaymentID uuid.UUID) (*models.Loan, error) {
	var out *models.Loan
	err := l.storage.RunInTx(func(s store.Store) error {
		loan, err := s.GetLoan(loanID)
		if err != nil {
			return notFound(err, "loan", loanID)
		}
		found := findRepayment(loan, repaymentID)
		if found == nil {
			return fmt.Errorf("%w: repayment %s on loan %s", ErrNotFound, repaymentID, loanID)
		}
		// Copy before compacting: found points into the slice below.
		repayment := *found
		fundBefore, err := s.GetFund()
		if err != nil {
			return err
		}

		if err := s.DeleteRepayment(repaymentID); err != nil {
			return err
		}
		kept := loan.Repayments[:0]
		for _, r := range loan.Repayments {
			if r.ID != repaymentID {
				kept = append(kept, r)
			}
		}
		loan.Repayments = kept
		if err := settleLoan(s, loan); err != nil {
			return err
		}
		if _, err := s.AdjustFund(repayment.Amount.Neg()); err != nil {
			return err
		}

		fundAfter, err := s.GetFund()
		if err != nil {
			return err
		}
		if err := logTransaction(s, models.TransactionLog{
			Type:        "repayment",
			Action:      "delete",
			Amount:      repayment.Amount,
			MemberID:    &loan.MemberID,
			ReferenceID: repaymentID,
			FundBefore:  fundBefore.TotalFund,
			FundAfter:   fundAfter.TotalFund,
			Date:        repayment.Date,
		}); err != nil {
			return err
		}

		out, err = s.GetLoan(loanID)
		return err
	})
	return out, err
}

// runInterestCycle charges one interest cycle on the loan's current
// outstanding, distributes it across the active members, and records the
// cycle on the loan. Returns nil without error when no interest is due.
func runInterestCycle(s store.Store, loan *models.Loan, date time.Time) (*models.InterestPayment, error) {
	interest := loan.Outstanding.Mul(loan.InterestRate).Div(hundred).Round(centsScale)
	if !interest.IsPositive() {
		return nil, nil
	}
	refID := loan.ID
	dist, err := distribute(s, models.DistributionTypeInterest, interest, &refID, date)
	if err != nil {
		return nil, err
	}
	payment := &models.InterestPayment{
		ID:             uuid.New(),
		LoanID:         loan.ID,
		Amount:         interest,
		Date:           date,
		DistributionID: dist.ID,
	}
	if err := s.CreateInterestPayment(payment); err != nil {
		return nil, err
	}
	loan.InterestPayments = append(loan.InterestPayments, *payment)
	return payment, nil
}

// recordRepayment appends a principal payment, recomputes the loan, and
// moves the money into the fund.
func recordRepayment(s store.Store, loan *models.Loan, amount decimal.Decimal, date time.Time, interestPayment *models.InterestPayment) error {
	repayment := &models.Repayment{
		ID:     uuid.New(),
		LoanID: loan.ID,
		Amount: amount,
		Date:   date,
	}
	if interestPayment != nil {
		repayment.InterestPaymentID = &interestPayment.ID
	}
	if err := s.CreateRepayment(repayment); err != nil {
		return err
	}
	loan.Repayments = append(loan.Repayments, *repayment)
	if err := settleLoan(s, loan); err != nil {
		return err
	}
	_, err := s.AdjustFund(amount)
	return err
}

// settleLoan recomputes outstanding from the recorded repayments and keeps
// the status in lockstep: closed exactly when nothing is outstanding.
func settleLoan(s store.Store, loan *models.Loan) error {
	repaid := decimal.Zero
	for _, r := range loan.Repayments {
		repaid = repaid.Add(r.Amount)
	}
	loan.Outstanding = loan.Amount.Sub(repaid)
	if loan.Outstanding.IsNegative() {
		loan.Outstanding = decimal.Zero
	}
	if loan.Outstanding.IsZero() {
		loan.Status = models.LoanStatusClosed
	} else {
		loan.Status = models.LoanStatusActive
	}
	loan.UpdatedAt = time.Now()
	return s.UpdateLoan(loan)
}

func findRepayment(loan *models.Loan, id uuid.UUID) *models.Repayment {
	for i := range loan.Repayments {
		if loan.Repayments[i].ID == id {
			return &loan.Repayments[i]
		}
	}
	return nil
}
