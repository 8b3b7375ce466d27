package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopfund/pkg/models"
	"coopfund/pkg/store"
)

// distribute splits total equally across the currently active members,
// snapshots the exact per-member shares, applies the balance effects,
// appends the matching history lines, and moves the fund.
//
// Sign conventions: interest and deduction credit each member's
// InterestEarned and increase the fund; expense debits each member's
// InvestmentBalance and decreases the fund.
func distribute(s store.Store, typ models.DistributionType, total decimal.Decimal, refID *uuid.UUID, date time.Time) (*models.Distribution, error) {
	members, err := s.GetActiveMembers()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: cannot split %s of %s", ErrNoActiveMembers, typ, total)
	}

	total = total.Round(centsScale)
	shares := splitEven(total, len(members))

	dist := &models.Distribution{
		ID:              uuid.New(),
		Type:            typ,
		TotalAmount:     total,
		PerMemberAmount: shares[len(shares)-1], // base share; earlier members may carry one extra cent
		Date:            date,
		RefID:           refID,
	}
	// A sub-cent total can leave members past the remainder with nothing;
	// zero shares get no snapshot row and no history line.
	for i, m := range members {
		if shares[i].IsZero() {
			continue
		}
		dist.Shares = append(dist.Shares, models.DistributionShare{
			DistributionID: dist.ID,
			MemberID:       m.ID,
			Amount:         shares[i],
		})
	}
	if err := s.CreateDistribution(dist); err != nil {
		return nil, err
	}

	for i, m := range members {
		share := shares[i]
		if share.IsZero() {
			continue
		}
		var histAmount decimal.Decimal
		var histType models.HistoryType
		switch typ {
		case models.DistributionTypeExpense:
			m.InvestmentBalance = m.InvestmentBalance.Sub(share)
			histAmount = share.Neg()
			histType = models.HistoryTypeDeduction
		case models.DistributionTypeInterest:
			m.InterestEarned = m.InterestEarned.Add(share)
			histAmount = share
			histType = models.HistoryTypeInterest
		case models.DistributionTypeDeduction:
			m.InterestEarned = m.InterestEarned.Add(share)
			histAmount = share
			histType = models.HistoryTypeDeduction
		default:
			return nil, fmt.Errorf("unknown distribution type %q", typ)
		}
		if err := s.UpdateMember(m); err != nil {
			return nil, err
		}
		entry := &models.HistoryEntry{
			ID:       uuid.New(),
			MemberID: m.ID,
			Amount:   histAmount,
			Type:     histType,
			Date:     date,
			RefID:    dist.ID,
		}
		if err := s.CreateHistoryEntry(entry); err != nil {
			return nil, err
		}
	}

	fundDelta := total
	if typ == models.DistributionTypeExpense {
		fundDelta = total.Neg()
	}
	if _, err := s.AdjustFund(fundDelta); err != nil {
		return nil, err
	}
	return dist, nil
}

// splitEven splits total into n cent-exact shares. The division happens in
// integer cents and the remainder cents go to the first shares, so the
// shares always sum to the rounded total.
func splitEven(total decimal.Decimal, n int) []decimal.Decimal {
	cents := total.Round(centsScale).Mul(hundred).IntPart()
	base := cents / int64(n)
	rem := cents % int64(n)
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		c := base
		if int64(i) < rem {
			c++
		}
		shares[i] = decimal.New(c, -centsScale)
	}
	return shares
}
