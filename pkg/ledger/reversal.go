package ledger

import (
	"github.com/google/uuid"

	"coopfund/pkg/models"
	"coopfund/pkg/store"
)

// reverseDistributions undoes every distribution of the given type recorded
// for refID: the balance effect on each snapshot member, the history lines
// referencing the distribution, the distribution record itself, and the
// fund delta. The persisted share snapshot is authoritative; the current
// active set plays no part, so members paused or unpaused since the
// original event are handled exactly.
func reverseDistributions(s store.Store, refID uuid.UUID, typ models.DistributionType) error {
	dists, err := s.GetDistributionsByRef(refID)
	if err != nil {
		return err
	}
	for _, d := range dists {
		if d.Type != typ {
			continue
		}
		for _, share := range d.Shares {
			member, err := s.GetMember(share.MemberID)
			if err != nil {
				return notFound(err, "member", share.MemberID)
			}
			switch d.Type {
			case models.DistributionTypeExpense:
				member.InvestmentBalance = member.InvestmentBalance.Add(share.Amount)
			default:
				member.InterestEarned = member.InterestEarned.Sub(share.Amount)
			}
			if err := s.UpdateMember(member); err != nil {
				return err
			}
		}
		if err := s.DeleteHistoryByRef(d.ID); err != nil {
			return err
		}
		if err := s.DeleteDistribution(d.ID); err != nil {
			return err
		}
		fundDelta := d.TotalAmount.Neg()
		if d.Type == models.DistributionTypeExpense {
			fundDelta = d.TotalAmount
		}
		if _, err := s.AdjustFund(fundDelta); err != nil {
			return err
		}
	}
	return nil
}

// reverseInstallment undoes a capital contribution: the member balance, the
// fund, and the installment's history line.
func reverseInstallment(s store.Store, inst *models.Installment) error {
	member, err := s.GetMember(inst.MemberID)
	if err != nil {
		return notFound(err, "member", inst.MemberID)
	}
	member.InvestmentBalance = member.InvestmentBalance.Sub(inst.Amount)
	if err := s.UpdateMember(member); err != nil {
		return err
	}
	if _, err := s.AdjustFund(inst.Amount.Neg()); err != nil {
		return err
	}
	return s.DeleteHistoryByRef(inst.ID)
}
