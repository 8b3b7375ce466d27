package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fund is the single pooled balance of the cooperative. There is exactly
// one Fund record; it is created lazily with a zero balance.
type Fund struct {
	TotalFund decimal.Decimal `json:"total_fund"`
}

// Member holds a member's contributed-capital balance and distributed-earnings
// balance. Paused members are excluded from future distributions but keep
// their stored balances.
type Member struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	InvestmentBalance decimal.Decimal `json:"investment_balance"`
	InterestEarned    decimal.Decimal `json:"interest_earned"`
	Paused            bool            `json:"paused"`
	JoinedAt          time.Time       `json:"joined_at"`
}

// Installment is one capital contribution by a member into the fund.
type Installment struct {
	ID         uuid.UUID       `json:"id"`
	MemberID   uuid.UUID       `json:"member_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	RecordedBy string          `json:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

const (
	LoanStatusActive = "active"
	LoanStatusClosed = "closed"
)

type Loan struct {
	ID           uuid.UUID       `json:"id"`
	MemberID     uuid.UUID       `json:"member_id"`
	Amount       decimal.Decimal `json:"amount"`
	Deduction    decimal.Decimal `json:"deduction"`     // 2% origination fee, redistributed
	NetAmount    decimal.Decimal `json:"net_amount"`    // Amount - Deduction
	InterestRate decimal.Decimal `json:"interest_rate"` // percent charged per repayment cycle
	Status       string          `json:"status"`        // "active" or "closed"
	Outstanding  decimal.Decimal `json:"outstanding"`   // unpaid principal
	ApprovedBy   string          `json:"approved_by"`
	Date         time.Time       `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Repayments       []Repayment       `json:"repayments"`
	InterestPayments []InterestPayment `json:"interest_payments"`
}

// Repayment is one principal payment against a loan. InterestPaymentID links
// the interest cycle that ran immediately before this payment, if any.
type Repayment struct {
	ID                uuid.UUID       `json:"id"`
	LoanID            uuid.UUID       `json:"loan_id"`
	Amount            decimal.Decimal `json:"amount"`
	Date              time.Time       `json:"date"`
	InterestPaymentID *uuid.UUID      `json:"interest_payment_id,omitempty"`
}

// InterestPayment records one interest cycle on a loan and points at the
// Distribution that spread it across the members.
type InterestPayment struct {
	ID             uuid.UUID       `json:"id"`
	LoanID         uuid.UUID       `json:"loan_id"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	DistributionID uuid.UUID       `json:"distribution_id"`
}

type DistributionType string

const (
	DistributionTypeInterest  DistributionType = "interest"
	DistributionTypeDeduction DistributionType = "deduction"
	DistributionTypeExpense   DistributionType = "expense"
)

// Distribution is the atomic record of one equal-split event across the
// members that were active at that moment. The per-member shares are
// persisted as a snapshot; reversal math always reuses the snapshot and
// never the current active set.
type Distribution struct {
	ID              uuid.UUID           `json:"id"`
	Type            DistributionType    `json:"type"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	PerMemberAmount decimal.Decimal     `json:"per_member_amount"` // base share before remainder cents
	Date            time.Time           `json:"date"`
	RefID           *uuid.UUID          `json:"ref_id,omitempty"` // originating loan or expense
	Shares          []DistributionShare `json:"shares"`
}

// DistributionShare is the exact amount one member received (or was charged)
// in a Distribution. Shares differ by at most one cent and always sum to
// the distribution total.
type DistributionShare struct {
	DistributionID uuid.UUID       `json:"distribution_id"`
	MemberID       uuid.UUID       `json:"member_id"`
	Amount         decimal.Decimal `json:"amount"`
}

type HistoryType string

const (
	HistoryTypeInstallment HistoryType = "installment"
	HistoryTypeInterest    HistoryType = "interest"
	HistoryTypeDeduction   HistoryType = "deduction"
	HistoryTypeWithdrawal  HistoryType = "withdrawal"
)

// HistoryEntry is one append-only per-member ledger line. The signed sum of
// a member's entries must always equal their stored balances.
type HistoryEntry struct {
	ID       uuid.UUID       `json:"id"`
	MemberID uuid.UUID       `json:"member_id"`
	Amount   decimal.Decimal `json:"amount"` // signed
	Type     HistoryType     `json:"type"`
	Date     time.Time       `json:"date"`
	RefID    uuid.UUID       `json:"ref_id"`
}

// Expense is a shared operating cost deducted equally from every active
// member's investment balance.
type Expense struct {
	ID          uuid.UUID       `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	RecordedBy  string          `json:"recorded_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransactionLog is the system-wide audit record written once per mutation.
// It is reporting-only and is never read back into balance computation.
type TransactionLog struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`   // installment, loan, repayment, expense
	Action      string          `json:"action"` // create, update, delete
	Amount      decimal.Decimal `json:"amount"`
	MemberID    *uuid.UUID      `json:"member_id,omitempty"`
	ReferenceID uuid.UUID       `json:"reference_id"`
	FundBefore  decimal.Decimal `json:"fund_before"`
	FundAfter   decimal.Decimal `json:"fund_after"`
	Date        time.Time       `json:"date"`
}
