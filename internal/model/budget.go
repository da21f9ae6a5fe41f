package model

import "time"

// Budget periods.
const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

type Budget struct {
	ID          int64      `json:"id"`
	FamilyID    int64      `json:"family_id"`
	Category    string     `json:"category"`
	AmountCents int64      `json:"amount_cents"`
	Period      string     `json:"period"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	CreatedBy   *int64     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BudgetSummary pairs a budget with the total spent against it.
type BudgetSummary struct {
	Budget
	SpentCents     int64 `json:"spent_cents"`
	RemainingCents int64 `json:"remaining_cents"`
}

type BudgetShare struct {
	ID               int64     `json:"id"`
	BudgetID         int64     `json:"budget_id"`
	SharedWithUserID int64     `json:"shared_with_user_id"`
	SharedByUserID   int64     `json:"shared_by_user_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// SharedBudget is a budget shared with the current user, with the sharer's name.
type SharedBudget struct {
	Budget
	SharedByUserID int64     `json:"shared_by_user_id"`
	SharedByName   string    `json:"shared_by_name"`
	SharedAt       time.Time `json:"shared_at"`
}
