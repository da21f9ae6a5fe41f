package model

import "time"

type Expense struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	BudgetID    *int64    `json:"budget_id"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description"`
	SpentAt     time.Time `json:"spent_at"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
