package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/famfin/internal/model"
)

type BudgetStore struct {
	db *sql.DB
}

func NewBudgetStore(db *sql.DB) *BudgetStore {
	return &BudgetStore{db: db}
}

// BudgetInput carries the writable fields of a budget.
type BudgetInput struct {
	Category    string
	AmountCents int64
	Period      string
	StartDate   time.Time
	EndDate     *time.Time
}

func scanBudget(scanner interface{ Scan(...any) error }) (*model.Budget, error) {
	var b model.Budget
	var endDate sql.NullTime
	var createdBy sql.NullInt64

	err := scanner.Scan(
		&b.ID, &b.FamilyID, &b.Category, &b.AmountCents, &b.Period,
		&b.StartDate, &endDate, &createdBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if endDate.Valid {
		b.EndDate = &endDate.Time
	}
	if createdBy.Valid {
		b.CreatedBy = &createdBy.Int64
	}
	return &b, nil
}

const budgetCols = `id, family_id, category, amount_cents, period, start_date, end_date, created_by, created_at, updated_at`

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func (s *BudgetStore) Create(familyID int64, in BudgetInput, createdBy *int64) (*model.Budget, error) {
	if in.Period == "" {
		in.Period = model.PeriodMonthly
	}
	result, err := s.db.Exec(
		`INSERT INTO budgets (family_id, category, amount_cents, period, start_date, end_date, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		familyID, in.Category, in.AmountCents, in.Period, in.StartDate.UTC(), nullTime(in.EndDate), nullInt64(createdBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert budget: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BudgetStore) GetByID(id int64) (*model.Budget, error) {
	row := s.db.QueryRow(`SELECT `+budgetCols+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (s *BudgetStore) ListByFamily(familyID int64) ([]model.Budget, error) {
	rows, err := s.db.Query(
		`SELECT `+budgetCols+` FROM budgets WHERE family_id = ? ORDER BY start_date DESC, category ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []model.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, *b)
	}
	return budgets, rows.Err()
}

func (s *BudgetStore) Update(id int64, in BudgetInput) (*model.Budget, error) {
	if in.Period == "" {
		in.Period = model.PeriodMonthly
	}
	_, err := s.db.Exec(
		`UPDATE budgets SET category = ?, amount_cents = ?, period = ?, start_date = ?, end_date = ? WHERE id = ?`,
		in.Category, in.AmountCents, in.Period, in.StartDate.UTC(), nullTime(in.EndDate), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	return s.GetByID(id)
}

func (s *BudgetStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// Summaries returns every budget of the family with the total of the
// expenses attached to it.
func (s *BudgetStore) Summaries(familyID int64) ([]model.BudgetSummary, error) {
	rows, err := s.db.Query(
		`SELECT b.id, b.family_id, b.category, b.amount_cents, b.period, b.start_date, b.end_date,
		        b.created_by, b.created_at, b.updated_at, COALESCE(SUM(e.amount_cents), 0)
		 FROM budgets b
		 LEFT JOIN expenses e ON e.budget_id = b.id
		 WHERE b.family_id = ?
		 GROUP BY b.id
		 ORDER BY b.start_date DESC, b.category ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("budget summaries: %w", err)
	}
	defer rows.Close()

	var out []model.BudgetSummary
	for rows.Next() {
		var sum model.BudgetSummary
		var endDate sql.NullTime
		var createdBy sql.NullInt64
		if err := rows.Scan(
			&sum.ID, &sum.FamilyID, &sum.Category, &sum.AmountCents, &sum.Period,
			&sum.StartDate, &endDate, &createdBy, &sum.CreatedAt, &sum.UpdatedAt, &sum.SpentCents,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if endDate.Valid {
			sum.EndDate = &endDate.Time
		}
		if createdBy.Valid {
			sum.CreatedBy = &createdBy.Int64
		}
		sum.RemainingCents = sum.AmountCents - sum.SpentCents
		out = append(out, sum)
	}
	return out, rows.Err()
}
