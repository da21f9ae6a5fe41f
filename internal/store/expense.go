package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/famfin/internal/model"
)

type ExpenseStore struct {
	db *sql.DB
}

func NewExpenseStore(db *sql.DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

// ExpenseInput carries the writable fields of an expense.
type ExpenseInput struct {
	BudgetID    *int64
	AmountCents int64
	Description string
	SpentAt     time.Time
}

// ExpenseFilter narrows ListByFamily. Zero values mean no bound.
type ExpenseFilter struct {
	BudgetID *int64
	From     time.Time
	To       time.Time
}

func scanExpense(scanner interface{ Scan(...any) error }) (*model.Expense, error) {
	var e model.Expense
	var budgetID, createdBy sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.FamilyID, &budgetID, &e.AmountCents, &e.Description,
		&e.SpentAt, &createdBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if budgetID.Valid {
		e.BudgetID = &budgetID.Int64
	}
	if createdBy.Valid {
		e.CreatedBy = &createdBy.Int64
	}
	return &e, nil
}

const expenseCols = `id, family_id, budget_id, amount_cents, description, spent_at, created_by, created_at, updated_at`

func (s *ExpenseStore) Create(familyID int64, in ExpenseInput, createdBy *int64) (*model.Expense, error) {
	result, err := s.db.Exec(
		`INSERT INTO expenses (family_id, budget_id, amount_cents, description, spent_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		familyID, nullInt64(in.BudgetID), in.AmountCents, in.Description, in.SpentAt.UTC(), nullInt64(createdBy),
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ExpenseStore) GetByID(id int64) (*model.Expense, error) {
	row := s.db.QueryRow(`SELECT `+expenseCols+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (s *ExpenseStore) ListByFamily(familyID int64, f ExpenseFilter) ([]model.Expense, error) {
	query := `SELECT ` + expenseCols + ` FROM expenses WHERE family_id = ?`
	args := []any{familyID}

	if f.BudgetID != nil {
		query += ` AND budget_id = ?`
		args = append(args, *f.BudgetID)
	}
	if !f.From.IsZero() {
		query += ` AND spent_at >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		query += ` AND spent_at < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY spent_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []model.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (s *ExpenseStore) Update(id int64, in ExpenseInput) (*model.Expense, error) {
	_, err := s.db.Exec(
		`UPDATE expenses SET budget_id = ?, amount_cents = ?, description = ?, spent_at = ? WHERE id = ?`,
		nullInt64(in.BudgetID), in.AmountCents, in.Description, in.SpentAt.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	return s.GetByID(id)
}

func (s *ExpenseStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// TotalByFamily sums expenses of the family spent in [from, to).
func (s *ExpenseStore) TotalByFamily(familyID int64, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE family_id = ? AND spent_at >= ? AND spent_at < ?`,
		familyID, from.UTC(), to.UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total expenses: %w", err)
	}
	return total, nil
}
