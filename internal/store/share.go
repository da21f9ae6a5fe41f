package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/famfin/internal/model"
)

// ErrAlreadyShared is returned when a budget is already shared with the user.
var ErrAlreadyShared = errors.New("budget already shared with user")

type ShareStore struct {
	db *sql.DB
}

func NewShareStore(db *sql.DB) *ShareStore {
	return &ShareStore{db: db}
}

func (s *ShareStore) Create(budgetID, sharedWith, sharedBy int64) (*model.BudgetShare, error) {
	result, err := s.db.Exec(
		`INSERT INTO budget_shares (budget_id, shared_with_user_id, shared_by_user_id) VALUES (?, ?, ?)`,
		budgetID, sharedWith, sharedBy,
	)
	if isUniqueViolation(err) {
		return nil, ErrAlreadyShared
	}
	if err != nil {
		return nil, fmt.Errorf("insert share: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var sh model.BudgetShare
	err = s.db.QueryRow(
		`SELECT id, budget_id, shared_with_user_id, shared_by_user_id, created_at FROM budget_shares WHERE id = ?`, id,
	).Scan(&sh.ID, &sh.BudgetID, &sh.SharedWithUserID, &sh.SharedByUserID, &sh.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get share: %w", err)
	}
	return &sh, nil
}

func (s *ShareStore) Delete(budgetID, sharedWith int64) error {
	_, err := s.db.Exec(
		`DELETE FROM budget_shares WHERE budget_id = ? AND shared_with_user_id = ?`,
		budgetID, sharedWith,
	)
	if err != nil {
		return fmt.Errorf("delete share: %w", err)
	}
	return nil
}

// IsSharedWith reports whether the budget has been shared with the user.
func (s *ShareStore) IsSharedWith(budgetID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM budget_shares WHERE budget_id = ? AND shared_with_user_id = ?`,
		budgetID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check share: %w", err)
	}
	return n > 0, nil
}

// ListForUser returns budgets shared with the user, newest share first.
func (s *ShareStore) ListForUser(userID int64) ([]model.SharedBudget, error) {
	rows, err := s.db.Query(
		`SELECT b.id, b.family_id, b.category, b.amount_cents, b.period, b.start_date, b.end_date,
		        b.created_by, b.created_at, b.updated_at, bs.shared_by_user_id, u.name, bs.created_at
		 FROM budget_shares bs
		 JOIN budgets b ON b.id = bs.budget_id
		 JOIN users u ON u.id = bs.shared_by_user_id
		 WHERE bs.shared_with_user_id = ?
		 ORDER BY bs.created_at DESC, bs.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shared budgets: %w", err)
	}
	defer rows.Close()

	var out []model.SharedBudget
	for rows.Next() {
		var sb model.SharedBudget
		var endDate sql.NullTime
		var createdBy sql.NullInt64
		if err := rows.Scan(
			&sb.ID, &sb.FamilyID, &sb.Category, &sb.AmountCents, &sb.Period,
			&sb.StartDate, &endDate, &createdBy, &sb.CreatedAt, &sb.UpdatedAt,
			&sb.SharedByUserID, &sb.SharedByName, &sb.SharedAt,
		); err != nil {
			return nil, fmt.Errorf("scan shared budget: %w", err)
		}
		if endDate.Valid {
			sb.EndDate = &endDate.Time
		}
		if createdBy.Valid {
			sb.CreatedBy = &createdBy.Int64
		}
		out = append(out, sb)
	}
	return out, rows.Err()
}
