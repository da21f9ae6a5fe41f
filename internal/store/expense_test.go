package store

import "testing"

func TestExpenseCRUD(t *testing.T) {
	db := setupTestDB(t)
	us, fs, es := NewUserStore(db), NewFamilyStore(db), NewExpenseStore(db)
	u := mustUser(t, us, "alice@example.com", "Alice")
	f := mustFamily(t, fs, "Smiths", u.ID)

	e, err := es.Create(f.ID, ExpenseInput{AmountCents: 1299, Description: "Milk", SpentAt: date(2026, 10, 2)}, &u.ID)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if e.BudgetID != nil {
		t.Errorf("budget_id = %v, want nil", *e.BudgetID)
	}
	if e.Description != "Milk" {
		t.Errorf("description = %q, want Milk", e.Description)
	}

	updated, err := es.Update(e.ID, ExpenseInput{AmountCents: 1399, Description: "Oat milk", SpentAt: date(2026, 10, 2)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AmountCents != 1399 || updated.Description != "Oat milk" {
		t.Errorf("updated = %+v", updated)
	}

	if err := es.Delete(e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := es.GetByID(e.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestExpenseRejectsZeroAmount(t *testing.T) {
	db := setupTestDB(t)
	us, fs, es := NewUserStore(db), NewFamilyStore(db), NewExpenseStore(db)
	u := mustUser(t, us, "alice@example.com", "Alice")
	f := mustFamily(t, fs, "Smiths", u.ID)

	if _, err := es.Create(f.ID, ExpenseInput{AmountCents: 0, SpentAt: date(2026, 10, 2)}, nil); err == nil {
		t.Fatal("expected check constraint error")
	}
}

func TestExpenseListFilters(t *testing.T) {
	db := setupTestDB(t)
	us, fs, bs, es := NewUserStore(db), NewFamilyStore(db), NewBudgetStore(db), NewExpenseStore(db)
	u := mustUser(t, us, "alice@example.com", "Alice")
	f := mustFamily(t, fs, "Smiths", u.ID)
	other := mustFamily(t, fs, "Others", u.ID)
	food, _ := bs.Create(f.ID, BudgetInput{Category: "Food", AmountCents: 10000, StartDate: date(2026, 10, 1)}, nil)

	es.Create(f.ID, ExpenseInput{BudgetID: &food.ID, AmountCents: 100, SpentAt: date(2026, 9, 30)}, nil)
	es.Create(f.ID, ExpenseInput{BudgetID: &food.ID, AmountCents: 200, SpentAt: date(2026, 10, 5)}, nil)
	es.Create(f.ID, ExpenseInput{AmountCents: 300, SpentAt: date(2026, 10, 6)}, nil)
	es.Create(other.ID, ExpenseInput{AmountCents: 400, SpentAt: date(2026, 10, 6)}, nil)

	all, err := es.ListByFamily(f.ID, ExpenseFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}
	if all[0].AmountCents != 300 {
		t.Errorf("first = %d, want newest (300)", all[0].AmountCents)
	}

	byBudget, _ := es.ListByFamily(f.ID, ExpenseFilter{BudgetID: &food.ID})
	if len(byBudget) != 2 {
		t.Errorf("by budget len = %d, want 2", len(byBudget))
	}

	october, _ := es.ListByFamily(f.ID, ExpenseFilter{From: date(2026, 10, 1), To: date(2026, 11, 1)})
	if len(october) != 2 {
		t.Errorf("october len = %d, want 2", len(october))
	}

	total, err := es.TotalByFamily(f.ID, date(2026, 10, 1), date(2026, 11, 1))
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 500 {
		t.Errorf("total = %d, want 500", total)
	}
}

func TestExpenseBudgetDeleteDetaches(t *testing.T) {
	db := setupTestDB(t)
	us, fs, bs, es := NewUserStore(db), NewFamilyStore(db), NewBudgetStore(db), NewExpenseStore(db)
	u := mustUser(t, us, "alice@example.com", "Alice")
	f := mustFamily(t, fs, "Smiths", u.ID)
	food, _ := bs.Create(f.ID, BudgetInput{Category: "Food", AmountCents: 10000, StartDate: date(2026, 10, 1)}, nil)
	e, _ := es.Create(f.ID, ExpenseInput{BudgetID: &food.ID, AmountCents: 100, SpentAt: date(2026, 10, 2)}, nil)

	if err := bs.Delete(food.ID); err != nil {
		t.Fatalf("delete budget: %v", err)
	}
	got, _ := es.GetByID(e.ID)
	if got == nil {
		t.Fatal("expense should survive budget delete")
	}
	if got.BudgetID != nil {
		t.Errorf("budget_id = %v, want nil", *got.BudgetID)
	}
}
