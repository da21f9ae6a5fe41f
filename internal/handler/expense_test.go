package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/store"
)

func TestExpenseCreate(t *testing.T) {
	e := setupEnv(t)
	alice := e.user(t, "alice@example.com", "Alice")
	fam := e.family(t, "Smiths", alice.ID)
	b, err := e.budgets.Create(fam.ID, store.BudgetInput{Category: "Food", AmountCents: 100, StartDate: testNow()}, nil)
	require.NoError(t, err)

	rec := call(t, e.expenseH.Create, alice.ID, "POST", map[string]any{
		"budget_id":    b.ID,
		"amount_cents": 1250,
		"description":  "Farmers <i>market</i>",
		"spent_at":     "2026-03-14",
	}, "id", itoa(fam.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exp := decode[model.Expense](t, rec)
	assert.Equal(t, "Farmers market", exp.Description)
	assert.Equal(t, "2026-03-14", exp.SpentAt.Format(dateLayout))
	require.NotNil(t, exp.BudgetID)
	assert.Equal(t, b.ID, *exp.BudgetID)

	// Defaults spent_at to today.
	rec = call(t, e.expenseH.Create, alice.ID, "POST", map[string]any{"amount_cents": 1}, "id", itoa(fam.ID))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2026-03-15", decode[model.Expense](t, rec).SpentAt.Format(dateLayout))
}

func TestExpenseCreateValidation(t *testing.T) {
	e := setupEnv(t)
	alice := e.user(t, "alice@example.com", "Alice")
	fam := e.family(t, "Smiths", alice.ID)
	other := e.family(t, "Others", alice.ID)
	foreign, err := e.budgets.Create(other.ID, store.BudgetInput{Category: "X", AmountCents: 1, StartDate: testNow()}, nil)
	require.NoError(t, err)

	rec := call(t, e.expenseH.Create, alice.ID, "POST", map[string]any{"amount_cents": 0}, "id", itoa(fam.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, e.expenseH.Create, alice.ID, "POST", map[string]any{"amount_cents": 5, "spent_at": "yesterday"}, "id", itoa(fam.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, e.expenseH.Create, alice.ID, "POST", map[string]any{"amount_cents": 5, "budget_id": foreign.ID}, "id", itoa(fam.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "budget_id does not belong to this family", errorOf(t, rec))
}

func TestExpenseListFilters(t *testing.T) {
	e := setupEnv(t)
	alice := e.user(t, "alice@example.com", "Alice")
	fam := e.family(t, "Smiths", alice.ID)
	b, err := e.budgets.Create(fam.ID, store.BudgetInput{Category: "Food", AmountCents: 100, StartDate: testNow()}, nil)
	require.NoError(t, err)

	for _, in := range []store.ExpenseInput{
		{BudgetID: &b.ID, AmountCents: 1, SpentAt: testNow().AddDate(0, 0, -10)},
		{BudgetID: &b.ID, AmountCents: 2, SpentAt: testNow()},
		{AmountCents: 3, SpentAt: testNow()},
	} {
		_, err := e.expenses.Create(fam.ID, in, nil)
		require.NoError(t, err)
	}

	list := func(query string) []model.Expense {
		req := httptestRequest(t, alice.ID, "/?"+query, "id", itoa(fam.ID))
		rec := serve(e.expenseH.List, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[[]model.Expense](t, rec)
	}

	assert.Len(t, list(""), 3)
	assert.Len(t, list("budget_id="+itoa(b.ID)), 2)
	// to is inclusive of the named day
	assert.Len(t, list("from=2026-03-15&to=2026-03-15"), 2)
	assert.Len(t, list("to=2026-03-14"), 1)

	req := httptestRequest(t, alice.ID, "/?from=March", "id", itoa(fam.ID))
	assert.Equal(t, http.StatusBadRequest, serve(e.expenseH.List, req).Code)
}

func TestExpenseUpdateDelete(t *testing.T) {
	e := setupEnv(t)
	alice := e.user(t, "alice@example.com", "Alice")
	mallory := e.user(t, "mallory@example.com", "Mallory")
	fam := e.family(t, "Smiths", alice.ID)
	exp, err := e.expenses.Create(fam.ID, store.ExpenseInput{AmountCents: 100, SpentAt: testNow()}, nil)
	require.NoError(t, err)

	rec := call(t, e.expenseH.Get, mallory.ID, "GET", nil, "id", itoa(exp.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, e.expenseH.Update, alice.ID, "PUT", map[string]any{
		"amount_cents": 250, "description": "Taxi", "spent_at": "2026-03-10",
	}, "id", itoa(exp.ID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(250), decode[model.Expense](t, rec).AmountCents)

	rec = call(t, e.expenseH.Delete, alice.ID, "DELETE", nil, "id", itoa(exp.ID))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(t, e.expenseH.Get, alice.ID, "GET", nil, "id", itoa(exp.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
