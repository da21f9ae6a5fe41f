package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/sanitize"
	"github.com/dukerupert/famfin/internal/store"
	"github.com/dukerupert/famfin/internal/websocket"
)

type ExpenseHandler struct {
	expenseStore *store.ExpenseStore
	budgetStore  *store.BudgetStore
	familyStore  *store.FamilyStore
	hub          *websocket.Hub
	logger       *slog.Logger
	now          func() time.Time
}

func NewExpenseHandler(es *store.ExpenseStore, bs *store.BudgetStore, fs *store.FamilyStore, hub *websocket.Hub, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{
		expenseStore: es,
		budgetStore:  bs,
		familyStore:  fs,
		hub:          hub,
		logger:       logger,
		now:          time.Now,
	}
}

type expenseRequest struct {
	BudgetID    *int64 `json:"budget_id"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	SpentAt     string `json:"spent_at"`
}

func (req expenseRequest) input(today time.Time) (store.ExpenseInput, error) {
	in := store.ExpenseInput{
		BudgetID:    req.BudgetID,
		AmountCents: req.AmountCents,
		Description: sanitize.Text(req.Description),
	}
	if in.AmountCents <= 0 {
		return in, errors.New("amount_cents must be positive")
	}
	spent, err := parseDate(req.SpentAt)
	if err != nil {
		return in, errors.New("spent_at must be YYYY-MM-DD")
	}
	if spent.IsZero() {
		spent = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	}
	in.SpentAt = spent
	return in, nil
}

// checkBudget verifies that an expense's budget belongs to familyID.
func (h *ExpenseHandler) checkBudget(w http.ResponseWriter, familyID int64, budgetID *int64) bool {
	if budgetID == nil {
		return true
	}
	b, err := h.budgetStore.GetByID(*budgetID)
	if err != nil {
		h.logger.Error("get budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check budget")
		return false
	}
	if b == nil || b.FamilyID != familyID {
		writeError(w, http.StatusBadRequest, "budget_id does not belong to this family")
		return false
	}
	return true
}

// List handles GET /api/families/{id}/expenses?budget_id=&from=&to=
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyFromPath(w, r, h.familyStore, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	var f store.ExpenseFilter
	if v := q.Get("budget_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid budget_id")
			return
		}
		f.BudgetID = &id
	}
	var err error
	if f.From, err = parseDate(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	if f.To, err = parseDate(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if !f.To.IsZero() {
		// to is inclusive for callers
		f.To = f.To.AddDate(0, 0, 1)
	}

	expenses, err := h.expenseStore.ListByFamily(familyID, f)
	if err != nil {
		h.logger.Error("list expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

// Create handles POST /api/families/{id}/expenses
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyFromPath(w, r, h.familyStore, h.logger)
	if !ok {
		return
	}

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in, err := req.input(h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.checkBudget(w, familyID, in.BudgetID) {
		return
	}

	userID := auth.UserID(r.Context())
	expense, err := h.expenseStore.Create(familyID, in, &userID)
	if err != nil {
		h.logger.Error("create expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create expense")
		return
	}

	h.hub.NotifyExpenseCreated(familyID, expenseEvent(expense))
	writeJSON(w, http.StatusCreated, expense)
}

func (h *ExpenseHandler) loadExpense(w http.ResponseWriter, r *http.Request) (*model.Expense, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	expense, err := h.expenseStore.GetByID(id)
	if err != nil {
		h.logger.Error("get expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get expense")
		return nil, false
	}
	if expense == nil {
		writeError(w, http.StatusNotFound, "expense not found")
		return nil, false
	}
	if _, ok := requireMember(w, r, h.familyStore, expense.FamilyID, h.logger); !ok {
		return nil, false
	}
	return expense, true
}

// Get handles GET /api/expenses/{id}
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	expense, ok := h.loadExpense(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// Update handles PUT /api/expenses/{id}
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	expense, ok := h.loadExpense(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in, err := req.input(h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.checkBudget(w, expense.FamilyID, in.BudgetID) {
		return
	}

	updated, err := h.expenseStore.Update(expense.ID, in)
	if err != nil {
		h.logger.Error("update expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update expense")
		return
	}

	h.hub.NotifyExpenseUpdated(updated.FamilyID, expenseEvent(updated))
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/expenses/{id}
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	expense, ok := h.loadExpense(w, r)
	if !ok {
		return
	}

	if err := h.expenseStore.Delete(expense.ID); err != nil {
		h.logger.Error("delete expense", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}

	h.hub.NotifyExpenseDeleted(expense.FamilyID, websocket.ExpenseEvent{ID: expense.ID, FamilyID: expense.FamilyID})
	w.WriteHeader(http.StatusNoContent)
}
