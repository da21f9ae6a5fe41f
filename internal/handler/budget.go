package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/email"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/push"
	"github.com/dukerupert/famfin/internal/sanitize"
	"github.com/dukerupert/famfin/internal/store"
	"github.com/dukerupert/famfin/internal/websocket"
)

type BudgetHandler struct {
	budgetStore  *store.BudgetStore
	expenseStore *store.ExpenseStore
	shareStore   *store.ShareStore
	familyStore  *store.FamilyStore
	userStore    *store.UserStore
	hub          *websocket.Hub
	push         *push.Dispatcher
	mail         *email.Client
	logger       *slog.Logger
	now          func() time.Time
}

func NewBudgetHandler(
	bs *store.BudgetStore,
	es *store.ExpenseStore,
	ss *store.ShareStore,
	fs *store.FamilyStore,
	us *store.UserStore,
	hub *websocket.Hub,
	pd *push.Dispatcher,
	mail *email.Client,
	logger *slog.Logger,
) *BudgetHandler {
	return &BudgetHandler{
		budgetStore:  bs,
		expenseStore: es,
		shareStore:   ss,
		familyStore:  fs,
		userStore:    us,
		hub:          hub,
		push:         pd,
		mail:         mail,
		logger:       logger,
		now:          time.Now,
	}
}

var validPeriods = map[string]bool{
	model.PeriodWeekly:  true,
	model.PeriodMonthly: true,
	model.PeriodYearly:  true,
}

type budgetRequest struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
	Period      string `json:"period"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// input validates req. The start date defaults to today.
func (req budgetRequest) input(today time.Time) (store.BudgetInput, error) {
	in := store.BudgetInput{
		Category:    sanitize.Text(req.Category),
		AmountCents: req.AmountCents,
		Period:      req.Period,
	}
	if in.Category == "" {
		return in, errors.New("category is required")
	}
	if in.AmountCents < 0 {
		return in, errors.New("amount_cents must not be negative")
	}
	if in.Period == "" {
		in.Period = model.PeriodMonthly
	}
	if !validPeriods[in.Period] {
		return in, errors.New("period must be weekly, monthly, or yearly")
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return in, errors.New("start_date must be YYYY-MM-DD")
	}
	if start.IsZero() {
		start = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	}
	in.StartDate = start

	end, err := parseDate(req.EndDate)
	if err != nil {
		return in, errors.New("end_date must be YYYY-MM-DD")
	}
	if !end.IsZero() {
		if end.Before(start) {
			return in, errors.New("end_date must not be before start_date")
		}
		in.EndDate = &end
	}
	return in, nil
}

// List handles GET /api/families/{id}/budgets
func (h *BudgetHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyFromPath(w, r, h.familyStore, h.logger)
	if !ok {
		return
	}

	budgets, err := h.budgetStore.ListByFamily(familyID)
	if err != nil {
		h.logger.Error("list budgets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list budgets")
		return
	}
	if budgets == nil {
		budgets = []model.Budget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

// Create handles POST /api/families/{id}/budgets
func (h *BudgetHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyFromPath(w, r, h.familyStore, h.logger)
	if !ok {
		return
	}

	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in, err := req.input(h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := auth.UserID(r.Context())
	budget, err := h.budgetStore.Create(familyID, in, &userID)
	if err != nil {
		h.logger.Error("create budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create budget")
		return
	}

	h.hub.NotifyBudgetCreated(familyID, budgetEvent(budget))
	writeJSON(w, http.StatusCreated, budget)
}

// loadBudget resolves {id} and checks the caller belongs to its family.
func (h *BudgetHandler) loadBudget(w http.ResponseWriter, r *http.Request) (*model.Budget, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	budget, err := h.budgetStore.GetByID(id)
	if err != nil {
		h.logger.Error("get budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get budget")
		return nil, false
	}
	if budget == nil {
		writeError(w, http.StatusNotFound, "budget not found")
		return nil, false
	}
	if _, ok := requireMember(w, r, h.familyStore, budget.FamilyID, h.logger); !ok {
		return nil, false
	}
	return budget, true
}

// Get handles GET /api/budgets/{id}. Family members and users the budget was
// shared with may read it.
func (h *BudgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	budget, err := h.budgetStore.GetByID(id)
	if err != nil {
		h.logger.Error("get budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get budget")
		return
	}
	if budget == nil {
		writeError(w, http.StatusNotFound, "budget not found")
		return
	}

	userID := auth.UserID(r.Context())
	member, err := h.familyStore.GetMember(budget.FamilyID, userID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get budget")
		return
	}
	if member == nil {
		shared, err := h.shareStore.IsSharedWith(budget.ID, userID)
		if err != nil {
			h.logger.Error("check share", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get budget")
			return
		}
		if !shared {
			writeError(w, http.StatusForbidden, "not a member of this family")
			return
		}
	}

	writeJSON(w, http.StatusOK, budget)
}

// Update handles PUT /api/budgets/{id}
func (h *BudgetHandler) Update(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in, err := req.input(h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.budgetStore.Update(budget.ID, in)
	if err != nil {
		h.logger.Error("update budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update budget")
		return
	}

	h.hub.NotifyBudgetUpdated(updated.FamilyID, budgetEvent(updated))
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/budgets/{id}
func (h *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	if err := h.budgetStore.Delete(budget.ID); err != nil {
		h.logger.Error("delete budget", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete budget")
		return
	}

	h.hub.NotifyBudgetDeleted(budget.FamilyID, websocket.BudgetEvent{ID: budget.ID, FamilyID: budget.FamilyID})
	w.WriteHeader(http.StatusNoContent)
}

type shareRequest struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

type shareResponse struct {
	*model.BudgetShare
	Delivered int  `json:"delivered"`
	Pushed    bool `json:"pushed"`
	Emailed   bool `json:"emailed"`
}

// Share handles POST /api/budgets/{id}/share. The recipient is notified on
// every live connection; with none, the notice falls back to web push and
// then to email.
func (h *BudgetHandler) Share(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}

	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var target *model.User
	var err error
	switch {
	case req.UserID > 0:
		target, err = h.userStore.GetByID(req.UserID)
	case strings.TrimSpace(req.Email) != "":
		target, err = h.userStore.GetByEmail(strings.TrimSpace(req.Email))
	default:
		writeError(w, http.StatusBadRequest, "user_id or email is required")
		return
	}
	if err != nil {
		h.logger.Error("lookup share target", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to share budget")
		return
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	sharerID := auth.UserID(r.Context())
	if target.ID == sharerID {
		writeError(w, http.StatusBadRequest, "cannot share a budget with yourself")
		return
	}
	sharer, err := h.userStore.GetByID(sharerID)
	if err != nil || sharer == nil {
		h.logger.Error("load sharer", "user_id", sharerID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to share budget")
		return
	}

	share, err := h.shareStore.Create(budget.ID, target.ID, sharerID)
	if errors.Is(err, store.ErrAlreadyShared) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("create share", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to share budget")
		return
	}

	resp := shareResponse{BudgetShare: share}
	resp.Delivered = h.hub.NotifyBudgetShared(target.ID, budgetEvent(budget), sharer.Name)
	if resp.Delivered == 0 {
		n := websocket.NewBudgetSharedNotification(budgetEvent(budget), sharer.Name, h.now())
		resp.Pushed = h.push.Enqueue(target.ID, push.Payload{
			ID:    n.ID,
			Type:  n.Type,
			Title: n.Title,
			Body:  n.Message,
			URL:   "/budgets/shared",
			Tag:   fmt.Sprintf("budget-shared-%d", budget.ID),
		})
	}
	if resp.Delivered == 0 && !resp.Pushed && h.mail.Configured() {
		resp.Emailed = true
		go h.emailShare(target.Email, sharer.Name, budget.Category)
	}

	h.logger.Info("budget shared", "budget_id", budget.ID, "to_user", target.ID, "delivered", resp.Delivered, "pushed", resp.Pushed, "emailed", resp.Emailed)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *BudgetHandler) emailShare(to, sharedBy, category string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := h.mail.SendBudgetShared(ctx, to, sharedBy, category); err != nil {
		h.logger.Error("email share notice", "to", to, "error", err)
	}
}

// Unshare handles DELETE /api/budgets/{id}/share/{user_id}
func (h *BudgetHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	budget, ok := h.loadBudget(w, r)
	if !ok {
		return
	}
	userID, err := parsePathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.shareStore.Delete(budget.ID, userID); err != nil {
		h.logger.Error("delete share", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unshare budget")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Shared handles GET /api/budgets/shared
func (h *BudgetHandler) Shared(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.shareStore.ListForUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list shared budgets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list shared budgets")
		return
	}
	if budgets == nil {
		budgets = []model.SharedBudget{}
	}
	writeJSON(w, http.StatusOK, budgets)
}

type summaryResponse struct {
	FamilyID       int64                 `json:"family_id"`
	Budgets        []model.BudgetSummary `json:"budgets"`
	TotalBudgeted  int64                 `json:"total_budgeted_cents"`
	TotalSpent     int64                 `json:"total_spent_cents"`
	SpentThisMonth int64                 `json:"spent_this_month_cents"`
	MonthStart     string                `json:"month_start"`
}

// Summary handles GET /api/families/{id}/summary: each budget against what
// has been spent on it, plus the family's spending this calendar month.
func (h *BudgetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyFromPath(w, r, h.familyStore, h.logger)
	if !ok {
		return
	}

	summaries, err := h.budgetStore.Summaries(familyID)
	if err != nil {
		h.logger.Error("budget summaries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}

	now := h.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	spent, err := h.expenseStore.TotalByFamily(familyID, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		h.logger.Error("month total", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}

	resp := summaryResponse{
		FamilyID:       familyID,
		Budgets:        summaries,
		SpentThisMonth: spent,
		MonthStart:     monthStart.Format(dateLayout),
	}
	if resp.Budgets == nil {
		resp.Budgets = []model.BudgetSummary{}
	}
	for _, s := range resp.Budgets {
		resp.TotalBudgeted += s.AmountCents
		resp.TotalSpent += s.SpentCents
	}
	writeJSON(w, http.StatusOK, resp)
}
