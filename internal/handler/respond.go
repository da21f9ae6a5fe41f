package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/websocket"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// parseDate parses a YYYY-MM-DD string. An empty string yields the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func budgetEvent(b *model.Budget) websocket.BudgetEvent {
	return websocket.BudgetEvent{
		ID:          b.ID,
		FamilyID:    b.FamilyID,
		Category:    b.Category,
		AmountCents: b.AmountCents,
		Period:      b.Period,
		StartDate:   &b.StartDate,
		EndDate:     b.EndDate,
	}
}

func expenseEvent(e *model.Expense) websocket.ExpenseEvent {
	return websocket.ExpenseEvent{
		ID:          e.ID,
		FamilyID:    e.FamilyID,
		BudgetID:    e.BudgetID,
		AmountCents: e.AmountCents,
		Description: e.Description,
		SpentAt:     &e.SpentAt,
	}
}
