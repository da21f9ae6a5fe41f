package websocket

import (
	"encoding/json"
	"time"
)

// Inbound event names sent by clients.
const (
	EventAuthenticate = "authenticate"
	EventJoinFamily   = "join_family"
	EventLeaveFamily  = "leave_family"
)

// Outbound event names sent to clients.
const (
	EventAuthenticated  = "authenticated"
	EventError          = "error"
	EventNotification   = "notification"
	EventBudgetCreated  = "budget_created"
	EventBudgetUpdated  = "budget_updated"
	EventBudgetDeleted  = "budget_deleted"
	EventBudgetShared   = "budget_shared"
	EventExpenseCreated = "expense_created"
	EventExpenseUpdated = "expense_updated"
	EventExpenseDeleted = "expense_deleted"
)

// Frame is the JSON envelope for every message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(outFrame{Event: event, Data: data})
}

type authenticatePayload struct {
	UserID int64 `json:"userId"`
}

type familyPayload struct {
	FamilyID int64 `json:"familyId"`
}

// AuthenticatedPayload acknowledges an authenticate request.
type AuthenticatedPayload struct {
	UserID int64 `json:"userId"`
}

// ErrorPayload reports a rejected client request.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Notification is a user-facing notice delivered under the "notification" event.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Data      any       `json:"data,omitempty"`
}

// BudgetEvent is the client-facing view of a budget change. Deletions carry
// only the identifiers.
type BudgetEvent struct {
	ID          int64      `json:"id"`
	FamilyID    int64      `json:"familyId"`
	Category    string     `json:"category,omitempty"`
	AmountCents int64      `json:"amountCents,omitempty"`
	Period      string     `json:"period,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

// ExpenseEvent is the client-facing view of an expense change. Deletions
// carry only the identifiers.
type ExpenseEvent struct {
	ID          int64      `json:"id"`
	FamilyID    int64      `json:"familyId"`
	BudgetID    *int64     `json:"budgetId,omitempty"`
	AmountCents int64      `json:"amountCents,omitempty"`
	Description string     `json:"description,omitempty"`
	SpentAt     *time.Time `json:"spentAt,omitempty"`
}
