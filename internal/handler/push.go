package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/push"
	"github.com/dukerupert/famfin/internal/store"
)

type PushHandler struct {
	pushStore  *store.PushStore
	service    *push.Service
	dispatcher *push.Dispatcher
	logger     *slog.Logger
}

// NewPushHandler creates the handler. svc and pd are nil when VAPID keys are
// not configured.
func NewPushHandler(ps *store.PushStore, svc *push.Service, pd *push.Dispatcher, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, dispatcher: pd, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

func (req subscribeRequest) validate() string {
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		return "endpoint, p256dh, and auth are required"
	}
	u, err := url.Parse(req.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return "endpoint must be an https URL"
	}
	return ""
}

// Subscribe handles POST /api/push/subscribe. Re-subscribing the same
// endpoint moves it to the current user.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	userID := auth.UserID(r.Context())
	sub, err := h.pushStore.Upsert(userID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("save push subscription", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}. Only the owner's
// subscription is removed.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.pushStore.Delete(id, auth.UserID(r.Context())); err != nil {
		h.logger.Error("delete push subscription", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusNotFound, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// Test handles POST /api/push/test. It pushes synchronously so the caller
// learns how many devices accepted the message.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		writeError(w, http.StatusNotFound, "push notifications are not configured")
		return
	}
	sent := h.dispatcher.SendToUser(r.Context(), auth.UserID(r.Context()), push.Payload{
		Type:  "test",
		Title: "famfin",
		Body:  "Push notifications are working.",
		Tag:   "push-test",
	})
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
