package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/sanitize"
	"github.com/dukerupert/famfin/internal/store"
	"github.com/dukerupert/famfin/internal/websocket"
)

// AdminHandler serves the global-admin views. Routes are wrapped in
// middleware.RequireAdmin.
type AdminHandler struct {
	userStore   *store.UserStore
	familyStore *store.FamilyStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewAdminHandler(us *store.UserStore, fs *store.FamilyStore, hub *websocket.Hub, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{userStore: us, familyStore: fs, hub: hub, logger: logger}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.familyStore.List()
	if err != nil {
		h.logger.Error("list families", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list families")
		return
	}
	if families == nil {
		families = []model.Family{}
	}
	writeJSON(w, http.StatusOK, families)
}

type roleRequest struct {
	Role string `json:"role"`
}

// UpdateRole handles PUT /api/admin/users/{id}/role. Admins cannot demote themselves.
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleMember {
		writeError(w, http.StatusBadRequest, "role must be admin or member")
		return
	}
	if id == auth.UserID(r.Context()) && req.Role != model.RoleAdmin {
		writeError(w, http.StatusBadRequest, "cannot remove your own admin role")
		return
	}

	existing, err := h.userStore.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	user, err := h.userStore.UpdateRole(id, req.Role)
	if err != nil {
		h.logger.Error("update role", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}

	h.logger.Info("user role changed", "user_id", id, "role", req.Role, "by", auth.UserID(r.Context()))
	writeJSON(w, http.StatusOK, user)
}

// Presence handles GET /api/admin/presence
func (h *AdminHandler) Presence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Snapshot())
}

type announceRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Announce handles POST /api/admin/announce, broadcasting a notification to
// every live connection.
func (h *AdminHandler) Announce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	title, message := sanitize.Text(req.Title), sanitize.Text(req.Message)
	if title == "" || message == "" {
		writeError(w, http.StatusBadRequest, "title and message are required")
		return
	}

	n := websocket.Notification{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      "announcement",
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	delivered := h.hub.Broadcast(n)

	writeJSON(w, http.StatusOK, map[string]any{"id": n.ID, "delivered": delivered})
}
