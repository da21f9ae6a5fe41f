package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/sanitize"
	"github.com/dukerupert/famfin/internal/store"
	"github.com/dukerupert/famfin/internal/websocket"
)

type FamilyHandler struct {
	familyStore  *store.FamilyStore
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, us *store.UserStore, ss *store.SessionStore, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{familyStore: fs, userStore: us, sessionStore: ss, hub: hub, logger: logger}
}

type familyRequest struct {
	Name string `json:"name"`
}

type familyResponse struct {
	*model.Family
	Members []model.FamilyMember `json:"members"`
}

// Create handles POST /api/families. The caller becomes the owner, and the
// family is selected for the session if none was.
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req familyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	name := sanitize.Text(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	family, err := h.familyStore.Create(name, ac.UserID)
	if err != nil {
		h.logger.Error("create family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}

	if ac.FamilyID == 0 {
		if err := h.sessionStore.UpdateFamilyID(ac.SessionID, family.ID); err != nil {
			h.logger.Error("select new family", "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, family)
}

// List handles GET /api/families
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.familyStore.ListForUser(auth.UserID(r.Context()))
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

// Get handles GET /api/families/{id}
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyFromPath(w, r, h.familyStore, h.logger)
	if !ok {
		return
	}

	family, err := h.familyStore.GetByID(familyID)
	if err != nil {
		h.logger.Error("get family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get family")
		return
	}
	if family == nil {
		writeError(w, http.StatusNotFound, "family not found")
		return
	}

	members, err := h.familyStore.ListMembers(familyID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get family")
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, familyResponse{Family: family, Members: members})
}

// Update handles PUT /api/families/{id}
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return
	}
	if _, ok := requireOwner(w, r, h.familyStore, familyID, h.logger); !ok {
		return
	}

	var req familyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	name := sanitize.Text(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	family, err := h.familyStore.Update(familyID, name)
	if err != nil {
		h.logger.Error("update family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update family")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// Delete handles DELETE /api/families/{id}
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return
	}
	if _, ok := requireOwner(w, r, h.familyStore, familyID, h.logger); !ok {
		return
	}

	members, err := h.familyStore.ListMembers(familyID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete family")
		return
	}
	if err := h.familyStore.Delete(familyID); err != nil {
		h.logger.Error("delete family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete family")
		return
	}
	for _, m := range members {
		h.hub.EvictUser(m.UserID, familyID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Select handles POST /api/families/{id}/select, making it the session's family.
func (h *FamilyHandler) Select(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyFromPath(w, r, h.familyStore, h.logger)
	if !ok {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if err := h.sessionStore.UpdateFamilyID(ac.SessionID, familyID); err != nil {
		h.logger.Error("select family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to select family")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"family_id": familyID})
}
