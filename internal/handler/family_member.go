package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/store"
)

var validFamilyRoles = map[string]bool{
	model.FamilyRoleOwner:  true,
	model.FamilyRoleMember: true,
}

type addMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type memberRoleRequest struct {
	Role string `json:"role"`
}

// ListMembers handles GET /api/families/{id}/members
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyFromPath(w, r, h.familyStore, h.logger)
	if !ok {
		return
	}

	members, err := h.familyStore.ListMembers(familyID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember handles POST /api/families/{id}/members. Owners only.
func (h *FamilyHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return
	}
	if _, ok := requireOwner(w, r, h.familyStore, familyID, h.logger); !ok {
		return
	}

	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Role == "" {
		req.Role = model.FamilyRoleMember
	}
	if !validFamilyRoles[req.Role] {
		writeError(w, http.StatusBadRequest, "role must be owner or member")
		return
	}

	user, err := h.userStore.GetByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	member, err := h.familyStore.AddMember(familyID, user.ID, req.Role)
	if errors.Is(err, store.ErrAlreadyMember) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("add member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	h.logger.Info("family member added", "family_id", familyID, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, member)
}

// UpdateMemberRole handles PUT /api/families/{id}/members/{user_id}. Owners only.
func (h *FamilyHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return
	}
	userID, err := parsePathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if _, ok := requireOwner(w, r, h.familyStore, familyID, h.logger); !ok {
		return
	}

	var req memberRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !validFamilyRoles[req.Role] {
		writeError(w, http.StatusBadRequest, "role must be owner or member")
		return
	}

	target, ok := h.loadMember(w, familyID, userID)
	if !ok {
		return
	}
	if target.Role == model.FamilyRoleOwner && req.Role != model.FamilyRoleOwner && !h.hasOtherOwner(w, familyID, userID) {
		return
	}

	member, err := h.familyStore.UpdateMemberRole(familyID, userID, req.Role)
	if err != nil {
		h.logger.Error("update member role", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update member")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// RemoveMember handles DELETE /api/families/{id}/members/{user_id}. Owners
// may remove anyone; members may only remove themselves. The last owner
// cannot leave. Live connections of the removed user leave the family room.
func (h *FamilyHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return
	}
	userID, err := parsePathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	caller, ok := requireMember(w, r, h.familyStore, familyID, h.logger)
	if !ok {
		return
	}
	if caller.Role != model.FamilyRoleOwner && userID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "family owner required")
		return
	}

	target, ok := h.loadMember(w, familyID, userID)
	if !ok {
		return
	}
	if target.Role == model.FamilyRoleOwner && !h.hasOtherOwner(w, familyID, userID) {
		return
	}

	if err := h.familyStore.RemoveMember(familyID, userID); err != nil {
		h.logger.Error("remove member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	evicted := h.hub.EvictUser(userID, familyID)
	h.logger.Info("family member removed", "family_id", familyID, "user_id", userID, "evicted_conns", evicted)

	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyHandler) loadMember(w http.ResponseWriter, familyID, userID int64) (*model.FamilyMember, bool) {
	member, err := h.familyStore.GetMember(familyID, userID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load member")
		return nil, false
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return nil, false
	}
	return member, true
}

// hasOtherOwner reports whether familyID has an owner besides userID, writing
// a 400 when it does not.
func (h *FamilyHandler) hasOtherOwner(w http.ResponseWriter, familyID, userID int64) bool {
	members, err := h.familyStore.ListMembers(familyID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check owners")
		return false
	}
	for _, m := range members {
		if m.Role == model.FamilyRoleOwner && m.UserID != userID {
			return true
		}
	}
	writeError(w, http.StatusBadRequest, "family must keep at least one owner")
	return false
}
