package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/store"
)

// requireMember checks that the caller belongs to familyID and writes a 403
// when they do not. The returned member carries the caller's family role.
func requireMember(w http.ResponseWriter, r *http.Request, families *store.FamilyStore, familyID int64, logger *slog.Logger) (*model.FamilyMember, bool) {
	member, err := families.GetMember(familyID, auth.UserID(r.Context()))
	if err != nil {
		logger.Error("get family member", "family_id", familyID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return nil, false
	}
	if member == nil {
		writeError(w, http.StatusForbidden, "not a member of this family")
		return nil, false
	}
	return member, true
}

// requireOwner is requireMember restricted to family owners.
func requireOwner(w http.ResponseWriter, r *http.Request, families *store.FamilyStore, familyID int64, logger *slog.Logger) (*model.FamilyMember, bool) {
	member, ok := requireMember(w, r, families, familyID, logger)
	if !ok {
		return nil, false
	}
	if member.Role != model.FamilyRoleOwner {
		writeError(w, http.StatusForbidden, "family owner required")
		return nil, false
	}
	return member, true
}

// familyFromPath parses {id} as a family id and checks membership.
func familyFromPath(w http.ResponseWriter, r *http.Request, families *store.FamilyStore, logger *slog.Logger) (int64, bool) {
	familyID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid family id")
		return 0, false
	}
	if _, ok := requireMember(w, r, families, familyID, logger); !ok {
		return 0, false
	}
	return familyID, true
}
