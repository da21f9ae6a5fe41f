// Package auth carries the caller's identity through request contexts and
// hashes passwords.
package auth

import (
	"context"

	"github.com/dukerupert/famfin/internal/model"
)

type contextKey struct{}

// AuthContext is the identity resolved from a session. FamilyID is 0 until
// the user selects a family they still belong to.
type AuthContext struct {
	UserID    int64
	FamilyID  int64
	Role      string
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// UserID returns the authenticated user, or 0 for an anonymous request.
func UserID(ctx context.Context) int64 {
	ac, _ := FromContext(ctx)
	return ac.UserID
}

// FamilyID returns the family selected for the session, or 0.
func FamilyID(ctx context.Context) int64 {
	ac, _ := FromContext(ctx)
	return ac.FamilyID
}

func IsAdmin(ctx context.Context) bool {
	ac, _ := FromContext(ctx)
	return ac.Role == model.RoleAdmin
}
