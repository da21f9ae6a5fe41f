package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "famfin_session"

// SessionToken extracts the session token from the Authorization header,
// the session cookie, or (for browser WebSocket upgrades) the token query
// parameter, in that order.
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// RequireAuth validates the session token and populates AuthContext.
// The session's family is only carried over while the user is still a member.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore, familyStore *store.FamilyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := resolveSession(r, sessionStore, userStore, familyStore)
			if !ok {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// OptionalAuth populates AuthContext when the request carries a valid
// session and passes the request through unchanged otherwise.
func OptionalAuth(sessionStore *store.SessionStore, userStore *store.UserStore, familyStore *store.FamilyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ac, ok := resolveSession(r, sessionStore, userStore, familyStore); ok {
				r = r.WithContext(auth.WithAuth(r.Context(), ac))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveSession(r *http.Request, sessionStore *store.SessionStore, userStore *store.UserStore, familyStore *store.FamilyStore) (auth.AuthContext, bool) {
	token := SessionToken(r)
	if token == "" {
		return auth.AuthContext{}, false
	}

	sess, err := sessionStore.GetByToken(token)
	if err != nil || sess == nil {
		return auth.AuthContext{}, false
	}

	user, err := userStore.GetByID(sess.UserID)
	if err != nil || user == nil {
		return auth.AuthContext{}, false
	}

	ac := auth.AuthContext{
		UserID:    user.ID,
		Role:      user.Role,
		SessionID: sess.ID,
	}
	if sess.FamilyID != nil {
		member, err := familyStore.GetMember(*sess.FamilyID, user.ID)
		if err == nil && member != nil {
			ac.FamilyID = *sess.FamilyID
		}
	}
	return ac, true
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
