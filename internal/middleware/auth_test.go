package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/database"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/store"
)

type authFixture struct {
	sessions *store.SessionStore
	users    *store.UserStore
	families *store.FamilyStore
}

func (f authFixture) middleware(next http.HandlerFunc) http.Handler {
	return RequireAuth(f.sessions, f.users, f.families)(next)
}

func setupAuthMiddlewareDB(t *testing.T) authFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return authFixture{
		sessions: store.NewSessionStore(db, time.Hour),
		users:    store.NewUserStore(db),
		families: store.NewFamilyStore(db),
	}
}

func TestRequireAuthNoToken(t *testing.T) {
	f := setupAuthMiddlewareDB(t)

	handler := f.middleware(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	f := setupAuthMiddlewareDB(t)

	handler := f.middleware(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	f := setupAuthMiddlewareDB(t)

	u, _ := f.users.Create("alice@example.com", "Alice", "hash", model.RoleAdmin)
	fam, _ := f.families.Create("Smiths", u.ID)
	sess, _ := f.sessions.Create(u.ID, &fam.ID)

	var gotAC auth.AuthContext
	handler := f.middleware(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != u.ID {
		t.Errorf("UserID = %d, want %d", gotAC.UserID, u.ID)
	}
	if gotAC.FamilyID != fam.ID {
		t.Errorf("FamilyID = %d, want %d", gotAC.FamilyID, fam.ID)
	}
	if gotAC.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", gotAC.Role, model.RoleAdmin)
	}
}

func TestRequireAuthDropsStaleFamily(t *testing.T) {
	f := setupAuthMiddlewareDB(t)

	owner, _ := f.users.Create("owner@example.com", "Owner", "hash", "")
	u, _ := f.users.Create("alice@example.com", "Alice", "hash", "")
	fam, _ := f.families.Create("Smiths", owner.ID)
	sess, _ := f.sessions.Create(u.ID, &fam.ID) // never a member

	handler := f.middleware(func(w http.ResponseWriter, r *http.Request) {
		if id := auth.FamilyID(r.Context()); id != 0 {
			t.Errorf("FamilyID = %d, want 0", id)
		}
	})

	req := httptest.NewRequest("GET", "/ws?token="+sess.Token, nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestOptionalAuth(t *testing.T) {
	f := setupAuthMiddlewareDB(t)
	u, _ := f.users.Create("alice@example.com", "Alice", "hash", "")
	sess, _ := f.sessions.Create(u.ID, nil)

	var gotUser int64
	handler := OptionalAuth(f.sessions, f.users, f.families)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = auth.UserID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws", nil))
	if gotUser != 0 {
		t.Errorf("anonymous UserID = %d, want 0", gotUser)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws?token=bogus", nil))
	if gotUser != 0 {
		t.Errorf("bad token UserID = %d, want 0", gotUser)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws?token="+sess.Token, nil))
	if gotUser != u.ID {
		t.Errorf("UserID = %d, want %d", gotUser, u.ID)
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: "admin"})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: "member"})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestSessionTokenPrecedence(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=query", nil)
	if got := SessionToken(req); got != "query" {
		t.Errorf("token = %q, want query", got)
	}
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie"})
	if got := SessionToken(req); got != "cookie" {
		t.Errorf("token = %q, want cookie", got)
	}
	req.Header.Set("Authorization", "Bearer header")
	if got := SessionToken(req); got != "header" {
		t.Errorf("token = %q, want header", got)
	}
}
