package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/middleware"
)

func TestRegister(t *testing.T) {
	e := setupEnv(t)

	rec := call(t, e.authH.Register, 0, "POST", map[string]string{
		"email": "Alice@Example.com", "name": "Alice", "password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[sessionResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "member", resp.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookieName, cookies[0].Name)
	assert.Equal(t, resp.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rec = call(t, e.authH.Register, 0, "POST", map[string]string{
		"email": "alice@example.com", "name": "Alice 2", "password": "correct horse",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	e := setupEnv(t)
	cases := []map[string]string{
		{"email": "not-an-email", "name": "A", "password": "longenough"},
		{"email": "a@example.com", "name": "", "password": "longenough"},
		{"email": "a@example.com", "name": "A", "password": "short"},
	}
	for _, body := range cases {
		rec := call(t, e.authH.Register, 0, "POST", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestLogin(t *testing.T) {
	e := setupEnv(t)
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	u, err := e.users.Create("alice@example.com", "Alice", hash, "")
	require.NoError(t, err)
	fam := e.family(t, "Smiths", u.ID)

	rec := call(t, e.authH.Login, 0, "POST", map[string]string{"email": "alice@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, e.authH.Login, 0, "POST", map[string]string{"email": "nobody@example.com", "password": "correct horse"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, e.authH.Login, 0, "POST", map[string]string{"email": "alice@example.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[sessionResponse](t, rec)
	require.NotNil(t, resp.FamilyID, "first family is preselected")
	assert.Equal(t, fam.ID, *resp.FamilyID)

	sess, err := e.sessions.GetByToken(resp.Token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, u.ID, sess.UserID)
}

func TestLogoutAndMe(t *testing.T) {
	e := setupEnv(t)
	alice := e.user(t, "alice@example.com", "Alice")
	fam := e.family(t, "Smiths", alice.ID)
	sess, err := e.sessions.Create(alice.ID, &fam.ID)
	require.NoError(t, err)
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{UserID: alice.ID, FamilyID: fam.ID, SessionID: sess.ID})

	rec := serve(e.authH.Me, httptest.NewRequest("GET", "/", nil).WithContext(ctx))
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[meResponse](t, rec)
	assert.Equal(t, alice.ID, me.User.ID)
	assert.Equal(t, fam.ID, me.FamilyID)
	assert.Len(t, me.Families, 1)

	rec = serve(e.authH.Logout, httptest.NewRequest("POST", "/", nil).WithContext(ctx))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got, err := e.sessions.GetByToken(sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}
