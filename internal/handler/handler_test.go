package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/famfin/internal/auth"
	"github.com/dukerupert/famfin/internal/database"
	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/store"
	"github.com/dukerupert/famfin/internal/websocket"
)

type testEnv struct {
	users    *store.UserStore
	families *store.FamilyStore
	sessions *store.SessionStore
	budgets  *store.BudgetStore
	expenses *store.ExpenseStore
	shares   *store.ShareStore
	pushSubs *store.PushStore
	hub      *websocket.Hub
	logger   *slog.Logger
	now      time.Time

	authH    *AuthHandler
	familyH  *FamilyHandler
	budgetH  *BudgetHandler
	expenseH *ExpenseHandler
	adminH   *AdminHandler
	pushH    *PushHandler
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &testEnv{
		users:    store.NewUserStore(db),
		families: store.NewFamilyStore(db),
		sessions: store.NewSessionStore(db, time.Hour),
		budgets:  store.NewBudgetStore(db),
		expenses: store.NewExpenseStore(db),
		shares:   store.NewShareStore(db),
		pushSubs: store.NewPushStore(db),
		hub:      websocket.NewHub(logger),
		logger:   logger,
		now:      testNow(),
	}
	e.authH = NewAuthHandler(e.users, e.families, e.sessions, "http://localhost:8080", time.Hour, logger)
	e.familyH = NewFamilyHandler(e.families, e.users, e.sessions, e.hub, logger)
	e.budgetH = NewBudgetHandler(e.budgets, e.expenses, e.shares, e.families, e.users, e.hub, nil, nil, logger)
	e.budgetH.now = func() time.Time { return e.now }
	e.expenseH = NewExpenseHandler(e.expenses, e.budgets, e.families, e.hub, logger)
	e.expenseH.now = func() time.Time { return e.now }
	e.adminH = NewAdminHandler(e.users, e.families, e.hub, logger)
	e.pushH = NewPushHandler(e.pushSubs, nil, nil, logger)
	return e
}

func (e *testEnv) user(t *testing.T, email, name string) *model.User {
	t.Helper()
	u, err := e.users.Create(email, name, "hash", model.RoleMember)
	require.NoError(t, err)
	return u
}

func (e *testEnv) family(t *testing.T, name string, owner int64, members ...int64) *model.Family {
	t.Helper()
	f, err := e.families.Create(name, owner)
	require.NoError(t, err)
	for _, m := range members {
		_, err := e.families.AddMember(f.ID, m, model.FamilyRoleMember)
		require.NoError(t, err)
	}
	return f
}

// call invokes h as userID with the given path values and JSON body.
func call(t *testing.T, h http.HandlerFunc, userID int64, method string, body any, pathValues ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/", &buf)
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	if userID != 0 {
		req = req.WithContext(auth.WithAuth(context.Background(), auth.AuthContext{UserID: userID}))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// httptestRequest builds a GET for target as userID with path values set.
func httptestRequest(t *testing.T, userID int64, target string, pathValues ...string) *http.Request {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	return req.WithContext(auth.WithAuth(context.Background(), auth.AuthContext{UserID: userID}))
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func stringsReader(s string) io.Reader {
	return bytes.NewBufferString(s)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

// testNow is the fixed clock used by handlers under test.
func testNow() time.Time {
	return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
}
