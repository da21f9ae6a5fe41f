package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/famfin/internal/model"
	"github.com/dukerupert/famfin/internal/websocket"
)

func TestAdminUpdateRole(t *testing.T) {
	e := setupEnv(t)
	admin, err := e.users.Create("root@example.com", "Root", "hash", model.RoleAdmin)
	require.NoError(t, err)
	bob := e.user(t, "bob@example.com", "Bob")

	rec := call(t, e.adminH.UpdateRole, admin.ID, "PUT", map[string]string{"role": "admin"}, "id", itoa(bob.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RoleAdmin, decode[model.User](t, rec).Role)

	rec = call(t, e.adminH.UpdateRole, admin.ID, "PUT", map[string]string{"role": "member"}, "id", itoa(admin.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, e.adminH.UpdateRole, admin.ID, "PUT", map[string]string{"role": "superuser"}, "id", itoa(bob.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, e.adminH.UpdateRole, admin.ID, "PUT", map[string]string{"role": "member"}, "id", "9999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminLists(t *testing.T) {
	e := setupEnv(t)
	alice := e.user(t, "alice@example.com", "Alice")
	e.user(t, "bob@example.com", "Bob")
	e.family(t, "Smiths", alice.ID)

	rec := call(t, e.adminH.ListUsers, alice.ID, "GET", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 2)

	rec = call(t, e.adminH.ListFamilies, alice.ID, "GET", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Family](t, rec), 1)
}

func TestAdminPresenceAndAnnounce(t *testing.T) {
	e := setupEnv(t)
	admin := e.user(t, "root@example.com", "Root")

	rec := call(t, e.adminH.Presence, admin.ID, "GET", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[websocket.Presence](t, rec)
	assert.Equal(t, 0, p.Connections)
	assert.Empty(t, p.Users)

	rec = call(t, e.adminH.Announce, admin.ID, "POST", map[string]string{"title": "Maintenance", "message": "Back soon"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.NotEmpty(t, resp["id"])
	assert.EqualValues(t, 0, resp["delivered"])

	rec = call(t, e.adminH.Announce, admin.ID, "POST", map[string]string{"title": "Maintenance"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPushHandlers(t *testing.T) {
	e := setupEnv(t)
	alice := e.user(t, "alice@example.com", "Alice")
	bob := e.user(t, "bob@example.com", "Bob")

	rec := call(t, e.pushH.GetVAPIDKey, alice.ID, "GET", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "push is not configured")

	rec = call(t, e.pushH.Test, alice.ID, "POST", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "push is not configured")

	rec = call(t, e.pushH.Subscribe, alice.ID, "POST", map[string]string{"endpoint": "https://push.example/a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, e.pushH.Subscribe, alice.ID, "POST", map[string]string{
		"endpoint": "http://push.example/a", "p256dh": "key", "auth": "secret",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "endpoint must be an https URL", errorOf(t, rec))

	rec = call(t, e.pushH.Subscribe, alice.ID, "POST", map[string]string{
		"endpoint": "https://push.example/a", "p256dh": "key", "auth": "secret", "device_name": "Phone",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[model.PushSubscription](t, rec)

	rec = call(t, e.pushH.ListSubscriptions, alice.ID, "GET", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.PushSubscription](t, rec), 1)

	// Another user's delete does not touch alice's subscription.
	call(t, e.pushH.Unsubscribe, bob.ID, "DELETE", nil, "id", itoa(sub.ID))
	subs, err := e.pushSubs.ListByUser(alice.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	rec = call(t, e.pushH.Unsubscribe, alice.ID, "DELETE", nil, "id", itoa(sub.ID))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	subs, err = e.pushSubs.ListByUser(alice.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
