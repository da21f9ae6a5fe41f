package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/famfin/internal/model"
)

func TestUserCreate(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.Create("Alice@Example.com", "Alice", "hash", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}
	if u.Role != model.RoleMember {
		t.Errorf("role = %q, want %q", u.Role, model.RoleMember)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	mustUser(t, us, "alice@example.com", "Alice")
	_, err := us.Create("ALICE@example.com", "Alice2", "hash", "")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	created := mustUser(t, us, "alice@example.com", "Alice")

	u, err := us.GetByEmail("alice@EXAMPLE.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %+v, want id %d", u, created.ID)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want hash", u.PasswordHash)
	}
}

func TestUserGetNotFound(t *testing.T) {
	us := NewUserStore(setupTestDB(t))

	u, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserUpdateRole(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	u := mustUser(t, us, "alice@example.com", "Alice")

	updated, err := us.UpdateRole(u.ID, model.RoleAdmin)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if !updated.IsAdmin() {
		t.Errorf("role = %q, want admin", updated.Role)
	}
}

func TestUserList(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	mustUser(t, us, "bob@example.com", "Bob")
	mustUser(t, us, "alice@example.com", "Alice")

	users, err := us.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[0].Name != "Alice" {
		t.Errorf("first = %q, want Alice", users[0].Name)
	}
}
