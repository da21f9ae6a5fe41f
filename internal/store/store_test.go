package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/famfin/internal/database"
	"github.com/dukerupert/famfin/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustUser(t *testing.T, us *UserStore, email, name string) *model.User {
	t.Helper()
	u, err := us.Create(email, name, "hash", model.RoleMember)
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mustFamily(t *testing.T, fs *FamilyStore, name string, owner int64) *model.Family {
	t.Helper()
	f, err := fs.Create(name, owner)
	if err != nil {
		t.Fatalf("create family %s: %v", name, err)
	}
	return f
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
