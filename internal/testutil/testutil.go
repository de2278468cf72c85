// Package testutil builds the fixtures shared by package tests.
package testutil

import (
	"chatcore/internal/database"
	"chatcore/internal/ids"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

const StoreTimeout = 10 * time.Second

func Logger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// NewDB opens a fresh sqlite store in a temporary directory and closes it
// when the test ends.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.OpenSqlite(filepath.Join(t.TempDir(), "test.db"), StoreTimeout, Logger())
	if err != nil {
		t.Fatalf("OpenSqlite() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// CreateUser inserts a bare account straight into the store and returns its
// ID. The credential is not a usable hash.
func CreateUser(t *testing.T, db *database.DB, username string) string {
	t.Helper()

	userID, err := ids.New()
	if err != nil {
		t.Fatalf("ids.New() failed: %v", err)
	}

	var discriminator int
	err = db.QueryRow("SELECT COALESCE(MAX(discriminator), 0) + 1 FROM users WHERE username = ?", username).Scan(&discriminator)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	_, err = db.Exec("INSERT INTO users (id, email, username, discriminator, credential) VALUES (?, ?, ?, ?, 'x')",
		userID, userID+"@example.com", username, discriminator)
	if err == nil {
		_, err = db.Exec("INSERT INTO user_settings (user_id) VALUES (?)", userID)
	}
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return userID
}
