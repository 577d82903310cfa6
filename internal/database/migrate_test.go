package database

import (
	"io/fs"
	"strings"
	"testing"
)

// マイグレーションファイルがup/downのペアで埋め込まれていることを検証
func TestMigrationsFS_ContainsUpDownPairs(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}

	if len(entries) == 0 {
		t.Fatal("expected at least one migration file")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file name: %s", name)
		}
	}

	for base := range ups {
		if !downs[base] {
			t.Errorf("migration %s has no down file", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("migration %s has no up file", base)
		}
	}
}

// usersとsessionsのマイグレーションが存在することを検証
func TestMigrationsFS_ContainsCoreTables(t *testing.T) {
	for _, name := range []string{
		"migrations/000001_create_users.up.sql",
		"migrations/000002_create_sessions.up.sql",
	} {
		data, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			t.Fatalf("missing migration %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("migration %s is empty", name)
		}
	}
}

// users.loginに一意制約があることを検証（冪等な作成の前提条件）
func TestMigrations_UsersLoginIsUnique(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000001_create_users.up.sql")
	if err != nil {
		t.Fatalf("failed to read users migration: %v", err)
	}
	if !strings.Contains(string(data), "login TEXT NOT NULL UNIQUE") {
		t.Error("users.login must carry a UNIQUE constraint")
	}
}
