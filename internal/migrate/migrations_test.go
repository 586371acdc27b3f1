package migrate

import (
	"context"
	"testing"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/db"
)

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := Version(context.Background(), conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v != migrations[len(migrations)-1].Version {
		t.Fatalf("version %d, want %d", v, migrations[len(migrations)-1].Version)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='workflow_stages'`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("workflow_stages missing: n=%d err=%v", n, err)
	}
}
