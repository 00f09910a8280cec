package database

import "testing"

func TestSchemaAndSeedAreIdempotent(t *testing.T) {
	db, err := NewMemoryConnection(t.Name())
	if err != nil {
		t.Fatalf("NewMemoryConnection: %v", err)
	}
	defer db.Close()

	tc := NewTableCreator()
	if err := tc.CreateSchema(db.DB); err != nil {
		t.Fatalf("second CreateSchema: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := tc.SeedWidget(db.DB, "wd-1", "Default", `{"headerColor":"#000"}`); err != nil {
			t.Fatalf("SeedWidget #%d: %v", i, err)
		}
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM widgets").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected one widget, got %d", n)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := NewConnection("postgres", "x", Options{}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestEnsureDirSkipsMemory(t *testing.T) {
	for _, dsn := range []string{":memory:", "file:x?mode=memory&cache=shared"} {
		if err := ensureDir(dsn); err != nil {
			t.Errorf("ensureDir(%q): %v", dsn, err)
		}
	}
}
