package store

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
)

// createTestStore creates a new on-disk store under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedPeople creates a people table with three rows:
// 1 Smith 40 A1, 2 Smithson 70 NULL, 3 Jones 17 NULL.
func seedPeople(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	err := s.CreateTable(ctx, "people", []Column{
		{Name: "Surname"},
		{Name: "Age", Type: "INTEGER"},
		{Name: "Code"},
	})
	if err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}

	rows := []Row{
		{"Surname": "Smith", "Age": 40, "Code": "A1"},
		{"Surname": "Smithson", "Age": 70, "Code": nil},
		{"Surname": "Jones", "Age": 17, "Code": nil},
	}
	for _, row := range rows {
		if _, err := s.Insert(ctx, "people", row); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}
