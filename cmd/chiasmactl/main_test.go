package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maps.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadMapRowsSingle(t *testing.T) {
	path := writeTempCSV(t, "0.1,0.2,0.3\n")
	rows, err := loadMapRows(path, 4)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 3 || rows[0][2] != 0.3 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestLoadMapRowsTriple(t *testing.T) {
	path := writeTempCSV(t, "0.1,0.1\n0.2,0.2\n0.3,0.3\n")
	rows, err := loadMapRows(path, 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 3 || rows[2][0] != 0.3 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestLoadMapRowsRejectsWrongLength(t *testing.T) {
	path := writeTempCSV(t, "0.1,0.2\n")
	if _, err := loadMapRows(path, 4); err == nil {
		t.Fatal("expected error for wrong row length")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}); err == nil {
		t.Fatal("expected usage error")
	}
}

func TestRunMissingCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected usage error")
	}
}
