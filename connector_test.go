package dbconnector

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
)

func TestQuoteQualified(t *testing.T) {
	quoted, parts, err := quoteQualified("public.users", 2, doubleQuote)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quoted != "\"public\".\"users\"" {
		t.Fatalf("unexpected quoted value: %s", quoted)
	}
	if !reflect.DeepEqual(parts, []string{"public", "users"}) {
		t.Fatalf("unexpected parts: %#v", parts)
	}
}

func TestQuoteQualifiedTooManySegments(t *testing.T) {
	_, _, err := quoteQualified("a.b.c", 2, func(s string) string { return s })
	if err == nil {
		t.Fatalf("expected error for too many segments")
	}
}

func TestSplitIdentifierRejectsControlCharacters(t *testing.T) {
	if _, err := splitIdentifier("bath\x00data"); err == nil {
		t.Fatalf("expected error for control characters")
	}
	if _, err := splitIdentifier("  "); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
}

func TestNormalizeSampleLimit(t *testing.T) {
	cases := map[int]int{0: defaultSampleLimit, -3: defaultSampleLimit, 10: 10, 5000: maxSampleLimit}
	for in, want := range cases {
		if got := normalizeSampleLimit(in); got != want {
			t.Fatalf("normalizeSampleLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTableStructureColumnNames(t *testing.T) {
	s := TableStructure{Columns: []ColumnInfo{{Name: "ID"}, {Name: "DateAndTime"}}}
	if !reflect.DeepEqual(s.ColumnNames(), []string{"ID", "DateAndTime"}) {
		t.Fatalf("unexpected names: %#v", s.ColumnNames())
	}
}

func newSQLiteFixture(t *testing.T) DbConnector {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plant.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	stmts := []string{
		`CREATE TABLE BathData (ID INTEGER, DateAndTime DATETIME, Machine TEXT, Result TEXT)`,
		`CREATE TABLE Alarms (Code TEXT, Raised TEXT)`,
		`INSERT INTO BathData VALUES (1, '2024-01-01 09:00:00', 'M1', 'PASS')`,
		`INSERT INTO BathData VALUES (2, '2024-01-01 15:30:00', 'M2', 'FAIL')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	db.Close()
	conn, err := NewConnector(ConnectionConfig{Type: "sqlite", Database: path})
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSQLiteConnectorCatalog(t *testing.T) {
	conn := newSQLiteFixture(t)
	ctx := context.Background()
	if err := conn.TestConnection(ctx); err != nil {
		t.Fatalf("test connection: %v", err)
	}
	tables, err := conn.ListTables(ctx)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"Alarms", "BathData"}) {
		t.Fatalf("unexpected tables: %#v", tables)
	}
	structure, err := conn.DescribeTable(ctx, "BathData")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if !reflect.DeepEqual(structure.ColumnNames(), []string{"ID", "DateAndTime", "Machine", "Result"}) {
		t.Fatalf("unexpected columns: %#v", structure.ColumnNames())
	}
	if !structure.Columns[0].Nullable {
		t.Fatalf("expected nullable ID column")
	}
}

func TestSQLiteConnectorSampleAndQuery(t *testing.T) {
	conn := newSQLiteFixture(t)
	ctx := context.Background()
	rows, err := conn.SampleRows(ctx, "BathData", 1)
	if err != nil {
		t.Fatalf("sample rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 sample row, got %d", len(rows))
	}
	result, err := conn.Query(ctx, `SELECT Machine FROM BathData WHERE Result = ? ORDER BY ID`, "FAIL")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !reflect.DeepEqual(result.Columns, []string{"Machine"}) {
		t.Fatalf("unexpected columns: %#v", result.Columns)
	}
	if len(result.Rows) != 1 || result.Rows[0]["Machine"] != "M2" {
		t.Fatalf("unexpected rows: %#v", result.Rows)
	}
}
