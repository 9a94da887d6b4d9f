package schema

import (
	"context"
	"errors"
	"reflect"
	"testing"

	dbconnector "linedash-backend"
)

func TestClassifyBathData(t *testing.T) {
	s, err := Classify("BathData", []string{"ID", "DateAndTime", "Machine", "Result"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.DateColumn != "DateAndTime" || s.MachineColumn != "Machine" || s.ResultColumn != "Result" {
		t.Fatalf("unexpected roles: %#v", s)
	}
	if s.IdentifierColumn() != "ID" {
		t.Fatalf("unexpected identifier column: %s", s.IdentifierColumn())
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		date    string
		machine string
		result  string
	}{
		{
			name:    "earliest date-like column",
			columns: []string{"Serial", "created_at", "TestTime", "Station", "DeviceName"},
			date:    "created_at",
			machine: "Station",
		},
		{
			name:    "case insensitive",
			columns: []string{"EQUIPMENT_ID", "TIMESTAMP", "OUTCOME", "status"},
			date:    "TIMESTAMP",
			machine: "EQUIPMENT_ID",
			result:  "OUTCOME",
		},
		{
			name:    "no date falls back to first column",
			columns: []string{"Serial", "Line", "PassFlag"},
			date:    "Serial",
			result:  "PassFlag",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Classify("t", tt.columns)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.DateColumn != tt.date || s.MachineColumn != tt.machine || s.ResultColumn != tt.result {
				t.Fatalf("got date=%q machine=%q result=%q", s.DateColumn, s.MachineColumn, s.ResultColumn)
			}
		})
	}
}

func TestClassifyOptionalRolesNeverDefaulted(t *testing.T) {
	s, err := Classify("t", []string{"Serial", "Value"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.HasMachine() || s.HasResult() {
		t.Fatalf("expected no machine/result roles: %#v", s)
	}
	if s.DateColumn != "Serial" {
		t.Fatalf("expected first column fallback, got %s", s.DateColumn)
	}
}

func TestClassifyNoColumns(t *testing.T) {
	if _, err := Classify("t", nil); !errors.Is(err, ErrNoColumns) {
		t.Fatalf("expected ErrNoColumns, got %v", err)
	}
}

func TestIdentifierColumn(t *testing.T) {
	if got := IdentifierColumn([]string{"DateAndTime", "UpdateTime", "Serial"}); got != "Serial" {
		t.Fatalf("unexpected identifier: %s", got)
	}
	if got := IdentifierColumn([]string{"Date", "Time"}); got != "Date" {
		t.Fatalf("expected fallback to first column, got %s", got)
	}
	if got := IdentifierColumn(nil); got != "" {
		t.Fatalf("expected empty identifier, got %s", got)
	}
}

type fakeCatalog struct {
	columns map[string][]string
	calls   int
	err     error
}

func (f *fakeCatalog) DescribeTable(ctx context.Context, table string) (*dbconnector.TableStructure, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cols := []dbconnector.ColumnInfo{}
	for _, name := range f.columns[table] {
		cols = append(cols, dbconnector.ColumnInfo{Name: name})
	}
	return &dbconnector.TableStructure{Table: table, Columns: cols}, nil
}

func TestInferencerCachesPerTable(t *testing.T) {
	catalog := &fakeCatalog{columns: map[string][]string{
		"BathData": {"ID", "DateAndTime", "Machine", "Result"},
		"Ovens":    {"OvenTime", "Device"},
	}}
	inf := NewInferencer()
	ctx := context.Background()

	bath, err := inf.Infer(ctx, catalog, "BathData")
	if err != nil {
		t.Fatalf("infer BathData: %v", err)
	}
	ovens, err := inf.Infer(ctx, catalog, "Ovens")
	if err != nil {
		t.Fatalf("infer Ovens: %v", err)
	}
	again, err := inf.Infer(ctx, catalog, "BathData")
	if err != nil {
		t.Fatalf("infer BathData again: %v", err)
	}
	if catalog.calls != 2 {
		t.Fatalf("expected 2 catalog calls, got %d", catalog.calls)
	}
	if !reflect.DeepEqual(bath, again) {
		t.Fatalf("cached schema differs")
	}
	if ovens.MachineColumn != "Device" || bath.MachineColumn != "Machine" {
		t.Fatalf("schemas mixed across tables: %#v %#v", bath, ovens)
	}

	inf.Invalidate()
	if _, ok := inf.Cached("BathData"); ok {
		t.Fatalf("expected cache to be cleared")
	}
}

func TestInferencerFailureLeavesCacheEmpty(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("login failed")}
	inf := NewInferencer()
	if _, err := inf.Infer(context.Background(), catalog, "BathData"); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := inf.Cached("BathData"); ok {
		t.Fatalf("failed inference must not be cached")
	}

	empty := &fakeCatalog{columns: map[string][]string{}}
	if _, err := inf.Infer(context.Background(), empty, "Missing"); !errors.Is(err, ErrNoColumns) {
		t.Fatalf("expected ErrNoColumns, got %v", err)
	}
}

func TestInferAtStaleGenerationNotCached(t *testing.T) {
	inf := NewInferencer()
	catalog := &fakeCatalog{columns: map[string][]string{"T": {"OldStamp", "OldMachine"}}}
	gen := inf.Generation()
	inf.Invalidate()
	s, err := inf.InferAt(context.Background(), catalog, "T", gen)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if s.DateColumn != "OldStamp" {
		t.Fatalf("unexpected schema: %#v", s)
	}
	if _, ok := inf.Cached("T"); ok {
		t.Fatalf("schema from a stale generation was cached")
	}

	if _, err := inf.Infer(context.Background(), catalog, "T"); err != nil {
		t.Fatalf("infer: %v", err)
	}
	if _, ok := inf.Cached("T"); !ok {
		t.Fatalf("expected current generation to be cached")
	}
	if _, err := inf.InferAt(context.Background(), catalog, "T", gen); err != nil {
		t.Fatalf("infer: %v", err)
	}
	if catalog.calls != 3 {
		t.Fatalf("stale caller must not be served from the cache, calls=%d", catalog.calls)
	}
}
