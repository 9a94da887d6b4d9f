// Package schema infers the semantic roles of columns in a table whose
// structure is only known from catalog introspection.
package schema

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	dbconnector "linedash-backend"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrNoColumns     = errors.New("table has no columns")
)

var (
	datePattern       = regexp.MustCompile(`(?i)date|time|timestamp|created`)
	machinePattern    = regexp.MustCompile(`(?i)machine|equipment|device|station`)
	resultPattern     = regexp.MustCompile(`(?i)result|status|outcome|pass|fail`)
	temporalNameRegex = regexp.MustCompile(`(?i)date|time`)
)

type TableSchema struct {
	TableName     string   `json:"tableName"`
	DateColumn    string   `json:"dateColumn"`
	MachineColumn string   `json:"machineColumn,omitempty"`
	ResultColumn  string   `json:"resultColumn,omitempty"`
	AllColumns    []string `json:"allColumns"`
}

func (s TableSchema) HasMachine() bool { return s.MachineColumn != "" }

func (s TableSchema) HasResult() bool { return s.ResultColumn != "" }

// IdentifierColumn is the generic lookup column of the table.
func (s TableSchema) IdentifierColumn() string { return IdentifierColumn(s.AllColumns) }

// Classify assigns roles from column names alone. Each rule takes the first
// match in ordinal order; only the date role falls back to the first column.
func Classify(table string, columns []string) (TableSchema, error) {
	if len(columns) == 0 {
		return TableSchema{}, fmt.Errorf("%s: %w", table, ErrNoColumns)
	}
	all := make([]string, len(columns))
	copy(all, columns)
	s := TableSchema{
		TableName:     table,
		DateColumn:    firstMatch(all, datePattern),
		MachineColumn: firstMatch(all, machinePattern),
		ResultColumn:  firstMatch(all, resultPattern),
		AllColumns:    all,
	}
	if s.DateColumn == "" {
		s.DateColumn = all[0]
	}
	return s, nil
}

// IdentifierColumn returns the first column whose name does not look temporal,
// or the first column when every name does.
func IdentifierColumn(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	for _, c := range columns {
		if !temporalNameRegex.MatchString(c) {
			return c
		}
	}
	return columns[0]
}

func firstMatch(columns []string, re *regexp.Regexp) string {
	for _, c := range columns {
		if re.MatchString(c) {
			return c
		}
	}
	return ""
}

type Catalog interface {
	DescribeTable(ctx context.Context, table string) (*dbconnector.TableStructure, error)
}

// Inferencer caches inferred schemas per table. Entries are only ever replaced
// whole. An inference that overlaps Invalidate is returned but not stored.
type Inferencer struct {
	mu         sync.RWMutex
	cache      map[string]TableSchema
	generation uint64
}

func NewInferencer() *Inferencer {
	return &Inferencer{cache: map[string]TableSchema{}}
}

func (i *Inferencer) Cached(table string) (TableSchema, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	s, ok := i.cache[table]
	return s, ok
}

// Generation changes on every Invalidate.
func (i *Inferencer) Generation() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.generation
}

// Infer returns the cached schema for table or introspects and classifies it.
// The caller is responsible for checking table against the catalog listing.
func (i *Inferencer) Infer(ctx context.Context, catalog Catalog, table string) (TableSchema, error) {
	return i.InferAt(ctx, catalog, table, i.Generation())
}

// InferAt is Infer for a catalog obtained at generation gen. When the cache
// has been invalidated since, the catalog is stale: the cache is neither
// consulted nor written.
func (i *Inferencer) InferAt(ctx context.Context, catalog Catalog, table string, gen uint64) (TableSchema, error) {
	i.mu.RLock()
	s, ok := i.cache[table]
	current := i.generation == gen
	i.mu.RUnlock()
	if ok && current {
		return s, nil
	}
	structure, err := catalog.DescribeTable(ctx, table)
	if err != nil {
		return TableSchema{}, fmt.Errorf("describe %s: %w", table, err)
	}
	if structure == nil || len(structure.Columns) == 0 {
		return TableSchema{}, fmt.Errorf("%s: %w", table, ErrNoColumns)
	}
	s, err = Classify(table, structure.ColumnNames())
	if err != nil {
		return TableSchema{}, err
	}
	i.mu.Lock()
	if i.generation == gen {
		i.cache[table] = s
	}
	i.mu.Unlock()
	return s, nil
}

func (i *Inferencer) Invalidate() {
	i.mu.Lock()
	i.cache = map[string]TableSchema{}
	i.generation++
	i.mu.Unlock()
}
