// file: connector.go
package dbconnector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	defaultSampleLimit = 50
	maxSampleLimit     = 1000
)

type DbConnector interface {
	TestConnection(ctx context.Context) error

	ListTables(ctx context.Context) ([]string, error)

	DescribeTable(ctx context.Context, table string) (*TableStructure, error)

	SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error)

	// Query runs a read-only statement built by the query package.
	Query(ctx context.Context, query string, args ...any) (*ResultSet, error)

	Dialect() Dialect

	Close() error
}

type ColumnInfo struct {
	Name     string `json:"columnName"`
	Type     string `json:"dataType"`
	Nullable bool   `json:"nullable"`
}

type TableStructure struct {
	Table   string       `json:"table"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnNames returns the column names in ordinal order.
func (t TableStructure) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

type ResultSet struct {
	Columns []string
	Rows    []map[string]any
}

type baseConnector struct {
	cfg     ConnectionConfig
	db      *sql.DB
	dialect Dialect
}

func (b *baseConnector) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *baseConnector) Dialect() Dialect {
	return b.dialect
}

func (b *baseConnector) TestConnection(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", b.dialect.Name(), err)
	}
	var ok int
	if err := b.db.QueryRowContext(ctx, "SELECT 1").Scan(&ok); err != nil {
		return fmt.Errorf("probe %s: %w", b.dialect.Name(), err)
	}
	return nil
}

func (b *baseConnector) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (b *baseConnector) SampleRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	quotedTable, err := b.dialect.QuoteTable(table)
	if err != nil {
		return nil, err
	}
	args := []any{}
	bind := func(v any) string {
		args = append(args, v)
		return b.dialect.Placeholder(len(args))
	}
	prefix, suffix := b.dialect.Cap(bind, normalizeSampleLimit(limit))
	query := fmt.Sprintf("SELECT %s* FROM %s%s", prefix, quotedTable, suffix)
	result, err := b.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s sample rows: %w", b.dialect.Name(), err)
	}
	return result.Rows, nil
}

func (b *baseConnector) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		results = append(results, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func splitIdentifier(ident string) ([]string, error) {
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, errors.New("identifier is empty")
	}
	parts := strings.Split(trimmed, ".")
	for _, part := range parts {
		if part == "" {
			return nil, errors.New("identifier contains empty segment")
		}
		if strings.IndexFunc(part, func(r rune) bool { return r < 0x20 || r == 0x7f }) >= 0 {
			return nil, fmt.Errorf("identifier segment %q contains control characters", part)
		}
	}
	return parts, nil
}

func quoteQualified(ident string, maxSegments int, quote func(string) string) (string, []string, error) {
	parts, err := splitIdentifier(ident)
	if err != nil {
		return "", nil, err
	}
	if maxSegments > 0 && len(parts) > maxSegments {
		return "", nil, fmt.Errorf("identifier %q has too many segments", ident)
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = quote(part)
	}
	return strings.Join(quoted, "."), parts, nil
}

func normalizeSampleLimit(limit int) int {
	if limit <= 0 {
		return defaultSampleLimit
	}
	if limit > maxSampleLimit {
		return maxSampleLimit
	}
	return limit
}

func scanRows(rows *sql.Rows) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		for i := range values {
			var v any
			values[i] = &v
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := *(values[i].(*any))
			row[col] = normalizeValue(v)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &ResultSet{Columns: cols, Rows: results}, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	default:
		return t
	}
}

func sortTables(tables []string) []string {
	sort.Strings(tables)
	return tables
}
