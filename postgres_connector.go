// file: postgres_connector.go
package dbconnector

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

type PostgresConnector struct {
	baseConnector
}

func newPostgresConnector(cfg ConnectionConfig) (*PostgresConnector, error) {
	db, dialect, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	return &PostgresConnector{baseConnector{cfg: cfg, db: db, dialect: dialect}}, nil
}

func (c *PostgresConnector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := c.queryStrings(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("list postgres tables: %w", err)
	}
	return sortTables(tables), nil
}

func (c *PostgresConnector) DescribeTable(ctx context.Context, table string) (*TableStructure, error) {
	_, parts, err := quoteQualified(table, 2, doubleQuote)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres table: %w", err)
	}
	schemaExpr := "current_schema()"
	args := []any{parts[len(parts)-1]}
	if len(parts) == 2 {
		schemaExpr = "$2"
		args = append(args, parts[0])
	}
	rows, err := c.db.QueryContext(ctx, "SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = "+schemaExpr+" AND table_name = $1 ORDER BY ordinal_position", args...)
	if err != nil {
		return nil, fmt.Errorf("query postgres columns: %w", err)
	}
	defer rows.Close()
	columns := []ColumnInfo{}
	for rows.Next() {
		var colName, dataType, isNullable string
		if err := rows.Scan(&colName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan postgres column: %w", err)
		}
		columns = append(columns, ColumnInfo{
			Name:     colName,
			Type:     dataType,
			Nullable: strings.EqualFold(isNullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate postgres columns: %w", err)
	}
	return &TableStructure{Table: table, Columns: columns}, nil
}
