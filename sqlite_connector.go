// file: sqlite_connector.go
package dbconnector

import (
	"context"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteConnector reads plant exports dropped as SQLite files. The database
// field of the config is the file path.
type SQLiteConnector struct {
	baseConnector
}

func newSQLiteConnector(cfg ConnectionConfig) (*SQLiteConnector, error) {
	db, dialect, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}
	return &SQLiteConnector{baseConnector{cfg: cfg, db: db, dialect: dialect}}, nil
}

func (c *SQLiteConnector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := c.queryStrings(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list sqlite tables: %w", err)
	}
	return sortTables(tables), nil
}

func (c *SQLiteConnector) DescribeTable(ctx context.Context, table string) (*TableStructure, error) {
	if _, err := c.dialect.QuoteTable(table); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `SELECT name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("query sqlite columns: %w", err)
	}
	defer rows.Close()
	columns := []ColumnInfo{}
	for rows.Next() {
		var name, dataType string
		var notNull int
		if err := rows.Scan(&name, &dataType, &notNull); err != nil {
			return nil, fmt.Errorf("scan sqlite column: %w", err)
		}
		columns = append(columns, ColumnInfo{Name: name, Type: dataType, Nullable: notNull == 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sqlite columns: %w", err)
	}
	return &TableStructure{Table: table, Columns: columns}, nil
}
