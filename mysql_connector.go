// file: mysql_connector.go
package dbconnector

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLConnector struct {
	baseConnector
}

func newMySQLConnector(cfg ConnectionConfig) (*MySQLConnector, error) {
	db, dialect, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	return &MySQLConnector{baseConnector{cfg: cfg, db: db, dialect: dialect}}, nil
}

func (c *MySQLConnector) ListTables(ctx context.Context) ([]string, error) {
	tables, err := c.queryStrings(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("list mysql tables: %w", err)
	}
	return sortTables(tables), nil
}

func (c *MySQLConnector) DescribeTable(ctx context.Context, table string) (*TableStructure, error) {
	if _, err := c.dialect.QuoteTable(table); err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, "SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position", table)
	if err != nil {
		return nil, fmt.Errorf("query mysql columns: %w", err)
	}
	defer rows.Close()
	columns := []ColumnInfo{}
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan mysql column: %w", err)
		}
		columns = append(columns, ColumnInfo{
			Name:     name,
			Type:     dataType,
			Nullable: strings.EqualFold(isNullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mysql columns: %w", err)
	}
	return &TableStructure{Table: table, Columns: columns}, nil
}
