// file: mssql_connector.go
package dbconnector

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
)

type MSSQLConnector struct {
	baseConnector
}

func newMSSQLConnector(cfg ConnectionConfig) (*MSSQLConnector, error) {
	db, dialect, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open mssql connection: %w", err)
	}
	return &MSSQLConnector{baseConnector{cfg: cfg, db: db, dialect: dialect}}, nil
}

func (c *MSSQLConnector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_CATALOG = DB_NAME() ORDER BY TABLE_NAME")
	if err != nil {
		return nil, fmt.Errorf("list mssql tables: %w", err)
	}
	defer rows.Close()
	results := []string{}
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Errorf("scan mssql table name: %w", err)
		}
		if strings.EqualFold(schema, "dbo") {
			results = append(results, name)
			continue
		}
		results = append(results, schema+"."+name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mssql tables: %w", err)
	}
	return sortTables(results), nil
}

func (c *MSSQLConnector) DescribeTable(ctx context.Context, table string) (*TableStructure, error) {
	schema, name, err := parseMSSQLTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, "SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_CATALOG = DB_NAME() AND TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2 ORDER BY ORDINAL_POSITION", schema, name)
	if err != nil {
		return nil, fmt.Errorf("query mssql columns: %w", err)
	}
	defer rows.Close()
	columns := []ColumnInfo{}
	for rows.Next() {
		var colName, dataType, isNullable string
		if err := rows.Scan(&colName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan mssql column: %w", err)
		}
		columns = append(columns, ColumnInfo{
			Name:     colName,
			Type:     dataType,
			Nullable: strings.EqualFold(isNullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mssql columns: %w", err)
	}
	return &TableStructure{Table: table, Columns: columns}, nil
}

func parseMSSQLTable(table string) (string, string, error) {
	_, parts, err := quoteQualified(table, 2, bracket)
	if err != nil {
		return "", "", fmt.Errorf("invalid mssql table: %w", err)
	}
	if len(parts) == 1 {
		return "dbo", parts[0], nil
	}
	return parts[0], parts[1], nil
}
