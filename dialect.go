// file: dialect.go
package dbconnector

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between the supported servers. Only
// identifiers are ever interpolated through it; values go through Placeholder.
type Dialect interface {
	Name() string
	QuoteTable(table string) (string, error)
	QuoteColumn(column string) (string, error)
	Placeholder(n int) string
	// HourOf returns an integer hour-of-day (0-23) expression.
	HourOf(expr string) string
	// DayOf truncates a timestamp expression to its calendar day for comparison
	// against a bound 'YYYY-MM-DD' value.
	DayOf(expr string) string
	// Timestamp normalizes a timestamp expression for comparison against a
	// bound 'YYYY-MM-DD HH:MM:SS' value.
	Timestamp(expr string) string
	Text(expr string) string
	// Cap bounds a row-returning query. The prefix goes right after SELECT
	// (and DISTINCT), the suffix at the very end of the statement.
	Cap(bind func(any) string, n int) (prefix, suffix string)
	// Paginate is appended after ORDER BY.
	Paginate(bind func(any) string, limit, offset int) string
}

func DialectFor(driverType string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driverType)) {
	case "", "mssql", "sqlserver":
		return mssqlDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	case "postgres", "postgresql":
		return postgresDialect{}, nil
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", driverType)
	}
}

func bracket(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func doubleQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func backtick(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func quoteColumn(column string, quote func(string) string) (string, error) {
	if strings.TrimSpace(column) == "" {
		return "", fmt.Errorf("column name is empty")
	}
	if strings.IndexFunc(column, func(r rune) bool { return r < 0x20 || r == 0x7f }) >= 0 {
		return "", fmt.Errorf("invalid column name %q", column)
	}
	return quote(column), nil
}

type mssqlDialect struct{}

func (mssqlDialect) Name() string { return "mssql" }

func (mssqlDialect) QuoteTable(table string) (string, error) {
	quoted, _, err := quoteQualified(table, 2, bracket)
	if err != nil {
		return "", fmt.Errorf("invalid mssql table: %w", err)
	}
	return quoted, nil
}

func (mssqlDialect) QuoteColumn(column string) (string, error) {
	return quoteColumn(column, bracket)
}

func (mssqlDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (mssqlDialect) HourOf(expr string) string { return fmt.Sprintf("DATEPART(HOUR, %s)", expr) }

func (mssqlDialect) DayOf(expr string) string { return fmt.Sprintf("CAST(%s AS DATE)", expr) }

func (mssqlDialect) Timestamp(expr string) string { return expr }

func (mssqlDialect) Text(expr string) string { return fmt.Sprintf("CAST(%s AS NVARCHAR(4000))", expr) }

func (mssqlDialect) Cap(bind func(any) string, n int) (string, string) {
	return fmt.Sprintf("TOP (%s) ", bind(n)), ""
}

func (mssqlDialect) Paginate(bind func(any) string, limit, offset int) string {
	off := bind(offset)
	return fmt.Sprintf(" OFFSET %s ROWS FETCH NEXT %s ROWS ONLY", off, bind(limit))
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) QuoteTable(table string) (string, error) {
	quoted, _, err := quoteQualified(table, 1, backtick)
	if err != nil {
		return "", fmt.Errorf("invalid mysql table: %w", err)
	}
	return quoted, nil
}

func (mysqlDialect) QuoteColumn(column string) (string, error) {
	return quoteColumn(column, backtick)
}

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) HourOf(expr string) string { return fmt.Sprintf("HOUR(%s)", expr) }

func (mysqlDialect) DayOf(expr string) string { return fmt.Sprintf("DATE(%s)", expr) }

func (mysqlDialect) Timestamp(expr string) string { return expr }

func (mysqlDialect) Text(expr string) string { return fmt.Sprintf("CAST(%s AS CHAR)", expr) }

func (mysqlDialect) Cap(bind func(any) string, n int) (string, string) {
	return "", " LIMIT " + bind(n)
}

func (mysqlDialect) Paginate(bind func(any) string, limit, offset int) string {
	lim := bind(limit)
	return fmt.Sprintf(" LIMIT %s OFFSET %s", lim, bind(offset))
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) QuoteTable(table string) (string, error) {
	quoted, _, err := quoteQualified(table, 2, doubleQuote)
	if err != nil {
		return "", fmt.Errorf("invalid postgres table: %w", err)
	}
	return quoted, nil
}

func (postgresDialect) QuoteColumn(column string) (string, error) {
	return quoteColumn(column, doubleQuote)
}

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) HourOf(expr string) string {
	return fmt.Sprintf("CAST(EXTRACT(HOUR FROM %s) AS INTEGER)", expr)
}

func (postgresDialect) DayOf(expr string) string { return fmt.Sprintf("CAST(%s AS DATE)", expr) }

func (postgresDialect) Timestamp(expr string) string { return expr }

func (postgresDialect) Text(expr string) string { return fmt.Sprintf("CAST(%s AS TEXT)", expr) }

func (postgresDialect) Cap(bind func(any) string, n int) (string, string) {
	return "", " LIMIT " + bind(n)
}

func (postgresDialect) Paginate(bind func(any) string, limit, offset int) string {
	lim := bind(limit)
	return fmt.Sprintf(" LIMIT %s OFFSET %s", lim, bind(offset))
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) QuoteTable(table string) (string, error) {
	quoted, _, err := quoteQualified(table, 1, doubleQuote)
	if err != nil {
		return "", fmt.Errorf("invalid sqlite table: %w", err)
	}
	return quoted, nil
}

func (sqliteDialect) QuoteColumn(column string) (string, error) {
	return quoteColumn(column, doubleQuote)
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) HourOf(expr string) string {
	return fmt.Sprintf("CAST(strftime('%%H', %s) AS INTEGER)", expr)
}

func (sqliteDialect) DayOf(expr string) string { return fmt.Sprintf("date(%s)", expr) }

// Text columns may hold ISO 'T'-separated or fractional values; datetime()
// brings them to the bound layout.
func (sqliteDialect) Timestamp(expr string) string { return fmt.Sprintf("datetime(%s)", expr) }

func (sqliteDialect) Text(expr string) string { return fmt.Sprintf("CAST(%s AS TEXT)", expr) }

func (sqliteDialect) Cap(bind func(any) string, n int) (string, string) {
	return "", " LIMIT " + bind(n)
}

func (sqliteDialect) Paginate(bind func(any) string, limit, offset int) string {
	lim := bind(limit)
	return fmt.Sprintf(" LIMIT %s OFFSET %s", lim, bind(offset))
}
