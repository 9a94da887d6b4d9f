// file: factory.go
package dbconnector

import (
	"database/sql"
	"fmt"
)

func NewConnector(cfg ConnectionConfig) (DbConnector, error) {
	switch cfg.DriverType() {
	case "mysql":
		return newMySQLConnector(cfg)
	case "postgres":
		return newPostgresConnector(cfg)
	case "mssql":
		return newMSSQLConnector(cfg)
	case "sqlite":
		return newSQLiteConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// openDatabase opens the single logical connection the dashboard shares for
// every statement it issues.
func openDatabase(cfg ConnectionConfig) (*sql.DB, Dialect, error) {
	driverName, dsn, err := cfg.ConnectionString()
	if err != nil {
		return nil, nil, err
	}
	dialect, err := DialectFor(cfg.DriverType())
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(1)
	return db, dialect, nil
}
