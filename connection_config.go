// file: connection_config.go
package dbconnector

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	AuthWindows = "windows"
	AuthSQL     = "sql"
)

// ConnectionConfig describes the external database the dashboard reads from.
// It is persisted as a flat document; absent fields stay empty.
type ConnectionConfig struct {
	Type         string `json:"type,omitempty"` // mssql | mysql | postgres | sqlite
	Server       string `json:"server"`
	Port         int    `json:"port,omitempty"`
	Database     string `json:"database"`
	AuthMode     string `json:"authMode"` // windows | sql
	User         string `json:"user"`
	Password     string `json:"password"`
	DefaultTable string `json:"defaultTable"`
	SSLMode      string `json:"sslMode,omitempty"`
}

// DriverType returns the normalized driver type; SQL Server is the default.
func (c ConnectionConfig) DriverType() string {
	t := strings.ToLower(strings.TrimSpace(c.Type))
	switch t {
	case "", "sqlserver":
		return "mssql"
	case "postgresql":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	default:
		return t
	}
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c ConnectionConfig) IsConfigured() bool {
	if c.DriverType() == "sqlite" {
		return strings.TrimSpace(c.Database) != ""
	}
	return strings.TrimSpace(c.Server) != "" && strings.TrimSpace(c.Database) != ""
}

func (c ConnectionConfig) usesWindowsAuth() bool {
	return strings.EqualFold(strings.TrimSpace(c.AuthMode), AuthWindows)
}

// ConnectionString builds the driver name and DSN. With windows authentication
// the user and password fields are never consulted.
func (c ConnectionConfig) ConnectionString() (string, string, error) {
	switch c.DriverType() {
	case "mssql":
		return "sqlserver", c.mssqlDSN(), nil
	case "mysql":
		dsn, err := c.mysqlDSN()
		return "mysql", dsn, err
	case "postgres":
		return "postgres", c.postgresDSN(), nil
	case "sqlite":
		if strings.TrimSpace(c.Database) == "" {
			return "", "", errors.New("sqlite database path is required")
		}
		return "sqlite", c.Database, nil
	default:
		return "", "", fmt.Errorf("unsupported database type %q", c.Type)
	}
}

func (c ConnectionConfig) mssqlDSN() string {
	host := strings.TrimSpace(c.Server)
	instance := ""
	if i := strings.Index(host, `\`); i >= 0 {
		host, instance = host[:i], host[i+1:]
	}
	if c.Port != 0 {
		host += ":" + strconv.Itoa(c.Port)
	}
	query := url.Values{}
	query.Set("database", c.Database)
	switch strings.ToLower(strings.TrimSpace(c.SSLMode)) {
	case "disable":
		query.Set("encrypt", "disable")
	case "require", "true":
		query.Set("encrypt", "true")
	default:
		query.Set("encrypt", "true")
		query.Set("TrustServerCertificate", "true")
	}
	u := &url.URL{Scheme: "sqlserver", Host: host, RawQuery: query.Encode()}
	if instance != "" {
		u.Path = "/" + instance
	}
	if !c.usesWindowsAuth() {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

func (c ConnectionConfig) mysqlDSN() (string, error) {
	if c.usesWindowsAuth() {
		return "", errors.New("windows authentication is not supported for mysql")
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Server, port, c.Database)
	sslMode := strings.ToLower(strings.TrimSpace(c.SSLMode))
	if sslMode == "disable" {
		dsn += "&tls=false"
	} else if sslMode != "" {
		dsn += "&tls=true"
	}
	return dsn, nil
}

func (c ConnectionConfig) postgresDSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := strings.ToLower(strings.TrimSpace(c.SSLMode))
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		"host=" + pqValue(c.Server),
		"port=" + strconv.Itoa(port),
		"dbname=" + pqValue(c.Database),
		"sslmode=" + sslMode,
	}
	// Without credentials lib/pq falls back to the OS user, the closest thing
	// postgres has to trusted authentication.
	if !c.usesWindowsAuth() {
		parts = append(parts, "user="+pqValue(c.User), "password="+pqValue(c.Password))
	}
	return strings.Join(parts, " ")
}

func pqValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
