// Package query builds parameterized statements against a table whose
// columns were classified by the schema package. Only identifiers taken from
// the inferred schema are interpolated; every filter value is bound.
package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	dbconnector "linedash-backend"
	"linedash-backend/internal/outcome"
	"linedash-backend/internal/schema"
	"linedash-backend/internal/shift"
)

const (
	DefaultLimit = 20
	MaxLimit     = 1000
	HistoryCap   = 500
	RecentCap    = 1000
	DistinctCap  = 1000

	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

var ErrInvalidFilter = errors.New("invalid filter")

type Filter struct {
	// Date restricts rows to one calendar day, formatted YYYY-MM-DD.
	Date  string
	Shift shift.Shift
	// Identifier is matched against IdentifierColumn, or the schema's
	// generic identifier column when IdentifierColumn is empty.
	Identifier       string
	IdentifierColumn string
	Page             int
	Limit            int
}

type Statement struct {
	SQL  string
	Args []any
}

// NormalizePage clamps page to >= 1 and limit to [1, MaxLimit], defaulting a
// non-positive limit to DefaultLimit.
func NormalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func Offset(page, limit int) int {
	page, limit = NormalizePage(page, limit)
	return (page - 1) * limit
}

type Builder struct {
	dialect dbconnector.Dialect
	schema  schema.TableSchema
	table   string
	machine string
	result  string
	order   string
}

func NewBuilder(dialect dbconnector.Dialect, s schema.TableSchema) (*Builder, error) {
	if dialect == nil {
		return nil, errors.New("dialect is required")
	}
	if len(s.AllColumns) == 0 {
		return nil, fmt.Errorf("%s: %w", s.TableName, schema.ErrNoColumns)
	}
	b := &Builder{dialect: dialect, schema: s}
	var err error
	if b.table, err = dialect.QuoteTable(s.TableName); err != nil {
		return nil, err
	}
	orderColumn := s.DateColumn
	if orderColumn == "" {
		orderColumn = s.AllColumns[0]
	}
	if b.order, err = b.column(orderColumn); err != nil {
		return nil, err
	}
	if s.HasMachine() {
		if b.machine, err = b.column(s.MachineColumn); err != nil {
			return nil, err
		}
	}
	if s.HasResult() {
		if b.result, err = b.column(s.ResultColumn); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Builder) Schema() schema.TableSchema { return b.schema }

// column quotes name after checking it belongs to the table.
func (b *Builder) column(name string) (string, error) {
	for _, c := range b.schema.AllColumns {
		if c == name {
			return b.dialect.QuoteColumn(name)
		}
	}
	return "", fmt.Errorf("%w: column %q not in %s", ErrInvalidFilter, name, b.schema.TableName)
}

type binder struct {
	dialect dbconnector.Dialect
	args    []any
}

func (p *binder) bind(v any) string {
	p.args = append(p.args, v)
	return p.dialect.Placeholder(len(p.args))
}

func (b *Builder) newBinder() *binder {
	return &binder{dialect: b.dialect, args: []any{}}
}

func (b *Builder) where(p *binder, f Filter) (string, error) {
	clauses := []string{}
	if f.Date != "" {
		day, err := time.Parse(dateLayout, strings.TrimSpace(f.Date))
		if err != nil {
			return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidFilter, f.Date)
		}
		clauses = append(clauses, fmt.Sprintf("%s = %s", b.dialect.DayOf(b.order), p.bind(day.Format(dateLayout))))
	}
	if pred := shift.Predicate(f.Shift, b.dialect.HourOf(b.order)); pred != "" {
		clauses = append(clauses, pred)
	}
	if f.Identifier != "" {
		name := f.IdentifierColumn
		if name == "" {
			name = b.schema.IdentifierColumn()
		}
		col, err := b.column(name)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, fmt.Sprintf("%s = %s", b.dialect.Text(col), p.bind(f.Identifier)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

func (b *Builder) orderBy() string {
	return " ORDER BY " + b.order + " DESC"
}

// Page fetches one page of rows, newest first.
func (b *Builder) Page(f Filter) (Statement, error) {
	p := b.newBinder()
	where, err := b.where(p, f)
	if err != nil {
		return Statement{}, err
	}
	page, limit := NormalizePage(f.Page, f.Limit)
	sql := "SELECT * FROM " + b.table + where + b.orderBy() + b.dialect.Paginate(p.bind, limit, (page-1)*limit)
	return Statement{SQL: sql, Args: p.args}, nil
}

func (b *Builder) Count(f Filter) (Statement, error) {
	p := b.newBinder()
	where, err := b.where(p, f)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "SELECT COUNT(*) AS total FROM " + b.table + where, Args: p.args}, nil
}

// Recent returns up to RecentCap matching rows, newest first.
func (b *Builder) Recent(f Filter) (Statement, error) {
	return b.capped(f, RecentCap, "")
}

// Lookup returns the capped history of one identifier value.
func (b *Builder) Lookup(column, value string) (Statement, error) {
	return b.capped(Filter{Identifier: value, IdentifierColumn: column}, HistoryCap, "")
}

// Since returns rows at or after cutoff, capped at RecentCap.
func (b *Builder) Since(cutoff time.Time) (Statement, error) {
	return b.capped(Filter{}, RecentCap, cutoff.Format(timestampLayout))
}

func (b *Builder) capped(f Filter, n int, since string) (Statement, error) {
	p := b.newBinder()
	where, err := b.where(p, f)
	if err != nil {
		return Statement{}, err
	}
	if since != "" {
		cond := fmt.Sprintf("%s >= %s", b.dialect.Timestamp(b.order), p.bind(since))
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	// Bound last: positional dialects put the cap in the suffix, numbered
	// ones do not care where the placeholder sits.
	prefix, suffix := b.dialect.Cap(p.bind, n)
	sql := "SELECT " + prefix + "* FROM " + b.table + where + b.orderBy() + suffix
	return Statement{SQL: sql, Args: p.args}, nil
}

// Stats counts total, pass and fail rows. Without a result column pass and
// fail are constant zero.
func (b *Builder) Stats(f Filter) (Statement, error) {
	p := b.newBinder()
	where, err := b.where(p, f)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT COUNT(*) AS total, %s AS pass, %s AS fail FROM %s%s",
		b.sumOutcome(outcome.Pass), b.sumOutcome(outcome.Fail), b.table, where)
	return Statement{SQL: sql, Args: p.args}, nil
}

// Hourly groups matching rows by hour of day of the date column.
func (b *Builder) Hourly(f Filter) (Statement, error) {
	p := b.newBinder()
	where, err := b.where(p, f)
	if err != nil {
		return Statement{}, err
	}
	hour := b.dialect.HourOf(b.order)
	sql := fmt.Sprintf("SELECT %s AS hour, COUNT(*) AS total, %s AS pass FROM %s%s GROUP BY %s ORDER BY %s",
		hour, b.sumOutcome(outcome.Pass), b.table, where, hour, hour)
	return Statement{SQL: sql, Args: p.args}, nil
}

// Machines rolls rows up per machine with the latest date seen. It fails when
// the table has no machine column.
func (b *Builder) Machines(f Filter) (Statement, error) {
	if b.machine == "" {
		return Statement{}, fmt.Errorf("%s has no machine column", b.schema.TableName)
	}
	p := b.newBinder()
	where, err := b.where(p, f)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT %s AS machine, COUNT(*) AS production, %s AS pass, MAX(%s) AS last_seen FROM %s%s GROUP BY %s ORDER BY %s",
		b.machine, b.sumOutcome(outcome.Pass), b.order, b.table, where, b.machine, b.machine)
	return Statement{SQL: sql, Args: p.args}, nil
}

// Distinct lists up to n non-null values of column in ascending order.
func (b *Builder) Distinct(column string, n int) (Statement, error) {
	col, err := b.column(column)
	if err != nil {
		return Statement{}, err
	}
	if n <= 0 || n > DistinctCap {
		n = DistinctCap
	}
	p := b.newBinder()
	prefix, suffix := b.dialect.Cap(p.bind, n)
	sql := fmt.Sprintf("SELECT DISTINCT %s%s FROM %s WHERE %s IS NOT NULL ORDER BY %s%s", prefix, col, b.table, col, col, suffix)
	return Statement{SQL: sql, Args: p.args}, nil
}

// sumOutcome renders a SUM(CASE ...) counting rows classified as o. Markers are
// constants, so they are inlined as literals. A fail row is one that matches
// a fail marker and no pass marker.
func (b *Builder) sumOutcome(o outcome.Outcome) string {
	if b.result == "" {
		return "0"
	}
	text := "UPPER(" + b.dialect.Text(b.result) + ")"
	pass := likeAny(text, outcome.PassMarkers)
	switch o {
	case outcome.Pass:
		return fmt.Sprintf("SUM(CASE WHEN %s THEN 1 ELSE 0 END)", pass)
	case outcome.Fail:
		return fmt.Sprintf("SUM(CASE WHEN %s THEN 0 WHEN %s THEN 1 ELSE 0 END)", pass, likeAny(text, outcome.FailMarkers))
	default:
		return "0"
	}
}

func likeAny(expr string, markers []string) string {
	parts := make([]string, len(markers))
	for i, m := range markers {
		parts[i] = fmt.Sprintf("%s LIKE '%%%s%%'", expr, m)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
