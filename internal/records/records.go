// Package records executes statements from the query package and shapes the
// raw rows into records, pass/fail statistics, hourly histograms and
// per-machine rollups.
package records

import (
	"context"
	"fmt"
	"time"

	dbconnector "linedash-backend"
	"linedash-backend/internal/query"
	"linedash-backend/internal/schema"
)

type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*dbconnector.ResultSet, error)
}

type Stats struct {
	Total int64 `json:"total"`
	Pass  int64 `json:"pass"`
	Fail  int64 `json:"fail"`
}

type AggregateResult struct {
	Records []map[string]any   `json:"records"`
	Columns []string           `json:"columns"`
	Stats   Stats              `json:"stats"`
	Schema  schema.TableSchema `json:"schema"`
	// Set on paginated reads only.
	Total int64 `json:"total,omitempty"`
	Page  int   `json:"page,omitempty"`
	Limit int   `json:"limit,omitempty"`
}

type MachineRollup struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Production  int64     `json:"production"`
	Efficiency  float64   `json:"efficiency"`
	LastUpdated string    `json:"lastUpdated"`
	LastSeen    time.Time `json:"lastSeen"`
}

type HourBucket struct {
	Hour       int   `json:"hour"`
	Production int64 `json:"production"`
	Pass       int64 `json:"pass"`
}

type ProductionSummary struct {
	TotalProduction int64           `json:"totalProduction"`
	Pass            int64           `json:"pass"`
	Fail            int64           `json:"fail"`
	Efficiency      float64         `json:"efficiency"`
	DowntimeHours   float64         `json:"downtimeHours"`
	ActiveMachines  int             `json:"activeMachines"`
	Machines        []MachineRollup `json:"machines"`
	Timeline        []HourBucket    `json:"timeline"`
}

// Hours of the day exposed by the summary timeline.
const (
	TimelineStart = 8
	TimelineEnd   = 19
)

// QueryError ties a driver failure to the stage and statement that caused it.
type QueryError struct {
	Stage     string
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

type Aggregator struct {
	db      Querier
	builder *query.Builder
	loc     *time.Location
	now     func() time.Time
}

// New returns an Aggregator reading through db. Naive timestamps are read
// in loc (UTC when nil).
func New(db Querier, builder *query.Builder, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{db: db, builder: builder, loc: loc, now: time.Now}
}

func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

func (a *Aggregator) Schema() schema.TableSchema { return a.builder.Schema() }

func (a *Aggregator) run(ctx context.Context, stage string, stmt query.Statement) (*dbconnector.ResultSet, error) {
	result, err := a.db.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, &QueryError{Stage: stage, Statement: stmt.SQL, Err: err}
	}
	return result, nil
}

// FetchRecords returns the newest matching rows (capped) with their stats.
func (a *Aggregator) FetchRecords(ctx context.Context, f query.Filter) (*AggregateResult, error) {
	stmt, err := a.builder.Recent(f)
	if err != nil {
		return nil, err
	}
	rows, err := a.run(ctx, "records", stmt)
	if err != nil {
		return nil, err
	}
	stats, err := a.FetchStats(ctx, f)
	if err != nil {
		return nil, err
	}
	return a.result(rows, stats), nil
}

// FetchPage returns one page of rows together with the filtered row count.
func (a *Aggregator) FetchPage(ctx context.Context, f query.Filter) (*AggregateResult, error) {
	f.Page, f.Limit = query.NormalizePage(f.Page, f.Limit)
	countStmt, err := a.builder.Count(f)
	if err != nil {
		return nil, err
	}
	countRows, err := a.run(ctx, "count", countStmt)
	if err != nil {
		return nil, err
	}
	total, err := firstInt(countRows, "total")
	if err != nil {
		return nil, &QueryError{Stage: "count", Statement: countStmt.SQL, Err: err}
	}
	pageStmt, err := a.builder.Page(f)
	if err != nil {
		return nil, err
	}
	rows, err := a.run(ctx, "page", pageStmt)
	if err != nil {
		return nil, err
	}
	stats, err := a.FetchStats(ctx, f)
	if err != nil {
		return nil, err
	}
	out := a.result(rows, stats)
	out.Total = total
	out.Page = f.Page
	out.Limit = f.Limit
	return out, nil
}

// FetchHistory returns the capped, newest-first rows whose column equals value.
func (a *Aggregator) FetchHistory(ctx context.Context, column, value string) ([]map[string]any, error) {
	stmt, err := a.builder.Lookup(column, value)
	if err != nil {
		return nil, err
	}
	rows, err := a.run(ctx, "history", stmt)
	if err != nil {
		return nil, err
	}
	return rows.Rows, nil
}

// FetchSince returns rows from the last days days, newest first.
func (a *Aggregator) FetchSince(ctx context.Context, days int) (*AggregateResult, error) {
	cutoff := a.now().In(a.loc).AddDate(0, 0, -days)
	stmt, err := a.builder.Since(cutoff)
	if err != nil {
		return nil, err
	}
	rows, err := a.run(ctx, "since", stmt)
	if err != nil {
		return nil, err
	}
	stats := Stats{Total: int64(len(rows.Rows))}
	return a.result(rows, stats), nil
}

func (a *Aggregator) FetchStats(ctx context.Context, f query.Filter) (Stats, error) {
	stmt, err := a.builder.Stats(f)
	if err != nil {
		return Stats{}, err
	}
	rows, err := a.run(ctx, "stats", stmt)
	if err != nil {
		return Stats{}, err
	}
	stats, err := parseStats(rows)
	if err != nil {
		return Stats{}, &QueryError{Stage: "stats", Statement: stmt.SQL, Err: err}
	}
	return stats, nil
}

// FetchHourly returns all 24 hour buckets, zero-filled.
func (a *Aggregator) FetchHourly(ctx context.Context, f query.Filter) ([24]HourBucket, error) {
	var buckets [24]HourBucket
	for h := range buckets {
		buckets[h].Hour = h
	}
	stmt, err := a.builder.Hourly(f)
	if err != nil {
		return buckets, err
	}
	rows, err := a.run(ctx, "hourly", stmt)
	if err != nil {
		return buckets, err
	}
	for _, row := range rows.Rows {
		hour, err := toInt64(row["hour"])
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		total, err := toInt64(row["total"])
		if err != nil {
			return buckets, &QueryError{Stage: "hourly", Statement: stmt.SQL, Err: err}
		}
		pass, err := toInt64(row["pass"])
		if err != nil {
			return buckets, &QueryError{Stage: "hourly", Statement: stmt.SQL, Err: err}
		}
		buckets[hour].Production += total
		buckets[hour].Pass += pass
	}
	return buckets, nil
}

// FetchMachineRollups groups rows by machine. Tables without a machine column
// have no rollups.
func (a *Aggregator) FetchMachineRollups(ctx context.Context, f query.Filter) ([]MachineRollup, error) {
	s := a.builder.Schema()
	if !s.HasMachine() {
		return []MachineRollup{}, nil
	}
	stmt, err := a.builder.Machines(f)
	if err != nil {
		return nil, err
	}
	rows, err := a.run(ctx, "machines", stmt)
	if err != nil {
		return nil, err
	}
	now := a.now()
	rollups := make([]MachineRollup, 0, len(rows.Rows))
	for _, row := range rows.Rows {
		production, err := toInt64(row["production"])
		if err != nil {
			return nil, &QueryError{Stage: "machines", Statement: stmt.SQL, Err: err}
		}
		pass, err := toInt64(row["pass"])
		if err != nil {
			return nil, &QueryError{Stage: "machines", Statement: stmt.SQL, Err: err}
		}
		efficiency := 100.0
		if s.HasResult() {
			efficiency = percent(pass, production)
		}
		lastSeen, err := toTime(row["last_seen"], a.loc)
		if err != nil {
			lastSeen = time.Time{}
		}
		rollups = append(rollups, MachineRollup{
			ID:          toString(row["machine"]),
			Status:      Freshness(now, lastSeen),
			Production:  production,
			Efficiency:  efficiency,
			LastUpdated: RelativeTime(now, lastSeen),
			LastSeen:    lastSeen,
		})
	}
	return rollups, nil
}

// FetchDistinct lists distinct non-null values of column as strings.
func (a *Aggregator) FetchDistinct(ctx context.Context, column string) ([]string, error) {
	stmt, err := a.builder.Distinct(column, query.DistinctCap)
	if err != nil {
		return nil, err
	}
	rows, err := a.run(ctx, "distinct", stmt)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(rows.Rows))
	if len(rows.Columns) == 0 {
		return values, nil
	}
	key := rows.Columns[0]
	for _, row := range rows.Rows {
		values = append(values, toString(row[key]))
	}
	return values, nil
}

func (a *Aggregator) result(rows *dbconnector.ResultSet, stats Stats) *AggregateResult {
	columns := rows.Columns
	if len(columns) == 0 {
		columns = a.builder.Schema().AllColumns
	}
	records := rows.Rows
	if records == nil {
		records = []map[string]any{}
	}
	return &AggregateResult{
		Records: records,
		Columns: columns,
		Stats:   stats,
		Schema:  a.builder.Schema(),
	}
}

func parseStats(rows *dbconnector.ResultSet) (Stats, error) {
	if rows == nil || len(rows.Rows) == 0 {
		return Stats{}, nil
	}
	row := rows.Rows[0]
	var s Stats
	var err error
	if s.Total, err = toInt64(row["total"]); err != nil {
		return Stats{}, err
	}
	if s.Pass, err = toInt64(row["pass"]); err != nil {
		return Stats{}, err
	}
	if s.Fail, err = toInt64(row["fail"]); err != nil {
		return Stats{}, err
	}
	return s, nil
}

func firstInt(rows *dbconnector.ResultSet, column string) (int64, error) {
	if rows == nil || len(rows.Rows) == 0 {
		return 0, nil
	}
	return toInt64(rows.Rows[0][column])
}
