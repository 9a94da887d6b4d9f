// Package dashboard is the session the presentation layer talks to. It owns
// the connection settings, the single external connection and the per-table
// schema cache, and exposes the dashboard operations on top of them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	dbconnector "linedash-backend"
	"linedash-backend/internal/bus"
	"linedash-backend/internal/query"
	"linedash-backend/internal/records"
	"linedash-backend/internal/schema"
	"linedash-backend/internal/settings"
)

const (
	DefaultLastDays  = 30
	defaultSampleRow = 50
)

type ConnectorFactory func(cfg dbconnector.ConnectionConfig) (dbconnector.DbConnector, error)

type Options struct {
	Store    settings.Store
	Connect  ConnectorFactory
	Logger   *slog.Logger
	Notifier bus.Notifier
	// Location is used for timestamps stored without a zone.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	store    settings.Store
	connect  ConnectorFactory
	logger   *slog.Logger
	notifier bus.Notifier
	loc      *time.Location
	now      func() time.Time
	schemas  *schema.Inferencer

	mu     sync.Mutex
	cfg    dbconnector.ConnectionConfig
	loaded bool
	conn   dbconnector.DbConnector
}

func New(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		connect:  opts.Connect,
		logger:   opts.Logger,
		notifier: opts.Notifier,
		loc:      opts.Location,
		now:      opts.Now,
		schemas:  schema.NewInferencer(),
	}
	if s.connect == nil {
		s.connect = dbconnector.NewConnector
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notifier == nil {
		s.notifier = bus.Nop{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Close releases the external connection.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropConnLocked()
}

func (s *Service) dropConnLocked() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Service) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	if s.store == nil {
		s.cfg = settings.Defaults()
		s.loaded = true
		return nil
	}
	cfg, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotConfigured, err)
	}
	s.cfg = cfg
	s.loaded = true
	return nil
}

// Config returns the current connection settings.
func (s *Service) Config(ctx context.Context) (dbconnector.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return dbconnector.ConnectionConfig{}, err
	}
	return s.cfg, nil
}

func (s *Service) connection(ctx context.Context) (dbconnector.DbConnector, dbconnector.ConnectionConfig, error) {
	conn, cfg, _, err := s.connectionAt(ctx)
	return conn, cfg, err
}

// connectionAt also returns the schema cache generation the connection
// belongs to. Both are read under the lock replaceConfig holds.
func (s *Service) connectionAt(ctx context.Context) (dbconnector.DbConnector, dbconnector.ConnectionConfig, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.schemas.Generation()
	if err := s.loadLocked(ctx); err != nil {
		return nil, dbconnector.ConnectionConfig{}, gen, err
	}
	if !s.cfg.IsConfigured() {
		return nil, s.cfg, gen, ErrNotConfigured
	}
	if s.conn == nil {
		conn, err := s.connect(s.cfg)
		if err != nil {
			return nil, s.cfg, gen, fmt.Errorf("%w: %w", ErrCatalogFailed, err)
		}
		s.conn = conn
	}
	return s.conn, s.cfg, gen, nil
}

// Invalidate drops every cached schema. It runs on logout and config changes.
func (s *Service) Invalidate() {
	s.schemas.Invalidate()
}

func (s *Service) publish(subject string, payload any) {
	if err := s.notifier.Publish(subject, payload); err != nil {
		s.logger.Warn("publish event failed", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}

func (s *Service) tables(ctx context.Context, conn dbconnector.DbConnector) ([]string, error) {
	tables, err := conn.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogFailed, err)
	}
	return tables, nil
}

// ListTables degrades to an empty list on any failure.
func (s *Service) ListTables(ctx context.Context) []string {
	conn, _, err := s.connection(ctx)
	if err != nil {
		s.logger.Warn("list tables skipped", slog.String("error", err.Error()))
		return []string{}
	}
	tables, err := s.tables(ctx, conn)
	if err != nil {
		s.logger.Warn("list tables failed", slog.String("error", err.Error()))
		return []string{}
	}
	return tables
}

// GetTableStructure degrades to an empty list on any failure.
func (s *Service) GetTableStructure(ctx context.Context, table string) []dbconnector.ColumnInfo {
	conn, _, err := s.connection(ctx)
	if err == nil {
		err = s.checkTable(ctx, conn, table)
	}
	if err != nil {
		s.logger.Warn("describe table skipped", slog.String("table", table), slog.String("error", err.Error()))
		return []dbconnector.ColumnInfo{}
	}
	structure, err := conn.DescribeTable(ctx, table)
	if err != nil {
		s.logger.Warn("describe table failed", slog.String("table", table), slog.String("error", err.Error()))
		return []dbconnector.ColumnInfo{}
	}
	if structure == nil || structure.Columns == nil {
		return []dbconnector.ColumnInfo{}
	}
	return structure.Columns
}

// checkTable cross-checks a caller-supplied name against a fresh catalog
// listing before it is ever interpolated.
func (s *Service) checkTable(ctx context.Context, conn dbconnector.DbConnector, table string) error {
	if strings.TrimSpace(table) == "" {
		return validation("no table specified")
	}
	tables, err := s.tables(ctx, conn)
	if err != nil {
		return err
	}
	if !slices.Contains(tables, table) {
		return fmt.Errorf("%w: %w: %q", ErrValidationFailed, schema.ErrTableNotFound, table)
	}
	return nil
}

// resolveSchema infers the schema of table, or of the default table when
// table is empty. With pin set, a resolved table is stored as the default
// when none is configured yet.
func (s *Service) resolveSchema(ctx context.Context, table string, pin bool) (dbconnector.DbConnector, schema.TableSchema, error) {
	conn, cfg, gen, err := s.connectionAt(ctx)
	if err != nil {
		return nil, schema.TableSchema{}, err
	}
	tables, err := s.tables(ctx, conn)
	if err != nil {
		return nil, schema.TableSchema{}, err
	}
	if len(tables) == 0 {
		return nil, schema.TableSchema{}, fmt.Errorf("%w: catalog is empty", ErrSchemaDetectionFailed)
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = cfg.DefaultTable
	}
	if table == "" {
		table = tables[0]
	}
	if !slices.Contains(tables, table) {
		return nil, schema.TableSchema{}, fmt.Errorf("%w: %w: %q", ErrValidationFailed, schema.ErrTableNotFound, table)
	}
	_, cached := s.schemas.Cached(table)
	ts, err := s.schemas.InferAt(ctx, conn, table, gen)
	if err != nil {
		if errors.Is(err, schema.ErrNoColumns) {
			return nil, schema.TableSchema{}, fmt.Errorf("%w: %w", ErrSchemaDetectionFailed, err)
		}
		return nil, schema.TableSchema{}, fmt.Errorf("%w: %w", ErrCatalogFailed, err)
	}
	if !cached {
		s.logger.Info("schema inferred",
			slog.String("table", ts.TableName),
			slog.String("date_column", ts.DateColumn),
			slog.String("machine_column", ts.MachineColumn),
			slog.String("result_column", ts.ResultColumn))
		s.publish(bus.SubjectSchemaInferred, ts)
	}
	if pin && cfg.DefaultTable == "" {
		s.pinDefaultTable(ctx, table, gen)
	}
	return conn, ts, nil
}

// pinDefaultTable persists table as the default unless one is set or the
// configuration was replaced after generation gen.
func (s *Service) pinDefaultTable(ctx context.Context, table string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.DefaultTable != "" || s.schemas.Generation() != gen {
		return
	}
	s.cfg.DefaultTable = table
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.cfg); err != nil {
		s.logger.Warn("persist default table failed", slog.String("table", table), slog.String("error", err.Error()))
	}
}

func (s *Service) aggregator(ctx context.Context, table string) (*records.Aggregator, error) {
	conn, ts, err := s.resolveSchema(ctx, table, true)
	if err != nil {
		return nil, err
	}
	builder, err := query.NewBuilder(conn.Dialect(), ts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaDetectionFailed, err)
	}
	return records.New(conn, builder, s.loc).WithClock(s.now), nil
}

// InferSchema resolves and caches the schema of table (or the default table).
func (s *Service) InferSchema(ctx context.Context, table string) (*schema.TableSchema, error) {
	_, ts, err := s.resolveSchema(ctx, table, true)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// GetUniqueIdentifiers lists the distinct values of the generic identifier
// column. Failures degrade to an empty value list.
func (s *Service) GetUniqueIdentifiers(ctx context.Context, table string) IdentifierValues {
	out := IdentifierValues{Values: []string{}}
	agg, err := s.aggregator(ctx, table)
	if err != nil {
		s.logger.Warn("unique identifiers skipped", slog.String("table", table), slog.String("error", err.Error()))
		return out
	}
	column := agg.Schema().IdentifierColumn()
	values, err := agg.FetchDistinct(ctx, column)
	if err != nil {
		s.logger.Warn("unique identifiers failed", slog.String("table", table), slog.String("error", err.Error()))
		return out
	}
	out.ColumnName = column
	out.Values = values
	return out
}

// GetSampleData degrades to an empty list on failure.
func (s *Service) GetSampleData(ctx context.Context, table string, limit int) []map[string]any {
	conn, ts, err := s.resolveSchema(ctx, table, true)
	if err != nil {
		s.logger.Warn("sample data skipped", slog.String("table", table), slog.String("error", err.Error()))
		return []map[string]any{}
	}
	if limit <= 0 {
		limit = defaultSampleRow
	}
	rows, err := conn.SampleRows(ctx, ts.TableName, limit)
	if err != nil {
		s.logger.Warn("sample data failed", slog.String("table", ts.TableName), slog.String("error", err.Error()))
		return []map[string]any{}
	}
	return rows
}

// GetAllRecords requires an explicit table.
func (s *Service) GetAllRecords(ctx context.Context, fs FilterSet) (*records.AggregateResult, error) {
	if strings.TrimSpace(fs.Table) == "" {
		return nil, validation("no table specified")
	}
	f, err := fs.filter()
	if err != nil {
		return nil, err
	}
	agg, err := s.aggregator(ctx, fs.Table)
	if err != nil {
		return nil, err
	}
	result, err := agg.FetchRecords(ctx, f)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return result, nil
}

// GetPaginatedData falls back to the default table.
func (s *Service) GetPaginatedData(ctx context.Context, fs FilterSet) (*records.AggregateResult, error) {
	f, err := fs.filter()
	if err != nil {
		return nil, err
	}
	agg, err := s.aggregator(ctx, fs.Table)
	if err != nil {
		return nil, err
	}
	result, err := agg.FetchPage(ctx, f)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return result, nil
}

// GetRecordHistory returns the capped, newest-first rows of one identifier
// value in table.
func (s *Service) GetRecordHistory(ctx context.Context, record, table string) ([]map[string]any, error) {
	if strings.TrimSpace(table) == "" {
		return nil, validation("no table specified")
	}
	if strings.TrimSpace(record) == "" {
		return nil, validation("no record specified")
	}
	agg, err := s.aggregator(ctx, table)
	if err != nil {
		return nil, err
	}
	rows, err := agg.FetchHistory(ctx, agg.Schema().IdentifierColumn(), strings.TrimSpace(record))
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return rows, nil
}

// GetProductionSummary reports catalog problems as schema detection failures.
func (s *Service) GetProductionSummary(ctx context.Context, fs FilterSet) (*records.ProductionSummary, error) {
	f, err := fs.filter()
	if err != nil {
		return nil, err
	}
	agg, err := s.aggregator(ctx, fs.Table)
	if err != nil {
		if errors.Is(err, ErrCatalogFailed) {
			return nil, fmt.Errorf("%w: %w", ErrSchemaDetectionFailed, err)
		}
		return nil, err
	}
	summary, err := agg.FetchProductionSummary(ctx, f)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return summary, nil
}

func (s *Service) GetMachineRollups(ctx context.Context, fs FilterSet) ([]records.MachineRollup, error) {
	f, err := fs.filter()
	if err != nil {
		return nil, err
	}
	agg, err := s.aggregator(ctx, fs.Table)
	if err != nil {
		return nil, err
	}
	rollups, err := agg.FetchMachineRollups(ctx, f)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return rollups, nil
}

// GetLastDays returns the rows of the last days days; days <= 0 means
// DefaultLastDays.
func (s *Service) GetLastDays(ctx context.Context, table string, days int) (*records.AggregateResult, error) {
	if days <= 0 {
		days = DefaultLastDays
	}
	agg, err := s.aggregator(ctx, table)
	if err != nil {
		return nil, err
	}
	result, err := agg.FetchSince(ctx, days)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return result, nil
}

// SaveConnectionConfig replaces the settings wholesale, drops the connection
// and the schema cache, then re-infers the default table's schema.
func (s *Service) SaveConnectionConfig(ctx context.Context, cfg dbconnector.ConnectionConfig) error {
	if err := s.replaceConfig(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info("connection config saved", slog.String("server", cfg.Server), slog.String("database", cfg.Database))
	s.publish(bus.SubjectConfigSaved, map[string]any{"server": cfg.Server, "database": cfg.Database, "defaultTable": cfg.DefaultTable})
	if cfg.IsConfigured() {
		if _, _, err := s.resolveSchema(ctx, "", false); err != nil {
			s.logger.Warn("schema re-inference failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// ClearConnectionConfig resets the settings to their defaults.
func (s *Service) ClearConnectionConfig(ctx context.Context) error {
	if err := s.replaceConfig(ctx, settings.Defaults()); err != nil {
		return err
	}
	s.logger.Info("connection config cleared")
	s.publish(bus.SubjectConfigCleared, map[string]any{})
	return nil
}

func (s *Service) replaceConfig(ctx context.Context, cfg dbconnector.ConnectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Save(ctx, cfg); err != nil {
			return fmt.Errorf("save connection config: %w", err)
		}
	}
	s.cfg = cfg
	s.loaded = true
	if err := s.dropConnLocked(); err != nil {
		s.logger.Warn("close previous connection failed", slog.String("error", err.Error()))
	}
	s.schemas.Invalidate()
	return nil
}

// TestConnection probes cfg on a throwaway connection. It never fails; the
// outcome is in the returned status.
func (s *Service) TestConnection(ctx context.Context, cfg dbconnector.ConnectionConfig) ConnectionStatus {
	if !cfg.IsConfigured() {
		return ConnectionStatus{OK: false, Message: "server and database are required"}
	}
	conn, err := s.connect(cfg)
	if err != nil {
		return ConnectionStatus{OK: false, Message: err.Error()}
	}
	defer conn.Close()
	if err := conn.TestConnection(ctx); err != nil {
		return ConnectionStatus{OK: false, Message: err.Error()}
	}
	return ConnectionStatus{OK: true, Message: "Connection successful"}
}
