package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	dbconnector "linedash-backend"
	"linedash-backend/internal/accounts"
	"linedash-backend/internal/dashboard"
	"linedash-backend/internal/export"
	"linedash-backend/internal/records"
	"linedash-backend/internal/schema"
)

type Dashboard interface {
	Config(ctx context.Context) (dbconnector.ConnectionConfig, error)
	SaveConnectionConfig(ctx context.Context, cfg dbconnector.ConnectionConfig) error
	ClearConnectionConfig(ctx context.Context) error
	TestConnection(ctx context.Context, cfg dbconnector.ConnectionConfig) dashboard.ConnectionStatus
	ListTables(ctx context.Context) []string
	GetTableStructure(ctx context.Context, table string) []dbconnector.ColumnInfo
	InferSchema(ctx context.Context, table string) (*schema.TableSchema, error)
	GetUniqueIdentifiers(ctx context.Context, table string) dashboard.IdentifierValues
	GetSampleData(ctx context.Context, table string, limit int) []map[string]any
	GetAllRecords(ctx context.Context, fs dashboard.FilterSet) (*records.AggregateResult, error)
	GetPaginatedData(ctx context.Context, fs dashboard.FilterSet) (*records.AggregateResult, error)
	GetRecordHistory(ctx context.Context, record, table string) ([]map[string]any, error)
	GetProductionSummary(ctx context.Context, fs dashboard.FilterSet) (*records.ProductionSummary, error)
	GetMachineRollups(ctx context.Context, fs dashboard.FilterSet) ([]records.MachineRollup, error)
	GetLastDays(ctx context.Context, table string, days int) (*records.AggregateResult, error)
	Invalidate()
}

type Accounts interface {
	Signup(ctx context.Context, req accounts.SignupRequest) accounts.Result
	Login(ctx context.Context, email, password string) accounts.Result
	Logout(token string)
	CurrentUser(ctx context.Context, token string) (*accounts.User, error)
}

type Handler struct {
	Dashboard Dashboard
	Accounts  Accounts
	Logger    *slog.Logger
}

func NewHandler(d Dashboard, a Accounts, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Dashboard: d, Accounts: a, Logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", handleHealth)
	r.Post("/rpc", h.HandleRPC)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.HandleSignup)
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.Get("/me", h.HandleCurrentUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Get("/config", h.HandleGetConfig)
		r.Put("/config", h.HandleSaveConfig)
		r.Delete("/config", h.HandleClearConfig)
		r.Post("/connection/test", h.HandleTestConnection)
		r.Get("/tables", h.HandleListTables)
		r.Post("/tables/structure", h.HandleTableStructure)
		r.Post("/schema", h.HandleInferSchema)
		r.Post("/identifiers", h.HandleUniqueIdentifiers)
		r.Post("/sample", h.HandleSampleData)
		r.Post("/records", h.HandleAllRecords)
		r.Post("/records/page", h.HandlePaginatedData)
		r.Post("/records/history", h.HandleRecordHistory)
		r.Post("/records/recent", h.HandleLastDays)
		r.Post("/summary", h.HandleProductionSummary)
		r.Post("/machines", h.HandleMachineRollups)
		r.Post("/export/{format}", h.HandleExport)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.Accounts.CurrentUser(r.Context(), bearerToken(r)); err != nil {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req accounts.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Accounts.Signup(r.Context(), req))
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Accounts.Login(r.Context(), req.Email, req.Password))
}

// HandleLogout ends the session and drops cached schemas.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.logout(r.Context(), bearerToken(r))
	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

// logout only touches the schema cache for a live session.
func (h *Handler) logout(ctx context.Context, token string) {
	if _, err := h.Accounts.CurrentUser(ctx, token); err != nil {
		return
	}
	h.Accounts.Logout(token)
	h.Dashboard.Invalidate()
}

func (h *Handler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Accounts.CurrentUser(r.Context(), bearerToken(r))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Dashboard.Config(r.Context())
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) HandleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var cfg dbconnector.ConnectionConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Dashboard.SaveConnectionConfig(r.Context(), cfg); err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (h *Handler) HandleClearConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.Dashboard.ClearConnectionConfig(r.Context()); err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (h *Handler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	var cfg dbconnector.ConnectionConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Dashboard.TestConnection(r.Context(), cfg))
}

func (h *Handler) HandleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tables": h.Dashboard.ListTables(r.Context())})
}

func (h *Handler) HandleTableStructure(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Table) == "" {
		writeError(w, http.StatusBadRequest, "table is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": h.Dashboard.GetTableStructure(r.Context(), req.Table)})
}

func (h *Handler) HandleInferSchema(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ts, err := h.Dashboard.InferSchema(r.Context(), req.Table)
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *Handler) HandleUniqueIdentifiers(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Dashboard.GetUniqueIdentifiers(r.Context(), req.Table))
}

func (h *Handler) HandleSampleData(w http.ResponseWriter, r *http.Request) {
	var req sampleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": h.Dashboard.GetSampleData(r.Context(), req.Table, req.Limit)})
}

func (h *Handler) HandleAllRecords(w http.ResponseWriter, r *http.Request) {
	var fs dashboard.FilterSet
	if err := decodeJSON(r, &fs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.Dashboard.GetAllRecords(r.Context(), fs)
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandlePaginatedData(w http.ResponseWriter, r *http.Request) {
	var fs dashboard.FilterSet
	if err := decodeJSON(r, &fs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.Dashboard.GetPaginatedData(r.Context(), fs)
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleRecordHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.Dashboard.GetRecordHistory(r.Context(), req.Record, req.TableName)
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) HandleLastDays(w http.ResponseWriter, r *http.Request) {
	var req recentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.Dashboard.GetLastDays(r.Context(), req.Table, req.Days)
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleProductionSummary(w http.ResponseWriter, r *http.Request) {
	var fs dashboard.FilterSet
	if err := decodeJSON(r, &fs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := h.Dashboard.GetProductionSummary(r.Context(), fs)
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleMachineRollups(w http.ResponseWriter, r *http.Request) {
	var fs dashboard.FilterSet
	if err := decodeJSON(r, &fs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rollups, err := h.Dashboard.GetMachineRollups(r.Context(), fs)
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"machines": rollups})
}

// HandleExport renders the filtered records of one table as a document.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var fs dashboard.FilterSet
	if err := decodeJSON(r, &fs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.Dashboard.GetAllRecords(r.Context(), fs)
	if err != nil {
		h.writeDashboardError(w, err)
		return
	}
	var buf bytes.Buffer
	table := export.Table{Title: fs.Table, Columns: result.Columns, Rows: result.Records}
	if err := export.Write(&buf, format, table); err != nil {
		if errors.Is(err, export.ErrEmptyTable) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.Logger.Error("export failed", slog.String("format", string(format)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, exportName(fs.Table), format.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func exportName(table string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, table)
	if name == "" {
		return "export"
	}
	return name
}

func dashboardStatus(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNotConfigured):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrSchemaDetectionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dashboard.ErrCatalogFailed), errors.Is(err, dashboard.ErrQueryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDashboardError(w http.ResponseWriter, err error) {
	status := dashboardStatus(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("dashboard request failed", slog.String("error", err.Error()))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
