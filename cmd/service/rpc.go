package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	dbconnector "linedash-backend"
	"linedash-backend/internal/accounts"
	"linedash-backend/internal/dashboard"
)

const rpcTimeout = 30 * time.Second

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var errInvalidParams = errors.New("invalid params")

type rpcCall struct {
	ctx    context.Context
	params json.RawMessage
	token  string
}

// bind decodes params into v. Absent params leave v at its zero value.
func (c rpcCall) bind(v any) error {
	if len(c.params) == 0 || string(c.params) == "null" {
		return nil
	}
	if err := json.Unmarshal(c.params, v); err != nil {
		return errInvalidParams
	}
	return nil
}

type rpcMethod struct {
	public bool
	call   func(h *Handler, c rpcCall) (any, error)
}

var rpcMethods = map[string]rpcMethod{
	"get-tables-list": {call: func(h *Handler, c rpcCall) (any, error) {
		return h.Dashboard.ListTables(c.ctx), nil
	}},
	"get-table-structure": {call: func(h *Handler, c rpcCall) (any, error) {
		var p tableRequest
		if err := c.bind(&p); err != nil || p.Table == "" {
			return nil, errInvalidParams
		}
		return h.Dashboard.GetTableStructure(c.ctx, p.Table), nil
	}},
	"infer-schema": {call: func(h *Handler, c rpcCall) (any, error) {
		var p tableRequest
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		ts, err := h.Dashboard.InferSchema(c.ctx, p.Table)
		if err != nil {
			h.Logger.Warn("schema inference failed", "table", p.Table, "error", err.Error())
			return json.RawMessage("null"), nil
		}
		return ts, nil
	}},
	"get-unique-identifiers": {call: func(h *Handler, c rpcCall) (any, error) {
		var p tableRequest
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.GetUniqueIdentifiers(c.ctx, p.Table), nil
	}},
	"get-sample-data": {call: func(h *Handler, c rpcCall) (any, error) {
		var p sampleRequest
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.GetSampleData(c.ctx, p.Table, p.Limit), nil
	}},
	"get-all-records": {call: func(h *Handler, c rpcCall) (any, error) {
		var p dashboard.FilterSet
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.GetAllRecords(c.ctx, p)
	}},
	"get-paginated-data": {call: func(h *Handler, c rpcCall) (any, error) {
		var p dashboard.FilterSet
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.GetPaginatedData(c.ctx, p)
	}},
	"get-record-history": {call: func(h *Handler, c rpcCall) (any, error) {
		var p historyRequest
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.GetRecordHistory(c.ctx, p.Record, p.TableName)
	}},
	"get-production-summary": {call: func(h *Handler, c rpcCall) (any, error) {
		var p dashboard.FilterSet
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.GetProductionSummary(c.ctx, p)
	}},
	"get-machine-rollups": {call: func(h *Handler, c rpcCall) (any, error) {
		var p dashboard.FilterSet
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.GetMachineRollups(c.ctx, p)
	}},
	"get-last-month-data": {call: func(h *Handler, c rpcCall) (any, error) {
		var p recentRequest
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.GetLastDays(c.ctx, p.Table, p.Days)
	}},
	"db-get-config": {call: func(h *Handler, c rpcCall) (any, error) {
		return h.Dashboard.Config(c.ctx)
	}},
	"db-save-config": {call: func(h *Handler, c rpcCall) (any, error) {
		var p dbconnector.ConnectionConfig
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		if err := h.Dashboard.SaveConnectionConfig(c.ctx, p); err != nil {
			return nil, err
		}
		return ackResponse{Success: true}, nil
	}},
	"db-test-connection": {call: func(h *Handler, c rpcCall) (any, error) {
		var p dbconnector.ConnectionConfig
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Dashboard.TestConnection(c.ctx, p), nil
	}},
	"db-logout": {call: func(h *Handler, c rpcCall) (any, error) {
		if err := h.Dashboard.ClearConnectionConfig(c.ctx); err != nil {
			return nil, err
		}
		return ackResponse{Success: true}, nil
	}},
	"signup-user": {public: true, call: func(h *Handler, c rpcCall) (any, error) {
		var p accounts.SignupRequest
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Accounts.Signup(c.ctx, p), nil
	}},
	"login-user": {public: true, call: func(h *Handler, c rpcCall) (any, error) {
		var p loginRequest
		if err := c.bind(&p); err != nil {
			return nil, err
		}
		return h.Accounts.Login(c.ctx, p.Email, p.Password), nil
	}},
	"logout": {public: true, call: func(h *Handler, c rpcCall) (any, error) {
		h.logout(c.ctx, c.token)
		return ackResponse{Success: true}, nil
	}},
	"get-current-user": {public: true, call: func(h *Handler, c rpcCall) (any, error) {
		user, err := h.Accounts.CurrentUser(c.ctx, c.token)
		if err != nil {
			return json.RawMessage("null"), nil
		}
		return user, nil
	}},
}

// HandleRPC serves the JSON-RPC 2.0 endpoint used by the desktop shell.
func (h *Handler) HandleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, http.StatusBadRequest, -32700, "invalid json")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCError(w, req.ID, http.StatusBadRequest, -32600, "invalid request")
		return
	}
	method, ok := rpcMethods[req.Method]
	if !ok {
		writeRPCError(w, req.ID, http.StatusNotFound, -32601, "method not found")
		return
	}
	token := bearerToken(r)
	if !method.public {
		if _, err := h.Accounts.CurrentUser(r.Context(), token); err != nil {
			writeRPCError(w, req.ID, http.StatusUnauthorized, -32000, "login required")
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), rpcTimeout)
	defer cancel()
	result, err := method.call(h, rpcCall{ctx: ctx, params: req.Params, token: token})
	if err != nil {
		if errors.Is(err, errInvalidParams) {
			writeRPCError(w, req.ID, http.StatusBadRequest, -32602, err.Error())
			return
		}
		status := dashboardStatus(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			h.Logger.Error("rpc call failed", "method", req.Method, "error", message)
			message = "internal error"
		}
		writeRPCError(w, req.ID, status, -32000, message)
		return
	}
	writeRPCResult(w, req.ID, result)
}

func writeRPCResult(w http.ResponseWriter, id any, result any) {
	writeRPC(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeRPCError(w http.ResponseWriter, id any, status int, code int, message string) {
	writeRPC(w, status, rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func writeRPC(w http.ResponseWriter, status int, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
