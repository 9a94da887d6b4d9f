package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"linedash-backend/internal/dashboard"
)

func callRPC(t *testing.T, url, token, method string, params any) (*http.Response, rpcResponse) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, url+"/rpc", token, map[string]any{
		"jsonrpc": "2.0", "id": 7, "method": method, "params": params,
	})
	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode rpc response: %v", err)
	}
	return resp, out
}

func TestHistoryRequestContract(t *testing.T) {
	payload := []byte(`{"record": "B-17", "tableName": "BathData"}`)
	var req historyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("failed to unmarshal historyRequest: %v", err)
	}
	if req.Record != "B-17" || req.TableName != "BathData" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestRPCUnknownMethod(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDashboard{})
	resp, out := callRPC(t, srv.URL, testToken, "db.list_tables", nil)
	if resp.StatusCode != http.StatusNotFound || out.Error == nil || out.Error.Code != -32601 {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, out.Error)
	}
}

func TestRPCRequiresSessionForDashboardMethods(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDashboard{})
	resp, out := callRPC(t, srv.URL, "", "get-tables-list", nil)
	if resp.StatusCode != http.StatusUnauthorized || out.Error == nil {
		t.Fatalf("expected unauthorized, got %d %+v", resp.StatusCode, out)
	}
	_, out = callRPC(t, srv.URL, "", "login-user", map[string]string{"email": "op@plant.test", "password": "secret1"})
	if out.Error != nil {
		t.Fatalf("login should be public: %+v", out.Error)
	}
}

func TestRPCTablesList(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDashboard{})
	_, out := callRPC(t, srv.URL, testToken, "get-tables-list", nil)
	tables, ok := out.Result.([]any)
	if !ok || len(tables) != 1 || tables[0] != "BathData" {
		t.Fatalf("unexpected result: %#v", out.Result)
	}
	if out.ID != float64(7) {
		t.Fatalf("id not echoed: %#v", out.ID)
	}
}

func TestRPCInferSchemaReturnsNullOnFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDashboard{inferErr: errors.New("no columns")})
	resp, out := callRPC(t, srv.URL, testToken, "infer-schema", map[string]string{"table": "Empty"})
	if resp.StatusCode != http.StatusOK || out.Error != nil || out.Result != nil {
		t.Fatalf("expected null result, got %d %+v", resp.StatusCode, out)
	}
}

func TestRPCInvalidParams(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDashboard{})
	_, out := callRPC(t, srv.URL, testToken, "get-all-records", "not an object")
	if out.Error == nil || out.Error.Code != -32602 {
		t.Fatalf("expected invalid params, got %+v", out)
	}
}

func TestRPCDashboardErrorKeepsMessage(t *testing.T) {
	srv, _ := newTestServer(t, &fakeDashboard{err: dashboard.ErrNotConfigured})
	resp, out := callRPC(t, srv.URL, testToken, "get-production-summary", map[string]string{"table": "BathData"})
	if resp.StatusCode != http.StatusConflict || out.Error == nil || out.Error.Message != dashboard.ErrNotConfigured.Error() {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, out)
	}
}

func TestRPCClearConfig(t *testing.T) {
	d := &fakeDashboard{}
	srv, _ := newTestServer(t, d)
	_, out := callRPC(t, srv.URL, testToken, "db-logout", nil)
	if out.Error != nil || !d.cleared {
		t.Fatalf("config not cleared: %+v", out)
	}
}
