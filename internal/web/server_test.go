package web

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"authgate.gg/internal/auth"
	"authgate.gg/internal/config"
	"authgate.gg/internal/store"
)

func testServer(t *testing.T) (*httptest.Server, *auth.Service, context.Context) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Defaults()
	cfg.Server.Token = "testtoken"

	authority := auth.NewAuthority(64)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go authority.Run(ctx)

	logger := log.New(io.Discard, "", 0)
	svc := auth.NewService(authority, st, cfg, nil, logger)

	mux := http.NewServeMux()
	NewServer(svc, cfg.Server, logger).Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, svc, ctx
}

func do(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAPI_RejectsBadToken(t *testing.T) {
	ts, _, _ := testServer(t)
	resp, _ := do(t, "GET", ts.URL+"/api/v1/status?name=Steve", "wrong", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAPI_StatusLifecycle(t *testing.T) {
	ts, svc, ctx := testServer(t)

	resp, _ := do(t, "GET", ts.URL+"/api/v1/status?name=Steve", "testtoken", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d for unknown player", resp.StatusCode)
	}

	if err := svc.OnJoin(ctx, "Steve", store.OfflineUUID("Steve")); err != nil {
		t.Fatalf("join: %v", err)
	}
	resp, body := do(t, "GET", ts.URL+"/api/v1/status?name=Steve", "testtoken", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["bound"] != false || body["guest"] != true {
		t.Fatalf("got %v", body)
	}

	resp, _ = do(t, "POST", ts.URL+"/api/v1/bind", "testtoken", `{"name":"Steve","qq":20001}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bind status = %d", resp.StatusCode)
	}

	_, body = do(t, "GET", ts.URL+"/api/v1/status?name=Steve", "testtoken", "")
	if body["bound"] != true || body["guest"] != false {
		t.Fatalf("got %v", body)
	}

	resp, _ = do(t, "POST", ts.URL+"/api/v1/unbind", "testtoken", `{"name":"Steve"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unbind status = %d", resp.StatusCode)
	}
	_, body = do(t, "GET", ts.URL+"/api/v1/status?name=Steve", "testtoken", "")
	if body["bound"] != false {
		t.Fatalf("got %v", body)
	}
}

func TestAPI_BindConflictMapsTo409(t *testing.T) {
	ts, svc, ctx := testServer(t)
	if err := svc.OnJoin(ctx, "Steve", store.OfflineUUID("Steve")); err != nil {
		t.Fatalf("join: %v", err)
	}
	resp, _ := do(t, "POST", ts.URL+"/api/v1/bind", "testtoken", `{"name":"Steve","qq":20001}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bind status = %d", resp.StatusCode)
	}
	resp, body := do(t, "POST", ts.URL+"/api/v1/bind", "testtoken", `{"name":"Steve","qq":20002}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("rebind status = %d", resp.StatusCode)
	}
	if body["error"] != "register.already_other" {
		t.Fatalf("got %v", body)
	}
}

func TestAPI_BadRequests(t *testing.T) {
	ts, _, _ := testServer(t)
	resp, _ := do(t, "GET", ts.URL+"/api/v1/status", "testtoken", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp, _ = do(t, "POST", ts.URL+"/api/v1/bind", "testtoken", `{"name":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp, _ = do(t, "POST", ts.URL+"/api/v1/unbind", "testtoken", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
