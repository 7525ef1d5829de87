package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fentz26/relay/internal/audit"
	"github.com/fentz26/relay/internal/bridge"
	"github.com/fentz26/relay/internal/models"
	"github.com/fentz26/relay/internal/remote"
	"github.com/fentz26/relay/internal/remote/loopback"
	"github.com/fentz26/relay/internal/store"
)

type testEnv struct {
	service *Service
	handler http.Handler
	dialer  *loopback.Dialer
}

func newTestEnv(t *testing.T) *testEnv {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	dialer := loopback.NewDialer()
	service := NewService(bridge.NewSystem(), dialer, audit.NewRecorder(st), st)
	server := NewServer(service, "127.0.0.1:0")

	return &testEnv{
		service: service,
		handler: server.Handler(),
		dialer:  dialer,
	}
}

func (e *testEnv) addCalcServer(t *testing.T) {
	t.Helper()

	srv := loopback.NewServer()
	srv.Register(bridge.ToolDescriptor{Name: "add", Description: "add two numbers"}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		a, _ := args["a"].(float64)
		b, _ := args["b"].(float64)
		return bridge.Result{Text: fmt.Sprintf("%g", a+b)}, nil
	})
	srv.Register(bridge.ToolDescriptor{Name: "fail"}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		return bridge.Result{}, errors.New("division by zero")
	})
	e.dialer.Add("loopback://calc", srv)

	_, err := e.service.RegisterRemoteServer(context.Background(), remote.ServerConfig{
		ID:     "calc",
		Prefix: "calc",
		Spec:   remote.LaunchSpec{Endpoint: "loopback://calc"},
	})
	if err != nil {
		t.Fatalf("RegisterRemoteServer failed: %v", err)
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestListTools(t *testing.T) {
	e := newTestEnv(t)
	e.service.RegisterNativeTool("get_time", "current time", nil, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		return bridge.Result{Text: "now"}, nil
	})
	e.addCalcServer(t)

	w := e.do(t, http.MethodGet, "/tools", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var tools []bridge.Tool
	if err := json.NewDecoder(w.Body).Decode(&tools); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(tools) != 3 {
		t.Fatalf("Expected 3 tools, got %d", len(tools))
	}
	// Registration order: native first, then the server batch.
	if tools[0].Name != "get_time" || tools[1].Name != "calc_add" {
		t.Errorf("Unexpected order: %s, %s", tools[0].Name, tools[1].Name)
	}
}

func TestGetTool(t *testing.T) {
	e := newTestEnv(t)
	e.addCalcServer(t)

	w := e.do(t, http.MethodGet, "/tools/calc_add", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var tool bridge.Tool
	if err := json.NewDecoder(w.Body).Decode(&tool); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if tool.ServerID != "calc" || tool.RemoteName != "add" {
		t.Errorf("Unexpected tool: %+v", tool)
	}

	w = e.do(t, http.MethodGet, "/tools/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestDispatch_Native(t *testing.T) {
	e := newTestEnv(t)
	e.service.RegisterNativeTool("echo", "", nil, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		text, _ := args["text"].(string)
		return bridge.Result{Text: text}, nil
	})

	w := e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "echo", Args: bridge.Args{"text": "hello"}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp dispatchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Result.Text != "hello" {
		t.Errorf("Result.Text = %q", resp.Result.Text)
	}
}

func TestDispatch_Remote(t *testing.T) {
	e := newTestEnv(t)
	e.addCalcServer(t)

	w := e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "calc_add", Args: bridge.Args{"a": 2, "b": 3}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp dispatchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Result.Text != "5" {
		t.Errorf("Result.Text = %q, want 5", resp.Result.Text)
	}
}

func TestDispatch_ErrorStatusCodes(t *testing.T) {
	e := newTestEnv(t)
	e.addCalcServer(t)

	// Unknown tool
	w := e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "nonexistent"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Unknown tool: expected 404, got %d", w.Code)
	}

	// Server-reported tool failure
	w = e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "calc_fail"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("Remote failure: expected 502, got %d", w.Code)
	}

	// Registered but disconnected server
	handle, _ := e.service.system.Server("calc")
	handle.(*remote.Handle).Close()
	w = e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "calc_add"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Disconnected server: expected 503, got %d", w.Code)
	}

	// Unregistered server
	if err := e.service.UnregisterServer("calc"); err != nil {
		t.Fatal(err)
	}
	w = e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "calc_add"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Unregistered tool: expected 404, got %d", w.Code)
	}
}

func TestRegisterServerEndpoint(t *testing.T) {
	e := newTestEnv(t)

	srv := loopback.NewServer()
	srv.Register(bridge.ToolDescriptor{Name: "lookup"}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		return bridge.Result{Text: "found"}, nil
	})
	e.dialer.Add("loopback://search", srv)

	w := e.do(t, http.MethodPost, "/servers", registerServerRequest{
		ID:       "search",
		Prefix:   "web",
		Endpoint: "loopback://search",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var result RegisterResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(result.Registered) != 1 || result.Registered[0] != "web_lookup" {
		t.Errorf("Registered = %v", result.Registered)
	}
	if result.Server.State != string(bridge.StateConnected) {
		t.Errorf("State = %s", result.Server.State)
	}

	// Duplicate id conflicts
	w = e.do(t, http.MethodPost, "/servers", registerServerRequest{
		ID:       "search",
		Endpoint: "loopback://search",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Duplicate id: expected 409, got %d", w.Code)
	}
}

func TestRegisterServerEndpoint_ConnectFailure(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/servers", registerServerRequest{
		ID:       "ghost",
		Endpoint: "loopback://nowhere",
	})
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 for unreachable server, got %d", w.Code)
	}
}

func TestServerLifecycleEndpoints(t *testing.T) {
	e := newTestEnv(t)
	e.addCalcServer(t)

	// List
	w := e.do(t, http.MethodGet, "/servers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var servers []ServerStatus
	if err := json.NewDecoder(w.Body).Decode(&servers); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(servers) != 1 || servers[0].ID != "calc" || servers[0].ToolCount != 2 {
		t.Errorf("Servers = %+v", servers)
	}

	// Get by id
	w = e.do(t, http.MethodGet, "/servers/calc", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	// Delete
	w = e.do(t, http.MethodDelete, "/servers/calc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	w = e.do(t, http.MethodGet, "/servers/calc", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
	w = e.do(t, http.MethodDelete, "/servers/calc", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Second delete: expected 404, got %d", w.Code)
	}
}

func TestReconnectEndpoint_RefreshesSnapshot(t *testing.T) {
	e := newTestEnv(t)

	srv := loopback.NewServer()
	srv.Register(bridge.ToolDescriptor{Name: "add"}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		return bridge.Result{Text: "ok"}, nil
	})
	e.dialer.Add("loopback://calc", srv)

	_, err := e.service.RegisterRemoteServer(context.Background(), remote.ServerConfig{
		ID:     "calc",
		Prefix: "calc",
		Spec:   remote.LaunchSpec{Endpoint: "loopback://calc"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// The server grows a tool; the catalogue does not change until reconnect.
	srv.Register(bridge.ToolDescriptor{Name: "subtract"}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		return bridge.Result{Text: "ok"}, nil
	})
	if len(e.service.ListTools()) != 1 {
		t.Fatalf("Snapshot should not refresh on its own, have %d tools", len(e.service.ListTools()))
	}

	w := e.do(t, http.MethodPost, "/servers/calc/reconnect", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result RegisterResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(result.Registered) != 2 {
		t.Errorf("Registered after reconnect = %v", result.Registered)
	}

	w = e.do(t, http.MethodPost, "/servers/unknown/reconnect", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Unknown server reconnect: expected 404, got %d", w.Code)
	}
}

func TestInvocationsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.addCalcServer(t)

	e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "calc_add", Args: bridge.Args{"a": 1, "b": 2}})
	e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "calc_fail"})
	e.do(t, http.MethodPost, "/dispatch", dispatchRequest{Tool: "nonexistent"})

	w := e.do(t, http.MethodGet, "/invocations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var recs []models.InvocationRecord
	if err := json.NewDecoder(w.Body).Decode(&recs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(recs))
	}

	w = e.do(t, http.MethodGet, "/invocations?tool=calc_fail", nil)
	if err := json.NewDecoder(w.Body).Decode(&recs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != models.InvocationStatusError {
		t.Errorf("Filtered records = %+v", recs)
	}
	if recs[0].ErrorKind != string(bridge.DispatchRemoteError) {
		t.Errorf("ErrorKind = %s", recs[0].ErrorKind)
	}
}
