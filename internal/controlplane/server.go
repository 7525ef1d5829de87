package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/relay/internal/bridge"
	"github.com/fentz26/relay/internal/models"
	"github.com/fentz26/relay/internal/remote"
)

// Server provides the HTTP API for Relay.
type Server struct {
	service *Service
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string) *Server {
	return &Server{
		service: service,
		addr:    addr,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Tool endpoints
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/tools/", s.handleToolByName)
	mux.HandleFunc("/dispatch", s.handleDispatch)

	// Server endpoints
	mux.HandleFunc("/servers", s.handleServers)
	mux.HandleFunc("/servers/", s.handleServerByID)

	// Audit log
	mux.HandleFunc("/invocations", s.handleInvocations)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := s.service.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "db": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","db":"ok"}`))
	})

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting Relay daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// --- Tool Handlers ---

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tools := s.service.ListTools()
	if tools == nil {
		tools = []bridge.Tool{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tools)
}

func (s *Server) handleToolByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/tools/")
	if name == "" {
		http.Error(w, "tool name required", http.StatusBadRequest)
		return
	}

	tool, err := s.service.GetTool(name)
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tool)
}

type dispatchRequest struct {
	Tool string      `json:"tool"`
	Args bridge.Args `json:"args"`
}

type dispatchResponse struct {
	Result bridge.Result `json:"result"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Tool == "" {
		http.Error(w, "tool name required", http.StatusBadRequest)
		return
	}

	res, err := s.service.Dispatch(r.Context(), req.Tool, req.Args)
	if err != nil {
		http.Error(w, err.Error(), dispatchStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dispatchResponse{Result: res})
}

// dispatchStatus maps a dispatch failure to an HTTP status code.
func dispatchStatus(err error) int {
	de, ok := bridge.AsDispatchError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case bridge.DispatchUnknownTool:
		return http.StatusNotFound
	case bridge.DispatchServerUnavailable:
		return http.StatusServiceUnavailable
	case bridge.DispatchRemoteError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// --- Server Handlers ---

type registerServerRequest struct {
	ID       string            `json:"id"`
	Prefix   string            `json:"prefix,omitempty"`
	Command  string            `json:"command,omitempty"`
	Args     []string          `json:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Endpoint string            `json:"endpoint,omitempty"`
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listServers(w, r)
	case http.MethodPost:
		s.registerServer(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	servers := s.service.Servers()
	if servers == nil {
		servers = []ServerStatus{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(servers)
}

func (s *Server) registerServer(w http.ResponseWriter, r *http.Request) {
	var req registerServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	cfg := remote.ServerConfig{
		ID:     req.ID,
		Prefix: req.Prefix,
		Spec: remote.LaunchSpec{
			Command:  req.Command,
			Args:     req.Args,
			Env:      req.Env,
			Endpoint: req.Endpoint,
		},
		Enabled: true,
	}

	result, err := s.service.RegisterRemoteServer(r.Context(), cfg)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrServerExists):
			status = http.StatusConflict
		case errors.Is(err, ErrInvalidRequest):
			status = http.StatusBadRequest
		default:
			var ce *remote.ConnectionError
			if errors.As(err, &ce) {
				status = http.StatusBadGateway
			}
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// handleServerByID handles /servers/{id} and /servers/{id}/reconnect
func (s *Server) handleServerByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/servers/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "server id required", http.StatusBadRequest)
		return
	}

	serverID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getServer(w, r, serverID)
	case action == "" && r.Method == http.MethodDelete:
		s.unregisterServer(w, r, serverID)
	case action == "reconnect" && r.Method == http.MethodPost:
		s.reconnectServer(w, r, serverID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request, serverID string) {
	status, err := s.service.GetServer(serverID)
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) unregisterServer(w http.ResponseWriter, r *http.Request, serverID string) {
	if err := s.service.UnregisterServer(serverID); err != nil {
		if errors.Is(err, ErrServerNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"unregistered"}`))
}

func (s *Server) reconnectServer(w http.ResponseWriter, r *http.Request, serverID string) {
	result, err := s.service.ReconnectServer(r.Context(), serverID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrServerNotFound):
			status = http.StatusNotFound
		default:
			var ce *remote.ConnectionError
			if errors.As(err, &ce) {
				status = http.StatusBadGateway
			}
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// --- Audit Handlers ---

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tool := r.URL.Query().Get("tool")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.service.ListInvocations(tool, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []models.InvocationRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}
