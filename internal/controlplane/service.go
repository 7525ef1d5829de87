// Package controlplane provides the HTTP API and service layer for Relay.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fentz26/relay/internal/audit"
	"github.com/fentz26/relay/internal/bridge"
	"github.com/fentz26/relay/internal/models"
	"github.com/fentz26/relay/internal/remote"
	"github.com/fentz26/relay/internal/store"
)

// ServerStatus is the live view of one registered server.
type ServerStatus struct {
	ID          string     `json:"id"`
	Prefix      string     `json:"prefix,omitempty"`
	State       string     `json:"state"`
	ToolCount   int        `json:"tool_count"`
	LastError   string     `json:"last_error,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// RegisterResult reports the outcome of merging one server's tools.
type RegisterResult struct {
	Server     ServerStatus `json:"server"`
	Registered []string     `json:"registered"`
	Failed     []string     `json:"failed,omitempty"`
}

// Service provides the control plane business logic. It owns the hybrid tool
// system and remembers each server's launch config so it can reconnect.
type Service struct {
	system   *bridge.System
	dialer   remote.Dialer
	recorder *audit.Recorder
	store    *store.Store

	mu      sync.Mutex
	configs map[string]remote.ServerConfig
}

// NewService creates a new control plane service.
func NewService(system *bridge.System, dialer remote.Dialer, recorder *audit.Recorder, s *store.Store) *Service {
	return &Service{
		system:   system,
		dialer:   dialer,
		recorder: recorder,
		store:    s,
		configs:  make(map[string]remote.ServerConfig),
	}
}

// RegisterNativeTool adds a local function tool to the catalogue.
func (s *Service) RegisterNativeTool(name, description string, schema bridge.Schema, fn bridge.NativeFunc) error {
	return s.system.RegisterNativeTool(name, description, schema, fn)
}

// RegisterRemoteServer connects a server, merges its tools into the
// catalogue, and persists a server record. Descriptor-level collisions do not
// abort registration; they are reported in the result.
func (s *Service) RegisterRemoteServer(ctx context.Context, cfg remote.ServerConfig) (*RegisterResult, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: server id required", ErrInvalidRequest)
	}
	if _, exists := s.system.Server(cfg.ID); exists {
		return nil, fmt.Errorf("server %q: %w", cfg.ID, ErrServerExists)
	}

	handle, err := remote.Connect(ctx, s.dialer, cfg.ID, cfg.Spec)
	if err != nil {
		return nil, err
	}

	registered, failed, err := s.system.RegisterServer(handle, cfg.Prefix, handle.Tools())
	if err != nil {
		handle.Close()
		if errors.Is(err, bridge.ErrServerExists) {
			return nil, fmt.Errorf("server %q: %w", cfg.ID, ErrServerExists)
		}
		return nil, err
	}

	s.mu.Lock()
	s.configs[cfg.ID] = cfg
	s.mu.Unlock()

	for _, f := range failed {
		log.Printf("server %s: skipping tool %s: %v", cfg.ID, f.Descriptor, f.Err)
	}

	connectedAt := handle.ConnectedAt()
	if _, err := s.store.UpsertServer(models.ServerRecord{
		ID:          cfg.ID,
		Prefix:      cfg.Prefix,
		State:       string(handle.State()),
		ToolCount:   len(registered),
		ConnectedAt: &connectedAt,
	}); err != nil {
		log.Printf("persisting server %s: %v", cfg.ID, err)
	}

	result := &RegisterResult{Server: s.statusFor(handle, cfg.Prefix, len(registered))}
	for _, tool := range registered {
		result.Registered = append(result.Registered, tool.Name)
	}
	for _, f := range failed {
		result.Failed = append(result.Failed, f.Descriptor)
	}
	return result, nil
}

// UnregisterServer disconnects a server and removes every tool it
// contributed. Its persisted record is deleted as well.
func (s *Service) UnregisterServer(id string) error {
	handle, ok := s.system.Server(id)
	if !ok {
		return fmt.Errorf("server %q: %w", id, ErrServerNotFound)
	}

	if err := s.system.UnregisterServer(id); err != nil {
		return err
	}
	if h, ok := handle.(*remote.Handle); ok {
		h.Close()
	}

	s.mu.Lock()
	delete(s.configs, id)
	s.mu.Unlock()

	if err := s.store.DeleteServer(id); err != nil {
		log.Printf("deleting server record %s: %v", id, err)
	}
	return nil
}

// ReconnectServer tears a server down and connects it again with its stored
// config, refreshing the tool snapshot. This is the only way a changed server
// is picked up.
func (s *Service) ReconnectServer(ctx context.Context, id string) (*RegisterResult, error) {
	s.mu.Lock()
	cfg, ok := s.configs[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("server %q: %w", id, ErrServerNotFound)
	}

	if handle, exists := s.system.Server(id); exists {
		if err := s.system.UnregisterServer(id); err != nil {
			return nil, err
		}
		if h, ok := handle.(*remote.Handle); ok {
			h.Close()
		}
	}

	result, err := s.RegisterRemoteServer(ctx, cfg)
	if err != nil {
		s.store.UpdateServerState(id, string(bridge.StateFailed), err.Error())
		// Keep the config so a later reconnect can still work.
		s.mu.Lock()
		s.configs[id] = cfg
		s.mu.Unlock()
		return nil, err
	}
	return result, nil
}

// Dispatch routes one tool invocation and records it in the audit log.
func (s *Service) Dispatch(ctx context.Context, name string, args bridge.Args) (bridge.Result, error) {
	origin, serverID := "", ""
	if tool, ok := s.system.Registry().Resolve(name); ok {
		origin = string(tool.Origin)
		serverID = tool.ServerID
	}

	start := time.Now()
	res, err := s.system.Dispatch(ctx, name, args)
	elapsed := time.Since(start)

	if err != nil {
		kind := "dispatch_error"
		if de, ok := bridge.AsDispatchError(err); ok {
			kind = string(de.Kind)
		}
		if _, aerr := s.recorder.RecordFailure(name, origin, serverID, args, kind, err.Error(), elapsed); aerr != nil {
			log.Printf("recording invocation %s: %v", name, aerr)
		}
		return bridge.Result{}, err
	}

	if _, aerr := s.recorder.RecordSuccess(name, origin, serverID, args, res.Text, elapsed); aerr != nil {
		log.Printf("recording invocation %s: %v", name, aerr)
	}
	return res, nil
}

// ListTools returns the merged catalogue in registration order.
func (s *Service) ListTools() []bridge.Tool {
	return s.system.ListAllTools()
}

// GetTool returns one catalogue entry by its registered name.
func (s *Service) GetTool(name string) (bridge.Tool, error) {
	tool, ok := s.system.Registry().Resolve(name)
	if !ok {
		return bridge.Tool{}, fmt.Errorf("tool %q: %w", name, ErrToolNotFound)
	}
	return tool, nil
}

// Servers returns the live status of every registered server.
func (s *Service) Servers() []ServerStatus {
	handles := s.system.Servers()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ServerStatus, 0, len(handles))
	for _, h := range handles {
		prefix := s.configs[h.ID()].Prefix
		count := 0
		for _, tool := range s.system.ListAllTools() {
			if tool.Origin == bridge.OriginRemote && tool.ServerID == h.ID() {
				count++
			}
		}
		out = append(out, s.statusFor(h, prefix, count))
	}
	return out
}

// GetServer returns the live status of one server.
func (s *Service) GetServer(id string) (ServerStatus, error) {
	handle, ok := s.system.Server(id)
	if !ok {
		return ServerStatus{}, fmt.Errorf("server %q: %w", id, ErrServerNotFound)
	}

	s.mu.Lock()
	prefix := s.configs[id].Prefix
	s.mu.Unlock()

	count := 0
	for _, tool := range s.system.ListAllTools() {
		if tool.Origin == bridge.OriginRemote && tool.ServerID == id {
			count++
		}
	}
	return s.statusFor(handle, prefix, count), nil
}

// Ping verifies the backing database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListInvocations returns recent audit records, optionally filtered by tool.
func (s *Service) ListInvocations(tool string, limit int) ([]models.InvocationRecord, error) {
	return s.store.ListInvocations(tool, limit)
}

func (s *Service) statusFor(h bridge.ServerHandle, prefix string, toolCount int) ServerStatus {
	status := ServerStatus{
		ID:        h.ID(),
		Prefix:    prefix,
		State:     string(h.State()),
		ToolCount: toolCount,
	}
	if rh, ok := h.(*remote.Handle); ok {
		if t := rh.ConnectedAt(); !t.IsZero() {
			status.ConnectedAt = &t
		}
		if err := rh.LastError(); err != nil {
			status.LastError = err.Error()
		}
	}
	return status
}
