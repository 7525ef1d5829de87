package bridge

import (
	"context"
	"fmt"
)

// System is the hybrid tool system: one registry plus the handles of every
// registered remote server. It is explicitly constructed and owned by the
// orchestrator — there is no process-wide instance.
type System struct {
	registry *Registry

	// servers shares the registry's lock discipline: registration mutates,
	// dispatch only reads. The registry mutex covers both maps so a server
	// and its tools appear (and disappear) together.
	servers map[string]ServerHandle
}

// NewSystem creates an empty hybrid tool system.
func NewSystem() *System {
	return &System{
		registry: NewRegistry(),
		servers:  make(map[string]ServerHandle),
	}
}

// Registry exposes the underlying tool registry.
func (s *System) Registry() *Registry { return s.registry }

// RegisterNativeTool adds a local function tool to the catalogue.
func (s *System) RegisterNativeTool(name, description string, schema Schema, fn NativeFunc) error {
	return s.registry.RegisterNative(name, description, schema, fn)
}

// RegisterServer merges an already-connected server's descriptor snapshot
// into the catalogue under the given prefix. It fails with ErrServerExists
// when the id is taken; descriptor-level collisions are reported
// per-descriptor without aborting the batch.
func (s *System) RegisterServer(handle ServerHandle, prefix string, descriptors []ToolDescriptor) ([]Tool, []*DescriptorError, error) {
	id := handle.ID()

	s.registry.mu.Lock()
	if _, taken := s.servers[id]; taken {
		s.registry.mu.Unlock()
		return nil, nil, fmt.Errorf("server %q: %w", id, ErrServerExists)
	}
	s.servers[id] = handle
	s.registry.mu.Unlock()

	registered, failed := s.registry.RegisterRemoteTools(id, prefix, descriptors)
	return registered, failed, nil
}

// UnregisterServer removes a server's handle and every tool it contributed.
func (s *System) UnregisterServer(id string) error {
	s.registry.mu.Lock()
	_, ok := s.servers[id]
	delete(s.servers, id)
	s.registry.mu.Unlock()

	if !ok {
		return fmt.Errorf("server %q: %w", id, ErrServerNotFound)
	}
	s.registry.UnregisterServer(id)
	return nil
}

// Server returns the handle registered under id.
func (s *System) Server(id string) (ServerHandle, bool) {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()
	h, ok := s.servers[id]
	return h, ok
}

// Servers returns every registered handle.
func (s *System) Servers() []ServerHandle {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()
	out := make([]ServerHandle, 0, len(s.servers))
	for _, h := range s.servers {
		out = append(out, h)
	}
	return out
}

// ListAllTools returns the merged catalogue in registration order.
func (s *System) ListAllTools() []Tool {
	return s.registry.ListAll()
}

// Dispatch resolves name and invokes the owning backend. Every failure comes
// back as a *DispatchError; concurrent dispatches are independent and never
// mutate the registry.
func (s *System) Dispatch(ctx context.Context, name string, args Args) (Result, error) {
	tool, ok := s.registry.Resolve(name)
	if !ok {
		return Result{}, &DispatchError{Kind: DispatchUnknownTool, Tool: name}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, &DispatchError{Kind: DispatchCancelled, Tool: name, Err: err}
	}

	switch tool.Origin {
	case OriginNative:
		return s.dispatchNative(ctx, tool, args)
	case OriginRemote:
		return s.dispatchRemote(ctx, tool, args)
	default:
		panic(fmt.Sprintf("bridge: tool %q has unknown origin %q", name, tool.Origin))
	}
}

func (s *System) dispatchNative(ctx context.Context, tool Tool, args Args) (res Result, err error) {
	// A panicking native tool must not take the dispatcher down; it becomes
	// an ordinary execution error reported to the caller.
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{}
			err = &DispatchError{
				Kind: DispatchNativeError,
				Tool: tool.Name,
				Err:  fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	out, callErr := tool.fn(ctx, args)
	if callErr != nil {
		if ctx.Err() != nil {
			return Result{}, &DispatchError{Kind: DispatchCancelled, Tool: tool.Name, Err: ctx.Err()}
		}
		return Result{}, &DispatchError{Kind: DispatchNativeError, Tool: tool.Name, Err: callErr}
	}
	return out, nil
}

func (s *System) dispatchRemote(ctx context.Context, tool Tool, args Args) (Result, error) {
	handle, ok := s.Server(tool.ServerID)
	if !ok {
		return Result{}, &DispatchError{
			Kind:     DispatchServerUnavailable,
			Tool:     tool.Name,
			ServerID: tool.ServerID,
		}
	}
	if handle.State() != StateConnected {
		// No I/O is attempted against a server that is not connected.
		return Result{}, &DispatchError{
			Kind:     DispatchServerUnavailable,
			Tool:     tool.Name,
			ServerID: tool.ServerID,
		}
	}

	out, err := handle.Invoke(ctx, tool.RemoteName, args)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, &DispatchError{
				Kind:     DispatchCancelled,
				Tool:     tool.Name,
				ServerID: tool.ServerID,
				Err:      ctx.Err(),
			}
		}
		return Result{}, &DispatchError{
			Kind:     DispatchRemoteError,
			Tool:     tool.Name,
			ServerID: tool.ServerID,
			Err:      err,
		}
	}
	return out, nil
}
