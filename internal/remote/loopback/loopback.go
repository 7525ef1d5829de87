// Package loopback provides an in-process tool server and dialer. It backs
// the daemon's demo mode and lets tests exercise the full connect, list, and
// invoke path without a real transport.
package loopback

import (
	"context"
	"fmt"
	"sync"

	"github.com/fentz26/relay/internal/bridge"
	"github.com/fentz26/relay/internal/remote"
)

// HandlerFunc implements one tool on a loopback server.
type HandlerFunc func(ctx context.Context, args bridge.Args) (bridge.Result, error)

// Server is an in-process tool server.
type Server struct {
	mu          sync.RWMutex
	descriptors []bridge.ToolDescriptor
	handlers    map[string]HandlerFunc
}

// NewServer creates an empty loopback server.
func NewServer() *Server {
	return &Server{handlers: make(map[string]HandlerFunc)}
}

// Register adds a tool to the server. Registering an existing name replaces
// its handler but keeps the original descriptor position.
func (s *Server) Register(desc bridge.ToolDescriptor, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.handlers[desc.Name]; !exists {
		s.descriptors = append(s.descriptors, desc)
	}
	s.handlers[desc.Name] = fn
}

// Dialer hands out sessions to loopback servers keyed by endpoint.
type Dialer struct {
	mu      sync.RWMutex
	servers map[string]*Server
}

// NewDialer creates an empty loopback dialer.
func NewDialer() *Dialer {
	return &Dialer{servers: make(map[string]*Server)}
}

// Add registers a server under an endpoint name.
func (d *Dialer) Add(endpoint string, srv *Server) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servers[endpoint] = srv
}

// Dial opens a session to the server registered under spec.Endpoint.
func (d *Dialer) Dial(ctx context.Context, spec remote.LaunchSpec) (remote.Session, error) {
	d.mu.RLock()
	srv, ok := d.servers[spec.Endpoint]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no loopback server at %q", spec.Endpoint)
	}
	return &session{server: srv}, nil
}

// session is one connection to a loopback server.
type session struct {
	mu     sync.Mutex
	server *Server
	closed bool
}

func (c *session) ListTools(ctx context.Context) ([]bridge.ToolDescriptor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	out := make([]bridge.ToolDescriptor, len(c.server.descriptors))
	copy(out, c.server.descriptors)
	return out, nil
}

func (c *session) Invoke(ctx context.Context, tool string, args bridge.Args) (bridge.Result, error) {
	if err := c.check(); err != nil {
		return bridge.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return bridge.Result{}, err
	}

	c.server.mu.RLock()
	fn, ok := c.server.handlers[tool]
	c.server.mu.RUnlock()

	if !ok {
		return bridge.Result{}, &remote.RemoteError{Tool: tool, Message: "tool not found"}
	}

	res, err := fn(ctx, args)
	if err != nil {
		return bridge.Result{}, &remote.RemoteError{Tool: tool, Message: err.Error()}
	}
	return res, nil
}

func (c *session) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *session) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return remote.ErrDisconnected
	}
	return nil
}
