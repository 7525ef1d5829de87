package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fentz26/relay/internal/bridge"
)

// Handle is one remote server as seen by the rest of the system. It owns the
// session, tracks connectivity, and keeps the tool snapshot taken at connect
// time. The snapshot never refreshes on its own; a changed server is picked
// up only by an explicit reconnect.
type Handle struct {
	id   string
	spec LaunchSpec

	mu          sync.RWMutex
	state       bridge.ServerState
	session     Session
	tools       []bridge.ToolDescriptor
	connectedAt time.Time
	lastErr     error
}

// Connect dials the server described by spec, lists its tools, and returns a
// connected handle. On any failure the partial session is torn down and a
// *ConnectionError is returned; nothing is registered anywhere.
func Connect(ctx context.Context, dialer Dialer, id string, spec LaunchSpec) (*Handle, error) {
	if id == "" {
		return nil, &ConnectionError{ServerID: id, Err: fmt.Errorf("server id cannot be empty")}
	}

	session, err := dialer.Dial(ctx, spec)
	if err != nil {
		return nil, &ConnectionError{ServerID: id, Err: err}
	}

	tools, err := session.ListTools(ctx)
	if err != nil {
		session.Close()
		return nil, &ConnectionError{ServerID: id, Err: fmt.Errorf("listing tools: %w", err)}
	}

	return &Handle{
		id:          id,
		spec:        spec,
		state:       bridge.StateConnected,
		session:     session,
		tools:       tools,
		connectedAt: time.Now().UTC(),
	}, nil
}

// ID returns the server identifier.
func (h *Handle) ID() string { return h.id }

// Spec returns the launch spec the handle was connected with.
func (h *Handle) Spec() LaunchSpec { return h.spec }

// State returns the current connectivity state.
func (h *Handle) State() bridge.ServerState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// ConnectedAt returns when the session was established.
func (h *Handle) ConnectedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connectedAt
}

// LastError returns the error that moved the handle out of the connected
// state, if any.
func (h *Handle) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// Tools returns a copy of the descriptor snapshot taken at connect time.
func (h *Handle) Tools() []bridge.ToolDescriptor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]bridge.ToolDescriptor, len(h.tools))
	copy(out, h.tools)
	return out
}

// Invoke forwards a call to the server using its own tool name. A transport
// loss marks the handle failed; a server-reported tool error leaves the
// connection healthy.
func (h *Handle) Invoke(ctx context.Context, remoteName string, args bridge.Args) (bridge.Result, error) {
	h.mu.RLock()
	state := h.state
	session := h.session
	h.mu.RUnlock()

	if state != bridge.StateConnected {
		return bridge.Result{}, fmt.Errorf("server %q: %w", h.id, ErrDisconnected)
	}

	res, err := session.Invoke(ctx, remoteName, args)
	if err != nil {
		if errors.Is(err, ErrDisconnected) {
			h.markFailed(err)
			return bridge.Result{}, fmt.Errorf("server %q: %w", h.id, ErrDisconnected)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return bridge.Result{}, fmt.Errorf("server %q tool %q: %w", h.id, remoteName, ErrTimeout)
		}
		return bridge.Result{}, err
	}
	return res, nil
}

// Close tears the session down and moves the handle to disconnected. It is
// terminal: a fresh handle comes from a new Connect, never from this one.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == bridge.StateDisconnected {
		return nil
	}
	h.state = bridge.StateDisconnected

	if h.session == nil {
		return nil
	}
	err := h.session.Close()
	h.session = nil
	return err
}

func (h *Handle) markFailed(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == bridge.StateConnected {
		h.state = bridge.StateFailed
		h.lastErr = err
	}
}
