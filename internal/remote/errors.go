package remote

import (
	"errors"
	"fmt"
)

// Sentinel invocation errors.
var (
	// ErrTimeout marks an invocation that ran out of time.
	ErrTimeout = errors.New("invocation timed out")
	// ErrDisconnected marks a call against a session that is gone.
	ErrDisconnected = errors.New("server disconnected")
)

// RemoteError carries a failure the server itself reported for a tool call.
// The connection is still healthy; only this invocation failed.
type RemoteError struct {
	Tool    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote tool %q: %s", e.Tool, e.Message)
}

// ConnectionError reports a failed connection attempt to a server.
type ConnectionError struct {
	ServerID string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to server %q: %v", e.ServerID, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
