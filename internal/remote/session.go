// Package remote manages connections to external tool servers: launching or
// dialing them, snapshotting their advertised tools, and forwarding
// invocations. The wire protocol itself lives behind the Dialer and Session
// interfaces so the rest of the system never touches transport details.
package remote

import (
	"context"

	"github.com/fentz26/relay/internal/bridge"
)

// LaunchSpec describes how to reach a tool server. Either Command (a process
// to spawn) or Endpoint (an address to dial) is set, depending on the dialer.
type LaunchSpec struct {
	Command  string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args     []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Endpoint string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// Session is one live connection to a tool server.
type Session interface {
	// ListTools returns the server's advertised tool descriptors.
	ListTools(ctx context.Context) ([]bridge.ToolDescriptor, error)
	// Invoke executes a tool by its server-side name.
	Invoke(ctx context.Context, tool string, args bridge.Args) (bridge.Result, error)
	// Close tears the connection down. Further calls fail with ErrDisconnected.
	Close() error
}

// Dialer establishes sessions from launch specs.
type Dialer interface {
	Dial(ctx context.Context, spec LaunchSpec) (Session, error)
}
