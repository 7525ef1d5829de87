// Package bridge merges native tools and remote server tools into a single
// uniquely-named catalogue and dispatches invocations to the right backend.
package bridge

import "context"

// Origin identifies which backend owns a tool.
type Origin string

const (
	OriginNative Origin = "native"
	OriginRemote Origin = "remote"
)

// Schema is a JSON-Schema-like parameter description. The bridge passes it
// through opaquely; only the model API interprets it.
type Schema map[string]interface{}

// Args holds the structured arguments of a tool invocation.
type Args map[string]interface{}

// Result is the normalized outcome of a successful tool invocation,
// regardless of origin. Text is always set; Data carries an optional
// structured payload when the backend provides one.
type Result struct {
	Text string                 `json:"text"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// NativeFunc is a locally-implemented tool. Implementations must be safe for
// concurrent calls and should honor ctx cancellation if they block.
type NativeFunc func(ctx context.Context, args Args) (Result, error)

// Tool is one entry in the merged catalogue. Name is unique across the
// registry after collision resolution; RemoteName keeps the server's own
// (unprefixed) name for forwarding.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      Schema `json:"parameters,omitempty"`
	Origin      Origin `json:"origin"`
	ServerID    string `json:"server_id,omitempty"`
	RemoteName  string `json:"remote_name,omitempty"`

	fn NativeFunc
}

// ToolDescriptor is a raw tool advertisement from a remote server, before
// prefixing and collision resolution.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      Schema `json:"parameters,omitempty"`
}

// ServerState describes the connectivity of a remote server handle.
type ServerState string

const (
	StateConnecting   ServerState = "connecting"
	StateConnected    ServerState = "connected"
	StateDisconnected ServerState = "disconnected"
	StateFailed       ServerState = "failed"
)

// ServerHandle is the bridge's view of one connected remote server. The
// concrete implementation lives in internal/remote; the bridge only needs
// identity, connectivity, and invocation.
type ServerHandle interface {
	ID() string
	State() ServerState
	// Invoke forwards a call using the server's own (unprefixed) tool name.
	Invoke(ctx context.Context, remoteName string, args Args) (Result, error)
}
