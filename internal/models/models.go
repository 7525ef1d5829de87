// Package models defines the core domain types for Relay.
package models

import "time"

// InvocationStatus represents the outcome of a dispatched tool call.
type InvocationStatus string

const (
	InvocationStatusOK    InvocationStatus = "ok"
	InvocationStatusError InvocationStatus = "error"
)

// InvocationRecord is the audit record of one dispatched tool call.
type InvocationRecord struct {
	ID         string           `json:"id"`
	Tool       string           `json:"tool"`
	Origin     string           `json:"origin"`
	ServerID   string           `json:"server_id,omitempty"`
	ArgsHash   string           `json:"args_hash"`
	Status     InvocationStatus `json:"status"`
	ErrorKind  string           `json:"error_kind,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	StartedAt  time.Time        `json:"started_at"`
}

// ServerRecord tracks the lifecycle of a registered tool server.
type ServerRecord struct {
	ID          string     `json:"id"`
	Prefix      string     `json:"prefix,omitempty"`
	State       string     `json:"state"`
	ToolCount   int        `json:"tool_count"`
	LastError   string     `json:"last_error,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
