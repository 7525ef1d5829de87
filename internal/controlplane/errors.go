package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrToolNotFound   = errors.New("tool not found")
	ErrServerNotFound = errors.New("server not found")
	ErrServerExists   = errors.New("server already registered")
	ErrInvalidRequest = errors.New("invalid request")
)
