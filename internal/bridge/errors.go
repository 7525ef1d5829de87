package bridge

import (
	"errors"
	"fmt"
)

// Sentinel registration errors.
var (
	ErrDuplicateName         = errors.New("duplicate tool name")
	ErrUnresolvableCollision = errors.New("unresolvable name collision")
	ErrServerExists          = errors.New("server already registered")
	ErrServerNotFound        = errors.New("server not registered")
)

// DescriptorError reports a single remote descriptor that could not be
// registered. Sibling descriptors in the same batch are unaffected.
type DescriptorError struct {
	ServerID   string
	Descriptor string
	Err        error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("register %q from server %q: %v", e.Descriptor, e.ServerID, e.Err)
}

func (e *DescriptorError) Unwrap() error { return e.Err }

// DispatchErrorKind classifies dispatch failures.
type DispatchErrorKind string

const (
	DispatchUnknownTool       DispatchErrorKind = "unknown_tool"
	DispatchServerUnavailable DispatchErrorKind = "server_unavailable"
	DispatchNativeError       DispatchErrorKind = "native_error"
	DispatchRemoteError       DispatchErrorKind = "remote_error"
	DispatchCancelled         DispatchErrorKind = "cancelled"
)

// DispatchError is the single error shape returned by Dispatch. Callers that
// feed errors back into a model conversation can use Error() verbatim;
// callers that branch should switch on Kind or use errors.Is on the wrapped
// cause.
type DispatchError struct {
	Kind     DispatchErrorKind
	Tool     string
	ServerID string
	Err      error
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case DispatchUnknownTool:
		return fmt.Sprintf("unknown tool %q", e.Tool)
	case DispatchServerUnavailable:
		return fmt.Sprintf("tool %q: server %q unavailable", e.Tool, e.ServerID)
	case DispatchCancelled:
		return fmt.Sprintf("tool %q: dispatch cancelled", e.Tool)
	case DispatchNativeError:
		return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
	default:
		return fmt.Sprintf("tool %q on server %q failed: %v", e.Tool, e.ServerID, e.Err)
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }

// AsDispatchError unwraps err into a *DispatchError if it is one.
func AsDispatchError(err error) (*DispatchError, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
