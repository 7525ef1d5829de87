package bridge

import (
	"fmt"
	"sync"
)

// Registry holds the merged tool namespace. Names are unique at all times;
// registration order is preserved so the catalogue presented to a model API
// is deterministic.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// RegisterNative adds a locally-implemented tool under name. It returns
// ErrDuplicateName if the name is already taken; the existing entry is never
// overwritten.
func (r *Registry) RegisterNative(name, description string, schema Schema, fn NativeFunc) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if fn == nil {
		return fmt.Errorf("tool %q: function cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.tools[name]; taken {
		return fmt.Errorf("tool %q: %w", name, ErrDuplicateName)
	}

	r.insertLocked(&Tool{
		Name:        name,
		Description: description,
		Schema:      schema,
		Origin:      OriginNative,
		fn:          fn,
	})
	return nil
}

// RegisterRemoteTools merges a server's advertised descriptors into the
// catalogue. Each descriptor gets the candidate name prefix_name (or the bare
// name without a prefix); a collision falls back to candidate_serverID; a
// second collision fails that descriptor alone. The batch never aborts —
// registered tools and per-descriptor failures are reported side by side.
func (r *Registry) RegisterRemoteTools(serverID, prefix string, descriptors []ToolDescriptor) ([]Tool, []*DescriptorError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var registered []Tool
	var failed []*DescriptorError

	for _, desc := range descriptors {
		if desc.Name == "" {
			failed = append(failed, &DescriptorError{
				ServerID:   serverID,
				Descriptor: desc.Name,
				Err:        fmt.Errorf("descriptor name cannot be empty"),
			})
			continue
		}

		candidate := desc.Name
		if prefix != "" {
			candidate = prefix + "_" + desc.Name
		}
		if _, taken := r.tools[candidate]; taken {
			// Fallback: disambiguate with the server id. This is best
			// effort — a further collision is a reported failure, never a
			// silent rename or overwrite.
			candidate = candidate + "_" + serverID
			if _, taken := r.tools[candidate]; taken {
				failed = append(failed, &DescriptorError{
					ServerID:   serverID,
					Descriptor: desc.Name,
					Err:        ErrUnresolvableCollision,
				})
				continue
			}
		}

		tool := &Tool{
			Name:        candidate,
			Description: desc.Description,
			Schema:      desc.Schema,
			Origin:      OriginRemote,
			ServerID:    serverID,
			RemoteName:  desc.Name,
		}
		r.insertLocked(tool)
		registered = append(registered, *tool)
	}

	return registered, failed
}

// insertLocked adds a tool whose name has already been checked. A duplicate
// here means the collision policy was bypassed — a programming fault, not a
// recoverable condition.
func (r *Registry) insertLocked(t *Tool) {
	if _, taken := r.tools[t.Name]; taken {
		panic(fmt.Sprintf("bridge: duplicate insertion of tool %q", t.Name))
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Resolve returns the tool registered under name. Exact match only.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return Tool{}, false
	}
	return *t, true
}

// ListAll returns every registered tool in registration order.
func (r *Registry) ListAll() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.tools[name])
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// UnregisterServer removes every tool originating from serverID and returns
// how many were removed. Native tools and other servers' tools are untouched.
func (r *Registry) UnregisterServer(serverID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	kept := r.order[:0]
	for _, name := range r.order {
		t := r.tools[name]
		if t.Origin == OriginRemote && t.ServerID == serverID {
			delete(r.tools, name)
			removed++
			continue
		}
		kept = append(kept, name)
	}
	r.order = kept
	return removed
}
