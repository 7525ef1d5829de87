package bridge

import (
	"context"
	"errors"
	"testing"
)

func noopTool(ctx context.Context, args Args) (Result, error) {
	return Result{Text: "ok"}, nil
}

func TestRegistry_RegisterNative(t *testing.T) {
	reg := NewRegistry()

	if err := reg.RegisterNative("get_time", "current time", Schema{"type": "object"}, noopTool); err != nil {
		t.Fatalf("RegisterNative() error = %v", err)
	}

	tool, ok := reg.Resolve("get_time")
	if !ok {
		t.Fatal("Resolve() should find registered tool")
	}
	if tool.Origin != OriginNative {
		t.Errorf("Origin = %q, want %q", tool.Origin, OriginNative)
	}
	if tool.Description != "current time" {
		t.Errorf("Description = %q", tool.Description)
	}
}

func TestRegistry_RegisterNative_Duplicate(t *testing.T) {
	reg := NewRegistry()

	if err := reg.RegisterNative("get_time", "first", nil, noopTool); err != nil {
		t.Fatalf("first RegisterNative() error = %v", err)
	}

	err := reg.RegisterNative("get_time", "second", nil, noopTool)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("second RegisterNative() error = %v, want ErrDuplicateName", err)
	}

	// The first registration must be unaffected.
	tool, _ := reg.Resolve("get_time")
	if tool.Description != "first" {
		t.Errorf("original tool was overwritten: Description = %q", tool.Description)
	}
}

func TestRegistry_RegisterNative_Validation(t *testing.T) {
	reg := NewRegistry()

	if err := reg.RegisterNative("", "d", nil, noopTool); err == nil {
		t.Error("empty name should be rejected")
	}
	if err := reg.RegisterNative("x", "d", nil, nil); err == nil {
		t.Error("nil function should be rejected")
	}
}

func TestRegistry_RegisterRemoteTools_Prefix(t *testing.T) {
	reg := NewRegistry()

	registered, failed := reg.RegisterRemoteTools("calc", "calc", []ToolDescriptor{
		{Name: "add", Description: "add two numbers"},
		{Name: "multiply", Description: "multiply two numbers"},
	})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if len(registered) != 2 {
		t.Fatalf("registered %d tools, want 2", len(registered))
	}

	tool, ok := reg.Resolve("calc_add")
	if !ok {
		t.Fatal("Resolve(calc_add) should succeed")
	}
	if tool.RemoteName != "add" {
		t.Errorf("RemoteName = %q, want %q", tool.RemoteName, "add")
	}
	if tool.ServerID != "calc" {
		t.Errorf("ServerID = %q, want %q", tool.ServerID, "calc")
	}
	if _, ok := reg.Resolve("add"); ok {
		t.Error("unprefixed name should not resolve")
	}
}

func TestRegistry_RegisterRemoteTools_NoPrefix(t *testing.T) {
	reg := NewRegistry()

	registered, failed := reg.RegisterRemoteTools("srv1", "", []ToolDescriptor{
		{Name: "lookup"},
	})
	if len(failed) != 0 || len(registered) != 1 {
		t.Fatalf("registered=%d failed=%d", len(registered), len(failed))
	}
	if registered[0].Name != "lookup" {
		t.Errorf("Name = %q, want bare descriptor name", registered[0].Name)
	}
}

func TestRegistry_CollisionFallsBackToServerID(t *testing.T) {
	reg := NewRegistry()

	if err := reg.RegisterNative("calc_add", "native add", nil, noopTool); err != nil {
		t.Fatal(err)
	}

	registered, failed := reg.RegisterRemoteTools("srv1", "calc", []ToolDescriptor{
		{Name: "add"},
	})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if registered[0].Name != "calc_add_srv1" {
		t.Fatalf("collision fallback name = %q, want calc_add_srv1", registered[0].Name)
	}

	// Both names resolve independently.
	if _, ok := reg.Resolve("calc_add"); !ok {
		t.Error("native tool lost after collision fallback")
	}
	if _, ok := reg.Resolve("calc_add_srv1"); !ok {
		t.Error("fallback name should resolve")
	}
}

func TestRegistry_UnresolvableCollision_FailsSingleDescriptor(t *testing.T) {
	reg := NewRegistry()

	// Occupy both the prefixed candidate and the server-id fallback.
	if err := reg.RegisterNative("calc_add", "", nil, noopTool); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterNative("calc_add_srv1", "", nil, noopTool); err != nil {
		t.Fatal(err)
	}

	registered, failed := reg.RegisterRemoteTools("srv1", "calc", []ToolDescriptor{
		{Name: "add"},      // unresolvable
		{Name: "multiply"}, // sibling must still succeed
	})

	if len(failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(failed))
	}
	if !errors.Is(failed[0], ErrUnresolvableCollision) {
		t.Errorf("failure = %v, want ErrUnresolvableCollision", failed[0])
	}
	if failed[0].Descriptor != "add" {
		t.Errorf("failed descriptor = %q, want add", failed[0].Descriptor)
	}

	if len(registered) != 1 || registered[0].Name != "calc_multiply" {
		t.Errorf("sibling descriptor should register as calc_multiply, got %v", registered)
	}
}

func TestRegistry_IntraBatchCollision(t *testing.T) {
	reg := NewRegistry()

	// Two servers contributing the same bare name: the second falls back.
	first, _ := reg.RegisterRemoteTools("alpha", "", []ToolDescriptor{{Name: "search"}})
	second, failed := reg.RegisterRemoteTools("beta", "", []ToolDescriptor{{Name: "search"}})

	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if first[0].Name != "search" || second[0].Name != "search_beta" {
		t.Errorf("names = %q, %q", first[0].Name, second[0].Name)
	}
}

func TestRegistry_ListAll_RegistrationOrder(t *testing.T) {
	reg := NewRegistry()

	reg.RegisterNative("zeta", "", nil, noopTool)
	reg.RegisterRemoteTools("srv", "s", []ToolDescriptor{{Name: "beta"}})
	reg.RegisterNative("alpha", "", nil, noopTool)

	want := []string{"zeta", "s_beta", "alpha"}
	all := reg.ListAll()
	if len(all) != len(want) {
		t.Fatalf("ListAll() len = %d, want %d", len(all), len(want))
	}
	seen := make(map[string]bool)
	for i, tool := range all {
		if tool.Name != want[i] {
			t.Errorf("ListAll()[%d] = %q, want %q", i, tool.Name, want[i])
		}
		if seen[tool.Name] {
			t.Errorf("duplicate name %q in ListAll()", tool.Name)
		}
		seen[tool.Name] = true
	}
}

func TestRegistry_UnregisterServer(t *testing.T) {
	reg := NewRegistry()

	reg.RegisterNative("get_time", "", nil, noopTool)
	reg.RegisterRemoteTools("calc", "calc", []ToolDescriptor{{Name: "add"}, {Name: "sub"}})
	reg.RegisterRemoteTools("web", "web", []ToolDescriptor{{Name: "fetch"}})

	removed := reg.UnregisterServer("calc")
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	if _, ok := reg.Resolve("calc_add"); ok {
		t.Error("calc_add should be gone")
	}
	if _, ok := reg.Resolve("calc_sub"); ok {
		t.Error("calc_sub should be gone")
	}
	if _, ok := reg.Resolve("get_time"); !ok {
		t.Error("native tool should survive")
	}
	if _, ok := reg.Resolve("web_fetch"); !ok {
		t.Error("other server's tool should survive")
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}
}

func TestRegistry_UnregisterServer_ThenReRegister(t *testing.T) {
	reg := NewRegistry()

	reg.RegisterRemoteTools("calc", "calc", []ToolDescriptor{{Name: "add"}})
	reg.UnregisterServer("calc")

	// The freed name must be reusable (explicit reconnect refresh path).
	registered, failed := reg.RegisterRemoteTools("calc", "calc", []ToolDescriptor{{Name: "add"}})
	if len(failed) != 0 || registered[0].Name != "calc_add" {
		t.Fatalf("re-register after unregister: registered=%v failed=%v", registered, failed)
	}
}
