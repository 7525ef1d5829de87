package loopback

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fentz26/relay/internal/bridge"
	"github.com/fentz26/relay/internal/remote"
)

func calcServer() *Server {
	srv := NewServer()
	srv.Register(bridge.ToolDescriptor{Name: "add", Description: "add two numbers"}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		a, _ := args["a"].(float64)
		b, _ := args["b"].(float64)
		return bridge.Result{Text: fmt.Sprintf("%g", a+b)}, nil
	})
	srv.Register(bridge.ToolDescriptor{Name: "fail"}, func(ctx context.Context, args bridge.Args) (bridge.Result, error) {
		return bridge.Result{}, errors.New("arithmetic overflow")
	})
	return srv
}

func TestDialer(t *testing.T) {
	dialer := NewDialer()
	dialer.Add("loopback://calc", calcServer())

	session, err := dialer.Dial(context.Background(), remote.LaunchSpec{Endpoint: "loopback://calc"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "add" {
		t.Errorf("ListTools() = %v", tools)
	}

	res, err := session.Invoke(context.Background(), "add", bridge.Args{"a": float64(2), "b": float64(3)})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Text != "5" {
		t.Errorf("Text = %q, want 5", res.Text)
	}
}

func TestDialer_UnknownEndpoint(t *testing.T) {
	dialer := NewDialer()
	if _, err := dialer.Dial(context.Background(), remote.LaunchSpec{Endpoint: "loopback://missing"}); err == nil {
		t.Fatal("Dial() should fail for an unregistered endpoint")
	}
}

func TestSession_HandlerErrorBecomesRemoteError(t *testing.T) {
	dialer := NewDialer()
	dialer.Add("loopback://calc", calcServer())
	session, err := dialer.Dial(context.Background(), remote.LaunchSpec{Endpoint: "loopback://calc"})
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	_, err = session.Invoke(context.Background(), "fail", nil)
	var re *remote.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want *remote.RemoteError", err)
	}
	if re.Message != "arithmetic overflow" {
		t.Errorf("Message = %q", re.Message)
	}

	_, err = session.Invoke(context.Background(), "no_such_tool", nil)
	if !errors.As(err, &re) {
		t.Fatalf("unknown tool error = %v, want *remote.RemoteError", err)
	}
}

func TestSession_ClosedFailsWithDisconnected(t *testing.T) {
	dialer := NewDialer()
	dialer.Add("loopback://calc", calcServer())
	session, err := dialer.Dial(context.Background(), remote.LaunchSpec{Endpoint: "loopback://calc"})
	if err != nil {
		t.Fatal(err)
	}

	if err := session.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := session.ListTools(context.Background()); !errors.Is(err, remote.ErrDisconnected) {
		t.Errorf("ListTools after Close = %v, want ErrDisconnected", err)
	}
	if _, err := session.Invoke(context.Background(), "add", nil); !errors.Is(err, remote.ErrDisconnected) {
		t.Errorf("Invoke after Close = %v, want ErrDisconnected", err)
	}
}

func TestConnectThroughLoopback(t *testing.T) {
	dialer := NewDialer()
	dialer.Add("loopback://calc", calcServer())

	h, err := remote.Connect(context.Background(), dialer, "calc", remote.LaunchSpec{Endpoint: "loopback://calc"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer h.Close()

	if h.State() != bridge.StateConnected {
		t.Fatalf("State() = %q", h.State())
	}
	res, err := h.Invoke(context.Background(), "add", bridge.Args{"a": float64(1), "b": float64(2)})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Text != "3" {
		t.Errorf("Text = %q, want 3", res.Text)
	}
}
