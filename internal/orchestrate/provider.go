// Package orchestrate runs the model conversation loop that turns tool calls
// from a chat model into dispatched invocations and feeds the results back.
package orchestrate

import (
	"context"

	"github.com/fentz26/relay/internal/bridge"
)

// ChatMessage is one turn in a model conversation.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Arguments bridge.Args `json:"arguments"`
}

// ToolSchema advertises one tool to the model.
type ToolSchema struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  bridge.Schema `json:"parameters,omitempty"`
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Messages     []ChatMessage `json:"messages"`
	Tools        []ToolSchema  `json:"tools,omitempty"`
}

// ChatResponse is a chat completion response. ToolCalls is empty when the
// model produced a final text answer.
type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Provider is a chat model backend capable of function calling.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Dispatcher routes tool invocations. The control plane service satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args bridge.Args) (bridge.Result, error)
	ListTools() []bridge.Tool
}
