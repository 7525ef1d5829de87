package orchestrate

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations caps how many model turns one Run may take.
func WithMaxIterations(n int) Option {
	return func(l *Loop) { l.maxIterations = n }
}

// WithErrorLimit sets how many fully-failed tool batches in a row abort the
// loop.
func WithErrorLimit(n int) Option {
	return func(l *Loop) { l.errorLimit = n }
}

// WithMaxParallel bounds how many tool calls from one batch run concurrently.
func WithMaxParallel(n int) Option {
	return func(l *Loop) { l.maxParallel = n }
}

// WithSystemPrompt sets the system prompt passed to the provider.
func WithSystemPrompt(p string) Option {
	return func(l *Loop) { l.systemPrompt = p }
}

// Loop drives a multi-turn conversation: the model requests tool calls, the
// dispatcher runs them, and their results go back into the conversation until
// the model answers in plain text.
type Loop struct {
	provider   Provider
	dispatcher Dispatcher

	maxIterations int
	errorLimit    int
	maxParallel   int
	systemPrompt  string
}

// Metrics tracks one Run.
type Metrics struct {
	Iterations      int
	ToolCalls       int
	SuccessCount    int
	ErrorCount      int
	ParallelBatches int
	Duration        time.Duration
}

// callResult holds the outcome of a single tool call executed in parallel.
type callResult struct {
	call ToolCall
	text string
	err  error
}

// NewLoop creates a conversation loop.
func NewLoop(provider Provider, dispatcher Dispatcher, opts ...Option) *Loop {
	l := &Loop{
		provider:      provider,
		dispatcher:    dispatcher,
		maxIterations: 10,
		errorLimit:    3,
		maxParallel:   5,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes one user message to completion and returns the model's final
// text answer.
func (l *Loop) Run(ctx context.Context, userMessage string) (string, *Metrics, error) {
	start := time.Now()
	metrics := &Metrics{}

	tools := l.toolSchemas()
	messages := []ChatMessage{
		{Role: "user", Content: userMessage},
	}

	consecutiveErrors := 0
	var finalContent string
	needsSummary := false

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		metrics.Iterations++

		resp, err := l.provider.Chat(ctx, ChatRequest{
			SystemPrompt: l.systemPrompt,
			Messages:     messages,
			Tools:        tools,
		})
		if err != nil {
			return "", metrics, fmt.Errorf("chat (iteration %d): %w", iteration, err)
		}

		assistantMsg := ChatMessage{Role: "assistant", Content: resp.Content}
		if len(resp.ToolCalls) > 0 {
			assistantMsg.ToolCalls = resp.ToolCalls
		}
		messages = append(messages, assistantMsg)

		// No tool calls means the model produced its final answer.
		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break
		}

		results := l.runBatch(ctx, resp.ToolCalls)
		if len(resp.ToolCalls) > 1 {
			metrics.ParallelBatches++
		}

		// Fan-in results in original call order. A failed call becomes an
		// error message the model can react to; it never aborts the run.
		batchAllFailed := true
		for _, res := range results {
			metrics.ToolCalls++

			content := res.text
			if res.err != nil {
				metrics.ErrorCount++
				content = fmt.Sprintf("Error executing %s: %v", res.call.Name, res.err)
			} else {
				metrics.SuccessCount++
				batchAllFailed = false
			}

			messages = append(messages, ChatMessage{
				Role:       "tool",
				ToolCallID: res.call.ID,
				Content:    content,
			})
		}

		if batchAllFailed {
			consecutiveErrors++
			if consecutiveErrors >= l.errorLimit {
				metrics.Duration = time.Since(start)
				return "", metrics, fmt.Errorf("too many consecutive errors (%d)", consecutiveErrors)
			}
		} else {
			consecutiveErrors = 0
		}

		if iteration == l.maxIterations-1 {
			needsSummary = true
		}
	}

	// The loop ran out of iterations with tool results at the tail, or the
	// model never produced text. One more call turns that into an answer.
	if needsSummary || finalContent == "" {
		log.Printf("making summary call: max_iterations=%v empty_content=%v", needsSummary, finalContent == "")
		resp, err := l.provider.Chat(ctx, ChatRequest{
			SystemPrompt: l.systemPrompt,
			Messages:     messages,
			Tools:        tools,
		})
		if err != nil {
			metrics.Duration = time.Since(start)
			return "", metrics, fmt.Errorf("summary chat: %w", err)
		}
		finalContent = resp.Content
	}

	metrics.Duration = time.Since(start)
	return finalContent, metrics, nil
}

// runBatch executes a batch of tool calls and returns results in the original
// call order. A single call takes the fast path with no goroutine overhead.
func (l *Loop) runBatch(ctx context.Context, calls []ToolCall) []callResult {
	results := make([]callResult, len(calls))

	if len(calls) == 1 {
		res, err := l.dispatcher.Dispatch(ctx, calls[0].Name, calls[0].Arguments)
		results[0] = callResult{call: calls[0], text: res.Text, err: err}
		return results
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxParallel)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				results[i] = callResult{call: call, err: gCtx.Err()}
				return nil
			default:
			}
			res, err := l.dispatcher.Dispatch(gCtx, call.Name, call.Arguments)
			// Store at pre-allocated index; each goroutine owns its slot.
			results[i] = callResult{call: call, text: res.Text, err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// toolSchemas builds the catalogue advertisement for the provider.
func (l *Loop) toolSchemas() []ToolSchema {
	tools := l.dispatcher.ListTools()
	schemas := make([]ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema,
		})
	}
	return schemas
}
