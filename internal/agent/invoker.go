// Package agent handles LLM agent invocation for the ordering engine:
// routing, transport, and the best-effort parsing of agent output into
// dependency inferences and rank maps.
package agent

import (
	"context"
	"errors"
)

// ErrNoAgent indicates no agent could be resolved for a command. Callers
// treat this as degraded, not fatal: the agent step is skipped with a
// warning.
var ErrNoAgent = errors.New("no agent resolved for command")

// Request is the input to a single agent invocation.
type Request struct {
	// Input is the assembled prompt text.
	Input string
	// Metadata carries auxiliary context (command name, selection keys).
	// It is recorded, not interpreted.
	Metadata map[string]any
}

// Response is the final assembled agent output.
type Response struct {
	// Output is the complete response text.
	Output string
	// Adapter names the transport that produced the response.
	Adapter string
	// InputTokens and OutputTokens report usage for telemetry; zero when
	// the transport does not track usage.
	InputTokens  int64
	OutputTokens int64
}

// Chunk is one streamed fragment of agent output.
type Chunk struct {
	Output string
}

// Invoker executes an agent and returns its assembled output. The engine
// only consumes the final text; streaming never affects ordering.
type Invoker interface {
	Invoke(ctx context.Context, agentID string, req Request) (*Response, error)
}

// StreamInvoker is an optional extension that forwards partial output to a
// caller-supplied sink while the invocation runs.
type StreamInvoker interface {
	Invoker
	InvokeStream(ctx context.Context, agentID string, req Request, sink func(Chunk)) (*Response, error)
}

// Agent identifies a resolved agent.
type Agent struct {
	ID    string
	Slug  string
	Model string
}

// Router resolves which agent should serve a command, honoring per-command
// overrides.
type Router interface {
	ResolveAgentForCommand(workspace, commandName, overrideSlug string) (*Agent, error)
}
