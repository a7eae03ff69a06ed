package llm

import "context"

// Client is the reasoning engine seen from the negotiation driver. Given
// the conversation so far and the declared tool set, it returns either
// tool calls to execute or a terminal answer.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	DefaultModel() string
}
