package tools

import (
	"context"
	"fmt"
	"strings"
)

// SendMessageToolName is special-cased by the negotiation driver so it can
// publish progress updates around outbound calls.
const SendMessageToolName = "send_message_to_agent"

// AgentCaller delivers a message to another agent and blocks for the reply.
type AgentCaller interface {
	Call(ctx context.Context, target, message string) (string, error)
}

// RegisterOrchestrationTools wires the inter-agent tools. Only agents with
// known peers get these.
func RegisterOrchestrationTools(r *Registry, caller AgentCaller, peers []string) error {
	if err := r.Register(&sendMessageTool{caller: caller}); err != nil {
		return err
	}
	return r.Register(&listAgentsTool{peers: peers})
}

type sendMessageTool struct {
	caller AgentCaller
}

func (t *sendMessageTool) Name() string { return SendMessageToolName }

func (t *sendMessageTool) Description() string {
	return "Send a message to another person's agent and wait for their reply."
}

func (t *sendMessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": map[string]any{"type": "string", "description": "Name of the agent to contact"},
			"message":    map[string]any{"type": "string", "description": "The message to send"},
		},
		"required": []string{"agent_name", "message"},
	}
}

func (t *sendMessageTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	target := GetString(args, "agent_name", "")
	message := GetString(args, "message", "")
	reply, err := t.caller.Call(ctx, target, message)
	if err != nil {
		// Recoverable for the reasoning loop: surface the failure as the
		// tool result so the engine can pick another agent or give up.
		return fmt.Sprintf("Failed to contact %s: %v", target, err), nil
	}
	return reply, nil
}

type listAgentsTool struct {
	peers []string
}

func (t *listAgentsTool) Name() string { return "list_available_agents" }

func (t *listAgentsTool) Description() string {
	return "List the other agents I can contact."
}

func (t *listAgentsTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *listAgentsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if len(t.peers) == 0 {
		return "No other agents are known.", nil
	}
	return "Known agents: " + strings.Join(t.peers, ", "), nil
}
