// Package tools provides the action framework the reasoning engine can
// invoke mid-run: calendar operations and inter-agent messaging.
package tools

import (
	"context"
	"fmt"

	"github.com/parley-agents/parley/internal/llm"
)

// Tool is one action the reasoning engine may request.
type Tool interface {
	// Name returns the identifier used in tool calls.
	Name() string
	// Description returns a human-readable description for the engine.
	Description() string
	// Parameters returns the JSON Schema for the tool's arguments.
	Parameters() map[string]any
	// Execute runs the tool. Recoverable problems (conflicts, unknown
	// agents, timeouts) are returned as result text, not as errors, so
	// the engine can adapt.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds an agent's declared tool set. It is assembled once at
// startup and read-only afterwards.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is a wiring bug.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns registered tool names in registration order.
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns the declared action set for the engine.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs a tool by name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(ctx, args)
}

// GetString extracts a string argument, with a default for absent keys.
func GetString(args map[string]any, key, defaultVal string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an integer argument; JSON numbers arrive as float64.
func GetInt(args map[string]any, key string, defaultVal int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
