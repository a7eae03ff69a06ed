// Package negotiation runs the reasoning loop that turns an incoming
// message into a reply. The driver feeds the conversation to the
// reasoning engine, executes whatever tools it asks for, and streams
// progress events while outbound agent calls are in flight.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-agents/parley/internal/llm"
	"github.com/parley-agents/parley/internal/tools"
)

// ErrExhausted is returned when the engine keeps requesting tools past the
// turn ceiling without ever producing a final answer.
var ErrExhausted = errors.New("negotiation exhausted: turn ceiling reached")

// DefaultMaxTurns bounds how many engine round trips a single run may take.
const DefaultMaxTurns = 50

type EventKind string

const (
	// EventIntermediate marks progress inside a run: an outbound message to
	// a peer, or the peer's reply.
	EventIntermediate EventKind = "intermediate"
	// EventFinal carries the run's answer.
	EventFinal EventKind = "final"
)

// Event is one observable step of a negotiation run.
type Event struct {
	Kind EventKind
	From string
	To   string
	Text string
	At   time.Time
}

// Options configures a Driver.
type Options struct {
	AgentName    string
	Engine       llm.Client
	Registry     *tools.Registry
	SystemPrompt string
	MaxTurns     int
	Model        string
	Logger       *slog.Logger
}

// Driver owns the engine loop. One Driver serves an agent for its lifetime;
// each incoming message gets its own Run.
type Driver struct {
	agentName    string
	engine       llm.Client
	registry     *tools.Registry
	systemPrompt string
	maxTurns     int
	model        string
	logger       *slog.Logger
}

func NewDriver(opts Options) *Driver {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Model == "" {
		opts.Model = opts.Engine.DefaultModel()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{
		agentName:    opts.AgentName,
		engine:       opts.Engine,
		registry:     opts.Registry,
		systemPrompt: opts.SystemPrompt,
		maxTurns:     opts.MaxTurns,
		model:        opts.Model,
		logger:       opts.Logger,
	}
}

// correlation tracks in-flight outbound agent calls within one run, keyed
// by the engine's call id. Its size bounds concurrent outbound calls; an
// entry lives from request dispatch to result arrival.
type correlation struct {
	mu      sync.Mutex
	pending map[string]outboundCall
}

type outboundCall struct {
	target  string
	message string
}

func newCorrelation() *correlation {
	return &correlation{pending: make(map[string]outboundCall)}
}

func (c *correlation) insert(callID string, call outboundCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[callID] = call
}

func (c *correlation) remove(callID string) (outboundCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.pending[callID]
	delete(c.pending, callID)
	return call, ok
}

// Run is one in-flight negotiation. Consumers either drain Events and then
// call Result, or call Result directly; Result drains any unread events
// before reporting, so the run can never stall on an ignored channel.
type Run struct {
	events chan Event
	final  string
	err    error
}

// Events streams progress in emission order. The channel closes when the
// run finishes.
func (r *Run) Events() <-chan Event { return r.events }

// Result blocks until the run finishes and returns its answer.
func (r *Run) Result() (string, error) {
	for range r.events {
	}
	return r.final, r.err
}

func (r *Run) emit(ev Event) {
	ev.At = time.Now().UTC()
	r.events <- ev
}

// Start begins a run for one incoming message. sender is the name of
// whoever sent it, a human trigger or a peer agent.
func (d *Driver) Start(ctx context.Context, input, sender string) *Run {
	run := &Run{events: make(chan Event, 256)}
	go d.loop(ctx, run, input, sender)
	return run
}

func (d *Driver) loop(ctx context.Context, run *Run, input, sender string) {
	defer close(run.events)

	messages := []llm.Message{
		llm.NewSystemMessage(d.systemPrompt),
		llm.NewUserMessage(fmt.Sprintf("Sender: %s\n%s", sender, input)),
	}
	defs := d.registry.Definitions()
	calls := newCorrelation()

	for turn := 0; turn < d.maxTurns; turn++ {
		resp, err := d.engine.Chat(ctx, &llm.ChatRequest{
			Messages: messages,
			Tools:    defs,
			Model:    d.model,
		})
		if err != nil {
			d.logger.Error("reasoning engine call failed", "agent", d.agentName, "turn", turn, "error", err)
			run.err = fmt.Errorf("reasoning engine failure: %w", err)
			return
		}

		if len(resp.ToolCalls) == 0 {
			run.final = resp.Content
			run.emit(Event{Kind: EventFinal, From: d.agentName, To: sender, Text: resp.Content})
			d.logger.Info("negotiation completed", "agent", d.agentName, "turns", turn+1)
			return
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		results := d.dispatch(ctx, run, calls, resp.ToolCalls)
		for i, call := range resp.ToolCalls {
			messages = append(messages, llm.NewToolResultMessage(call.ID, results[i]))
		}
	}

	d.logger.Warn("negotiation exhausted", "agent", d.agentName, "max_turns", d.maxTurns)
	run.err = ErrExhausted
}

// dispatch runs the turn's tool calls concurrently so sibling agent calls
// overlap, then hands results back in request order for the transcript.
func (d *Driver) dispatch(ctx context.Context, run *Run, corr *correlation, toolCalls []llm.ToolCall) []string {
	results := make([]string, len(toolCalls))
	var wg sync.WaitGroup
	for i, call := range toolCalls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = d.execute(ctx, run, corr, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (d *Driver) execute(ctx context.Context, run *Run, corr *correlation, call llm.ToolCall) string {
	outbound := call.Name == tools.SendMessageToolName
	if outbound {
		out := outboundCall{
			target:  tools.GetString(call.Arguments, "agent_name", ""),
			message: tools.GetString(call.Arguments, "message", ""),
		}
		corr.insert(call.ID, out)
		run.emit(Event{Kind: EventIntermediate, From: d.agentName, To: out.target, Text: out.message})
	}

	d.logger.Debug("executing tool", "agent", d.agentName, "tool", call.Name)
	result, err := d.registry.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		// Tool failures stay inside the loop as result text so the engine
		// can adjust instead of killing the run.
		d.logger.Warn("tool execution failed", "agent", d.agentName, "tool", call.Name, "error", err)
		result = fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}

	if outbound {
		if out, ok := corr.remove(call.ID); ok {
			run.emit(Event{Kind: EventIntermediate, From: out.target, To: d.agentName, Text: result})
		}
	}
	return result
}
