// Package api defines the wire protocol spoken between parley agents and
// their clients, plus an HTTP client for it.
package api

import "time"

// Task states. Submitted and Working are live; Completed and Failed are
// terminal and never transition out.
const (
	TaskStateSubmitted = "submitted"
	TaskStateWorking   = "working"
	TaskStateCompleted = "completed"
	TaskStateFailed    = "failed"
)

// TerminalState reports whether a task state admits no further updates.
func TerminalState(state string) bool {
	return state == TaskStateCompleted || state == TaskStateFailed
}

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

// StatusUpdate is one progress marker of a task. Exactly one update per
// task has Final=true; its State is completed or failed.
type StatusUpdate struct {
	TaskID   string    `json:"task_id"`
	UpdateID string    `json:"update_id"`
	State    string    `json:"state"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	Text     string    `json:"text,omitempty"`
	Final    bool      `json:"final"`
	At       time.Time `json:"at"`
}

// FromTo renders the display tag used by human-facing clients.
func (u StatusUpdate) FromTo() string {
	return "[" + u.From + " -> " + u.To + "]"
}

// Task is one negotiation run as seen from outside.
type Task struct {
	TaskID    string         `json:"task_id"`
	State     string         `json:"state"`
	Input     string         `json:"input"`
	Sender    string         `json:"sender"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Updates   []StatusUpdate `json:"updates,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AgentCard is the self-description served at /.well-known/agent.json.
type AgentCard struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	URL          string            `json:"url"`
	Version      string            `json:"version"`
	Capabilities AgentCapabilities `json:"capabilities"`
	Skills       []AgentSkill      `json:"skills,omitempty"`
}

// AgentCapabilities advertises protocol features.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"push_notifications"`
}

// AgentSkill describes one thing an agent can be asked to do.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// ErrorResponse is the JSON body of non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
