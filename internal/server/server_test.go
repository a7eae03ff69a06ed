package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-agents/parley/internal/calendar"
	"github.com/parley-agents/parley/internal/channel"
	"github.com/parley-agents/parley/internal/directory"
	"github.com/parley-agents/parley/internal/llm"
	"github.com/parley-agents/parley/internal/negotiation"
	"github.com/parley-agents/parley/internal/relay"
	"github.com/parley-agents/parley/internal/tools"
	"github.com/parley-agents/parley/pkg/api"
)

type scriptedEngine struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	err       error
}

func (e *scriptedEngine) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	if len(e.responses) == 0 {
		return &llm.ChatResponse{Content: "done"}, nil
	}
	resp := e.responses[0]
	e.responses = e.responses[1:]
	return resp, nil
}

func (e *scriptedEngine) DefaultModel() string { return "test-model" }

// newAgent assembles a full agent and serves it over httptest.
func newAgent(t *testing.T, name string, engine llm.Client, peers map[string]string) (*httptest.Server, *calendar.Store) {
	t.Helper()

	store, err := calendar.Open(filepath.Join(t.TempDir(), "calendar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterCalendarTools(registry, store))

	dir := directory.New(peers)
	if len(peers) > 0 {
		ch := channel.New(dir, name, 5*time.Second, nil)
		require.NoError(t, tools.RegisterOrchestrationTools(registry, ch, dir.List()))
	}

	driver := negotiation.NewDriver(negotiation.Options{
		AgentName:    name,
		Engine:       engine,
		Registry:     registry,
		SystemPrompt: "You are a scheduling assistant.",
		MaxTurns:     10,
	})

	s := New(Options{
		AgentName: name,
		Version:   "test-build",
		Driver:    driver,
		Relay:     relay.New(name, relay.NewMemoryStore(), nil, nil),
		Directory: dir,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func postMessage(t *testing.T, url, message, sender string) *api.Task {
	t.Helper()
	body, err := json.Marshal(api.MessageRequest{Message: message, Sender: sender})
	require.NoError(t, err)
	resp, err := http.Post(url+"/messages", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var task api.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	return &task
}

func TestMessageBlocking(t *testing.T) {
	engine := &scriptedEngine{responses: []*llm.ChatResponse{
		{Content: "Tuesday at 10:00 works."},
	}}
	srv, _ := newAgent(t, "person_a", engine, nil)

	task := postMessage(t, srv.URL, "Can we meet Tuesday?", "user")
	assert.Equal(t, api.TaskStateCompleted, task.State)
	assert.Equal(t, "Tuesday at 10:00 works.", task.Result)
	require.Len(t, task.Updates, 1)
	assert.True(t, task.Updates[0].Final)
}

func TestMessageBlockingFailedRun(t *testing.T) {
	engine := &scriptedEngine{err: errors.New("api quota exceeded")}
	srv, _ := newAgent(t, "person_a", engine, nil)

	body, err := json.Marshal(api.MessageRequest{Message: "hello", Sender: "user"})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/messages", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	// A failed run is a server-side failure on the wire, with the task
	// record still in the body.
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var task api.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	assert.Equal(t, api.TaskStateFailed, task.State)
	assert.Contains(t, task.Error, "reasoning engine failure")
	require.Len(t, task.Updates, 1)
	assert.True(t, task.Updates[0].Final)
}

func TestMessageEmptyBody(t *testing.T) {
	srv, _ := newAgent(t, "person_a", &scriptedEngine{}, nil)

	resp, err := http.Post(srv.URL+"/messages", "application/json",
		bytes.NewReader([]byte(`{"message":"  "}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTask(t *testing.T) {
	engine := &scriptedEngine{responses: []*llm.ChatResponse{{Content: "ok"}}}
	srv, _ := newAgent(t, "person_a", engine, nil)

	task := postMessage(t, srv.URL, "hello", "user")

	resp, err := http.Get(srv.URL + "/tasks/" + task.TaskID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched api.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	assert.Equal(t, task.TaskID, fetched.TaskID)
	assert.Equal(t, api.TaskStateCompleted, fetched.State)
}

func TestGetTaskNotFound(t *testing.T) {
	srv, _ := newAgent(t, "person_a", &scriptedEngine{}, nil)

	resp, err := http.Get(srv.URL + "/tasks/unknown-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelTaskRejected(t *testing.T) {
	srv, _ := newAgent(t, "person_a", &scriptedEngine{}, nil)

	resp, err := http.Post(srv.URL+"/tasks/some-id/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "not supported")
}

func TestAgentCard(t *testing.T) {
	srv, _ := newAgent(t, "person_a", &scriptedEngine{},
		map[string]string{"person_b": "http://localhost:10002"})

	resp, err := http.Get(srv.URL + "/.well-known/agent.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card api.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "person_a", card.Name)
	assert.Equal(t, "test-build", card.Version)
	assert.True(t, card.Capabilities.Streaming)
	require.Len(t, card.Skills, 2)
	assert.Equal(t, "negotiation", card.Skills[1].ID)
}

func TestAgentCardWithoutPeers(t *testing.T) {
	srv, _ := newAgent(t, "person_a", &scriptedEngine{}, nil)

	resp, err := http.Get(srv.URL + "/.well-known/agent.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var card api.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "scheduling", card.Skills[0].ID)
}

func TestHealth(t *testing.T) {
	srv, _ := newAgent(t, "person_a", &scriptedEngine{}, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMessageStreaming(t *testing.T) {
	engine := &scriptedEngine{responses: []*llm.ChatResponse{
		{Content: "Tuesday at 10:00 works."},
	}}
	srv, _ := newAgent(t, "person_a", engine, nil)

	client := api.NewClient(srv.URL)
	var updates []api.StatusUpdate
	final, err := client.SendMessageStream(context.Background(), "Can we meet Tuesday?", "user",
		func(u api.StatusUpdate) { updates = append(updates, u) })
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.True(t, final.Final)
	assert.Equal(t, api.TaskStateCompleted, final.State)
	assert.Equal(t, "Tuesday at 10:00 works.", final.Text)
	require.Len(t, updates, 1)
}

// Two live agents: person_a's engine asks person_b about a slot, hears it is
// free, books it locally, and answers.
func TestTwoAgentNegotiation(t *testing.T) {
	engineB := &scriptedEngine{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:   "b1",
			Name: "check_availability",
			Arguments: map[string]any{
				"date": "2026-09-01", "start_time": "09:00", "end_time": "09:30",
			},
		}}},
		{Content: "Yes, 09:00-09:30 on 2026-09-01 works for me."},
	}}
	srvB, storeB := newAgent(t, "person_b", engineB, nil)

	// person_b already has a conflicting meeting later that morning.
	_, err := storeB.Book(context.Background(), calendar.Booking{
		Title: "standup", Date: "2026-09-01", Start: "10:00", End: "10:30",
	})
	require.NoError(t, err)

	engineA := &scriptedEngine{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:   "a1",
			Name: tools.SendMessageToolName,
			Arguments: map[string]any{
				"agent_name": "person_b",
				"message":    "Is 09:00-09:30 on 2026-09-01 free for you?",
			},
		}}},
		{ToolCalls: []llm.ToolCall{{
			ID:   "a2",
			Name: "book_meeting",
			Arguments: map[string]any{
				"title": "sync with person_b", "date": "2026-09-01",
				"start_time": "09:00", "end_time": "09:30",
				"attendees": "person_a;person_b",
			},
		}}},
		{Content: "Booked a sync with person_b on 2026-09-01 09:00-09:30."},
	}}
	srvA, storeA := newAgent(t, "person_a", engineA,
		map[string]string{"person_b": srvB.URL})

	task := postMessage(t, srvA.URL, "Set up a 30 minute sync with person_b.", "user")

	assert.Equal(t, api.TaskStateCompleted, task.State)
	assert.Equal(t, "Booked a sync with person_b on 2026-09-01 09:00-09:30.", task.Result)

	// The conversation with person_b produced two intermediate updates.
	require.Len(t, task.Updates, 3)
	assert.Equal(t, "intermediate-person_a-person_b-1", task.Updates[0].UpdateID)
	assert.Equal(t, "Is 09:00-09:30 on 2026-09-01 free for you?", task.Updates[0].Text)
	assert.Equal(t, "intermediate-person_b-person_a-1", task.Updates[1].UpdateID)
	assert.Equal(t, "Yes, 09:00-09:30 on 2026-09-01 works for me.", task.Updates[1].Text)
	assert.True(t, task.Updates[2].Final)

	// The meeting landed on person_a's calendar.
	events, err := storeA.Events(context.Background(), "2026-09-01")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sync with person_b", events[0].Title)
	assert.Equal(t, "09:00", events[0].Start)
}
