package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessageBlocking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		assert.NotContains(t, r.Header.Get("Accept"), "text/event-stream")
		json.NewEncoder(w).Encode(Task{
			TaskID: "t1", State: TaskStateCompleted, Result: "sounds good",
		})
	}))
	defer srv.Close()

	task, err := NewClient(srv.URL).SendMessage(context.Background(), "hi", "user")
	require.NoError(t, err)
	assert.Equal(t, "sounds good", task.Result)
}

func TestSendMessageFailedTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(Task{
			TaskID: "t1", State: TaskStateFailed, Error: "negotiation exhausted: turn ceiling reached",
		})
	}))
	defer srv.Close()

	task, err := NewClient(srv.URL).SendMessage(context.Background(), "hi", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negotiation exhausted")
	require.NotNil(t, task)
	assert.Equal(t, TaskStateFailed, task.State)
}

func TestSendMessageStreamParsesUpdates(t *testing.T) {
	updates := []StatusUpdate{
		{TaskID: "t1", UpdateID: "intermediate-person_a-person_b-1", State: TaskStateWorking, From: "person_a", To: "person_b", Text: "free Tuesday?"},
		{TaskID: "t1", UpdateID: "intermediate-person_b-person_a-1", State: TaskStateWorking, From: "person_b", To: "person_a", Text: "yes"},
		{TaskID: "t1", UpdateID: "final-person_a-user", State: TaskStateCompleted, From: "person_a", To: "user", Text: "booked", Final: true},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Accept"), "text/event-stream")
		w.Header().Set("Content-Type", "text/event-stream")
		for _, u := range updates {
			data, _ := json.Marshal(u)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
	}))
	defer srv.Close()

	var seen []StatusUpdate
	final, err := NewClient(srv.URL).SendMessageStream(context.Background(), "hi", "user",
		func(u StatusUpdate) { seen = append(seen, u) })
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, "free Tuesday?", seen[0].Text)
	assert.Equal(t, "[person_a -> person_b]", seen[0].FromTo())
	require.NotNil(t, final)
	assert.Equal(t, "booked", final.Text)
	assert.True(t, final.Final)
}

func TestSendMessageStreamFailedTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		data, _ := json.Marshal(StatusUpdate{
			TaskID: "t1", UpdateID: "final-person_a-user",
			State: TaskStateFailed, Text: "reasoning engine failure: boom", Final: true,
		})
		fmt.Fprintf(w, "data: %s\n\n", data)
	}))
	defer srv.Close()

	final, err := NewClient(srv.URL).SendMessageStream(context.Background(), "hi", "user", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reasoning engine failure")
	require.NotNil(t, final)
	assert.Equal(t, TaskStateFailed, final.State)
}

func TestSendMessageStreamTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		data, _ := json.Marshal(StatusUpdate{TaskID: "t1", State: TaskStateWorking})
		fmt.Fprintf(w, "data: %s\n\n", data)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SendMessageStream(context.Background(), "hi", "user", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream closed before terminal update")
}

func TestSendMessageTransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.SendMessage(context.Background(), "hi", "user")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "transport failure")
}

func TestTerminalState(t *testing.T) {
	assert.False(t, TerminalState(TaskStateSubmitted))
	assert.False(t, TerminalState(TaskStateWorking))
	assert.True(t, TerminalState(TaskStateCompleted))
	assert.True(t, TerminalState(TaskStateFailed))
}
