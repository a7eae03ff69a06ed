package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-agents/parley/internal/directory"
	"github.com/parley-agents/parley/pkg/api"
)

func TestCallResolvesAndReturnsResult(t *testing.T) {
	var gotReq api.MessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(api.Task{
			TaskID: "t1",
			State:  api.TaskStateCompleted,
			Result: "Tuesday at 10:00 works.",
		})
	}))
	defer srv.Close()

	dir := directory.New(map[string]string{"person_b": srv.URL})
	ch := New(dir, "person_a", time.Second, slog.Default())

	reply, err := ch.Call(context.Background(), "person_b", "Can we meet Tuesday?")
	require.NoError(t, err)
	assert.Equal(t, "Tuesday at 10:00 works.", reply)
	assert.Equal(t, "Can we meet Tuesday?", gotReq.Message)
	assert.Equal(t, "person_a", gotReq.Sender)
}

func TestCallUnknownAgent(t *testing.T) {
	dir := directory.New(map[string]string{"person_b": "http://localhost:10002"})
	ch := New(dir, "person_a", time.Second, slog.Default())

	_, err := ch.Call(context.Background(), "person_z", "hello")
	assert.ErrorIs(t, err, directory.ErrUnknownAgent)
}

func TestCallRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.Task{
			TaskID: "t1",
			State:  api.TaskStateFailed,
			Error:  "reasoning engine failure",
		})
	}))
	defer srv.Close()

	dir := directory.New(map[string]string{"person_b": srv.URL})
	ch := New(dir, "person_a", time.Second, slog.Default())

	_, err := ch.Call(context.Background(), "person_b", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "person_b")
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	dir := directory.New(map[string]string{"person_b": srv.URL})
	ch := New(dir, "person_a", 50*time.Millisecond, slog.Default())

	_, err := ch.Call(context.Background(), "person_b", "hello")
	assert.ErrorIs(t, err, api.ErrTimeout)
}
