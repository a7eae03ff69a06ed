// Package relay owns the task lifecycle. It turns a negotiation run's
// event stream into persisted task records and status updates, fans the
// updates out to streaming subscribers, and optionally mirrors them to
// NATS.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-agents/parley/internal/negotiation"
	"github.com/parley-agents/parley/pkg/api"
)

// Relay tracks tasks for one agent.
type Relay struct {
	agentName string
	store     TaskStore
	mirror    *EventMirror
	logger    *slog.Logger

	mu   sync.Mutex
	subs map[string][]chan api.StatusUpdate
}

func New(agentName string, store TaskStore, mirror *EventMirror, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		agentName: agentName,
		store:     store,
		mirror:    mirror,
		logger:    logger,
		subs:      make(map[string][]chan api.StatusUpdate),
	}
}

// StartTask records a new task in the submitted state.
func (r *Relay) StartTask(ctx context.Context, input, sender string) (*api.Task, error) {
	now := time.Now().UTC()
	task := &api.Task{
		TaskID:    uuid.New().String(),
		State:     api.TaskStateSubmitted,
		Input:     input,
		Sender:    sender,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to record task: %w", err)
	}
	r.logger.Info("task submitted", "task_id", task.TaskID, "sender", sender)
	return task, nil
}

// Track consumes the run's events and drives the task to a terminal
// state. It returns when the task is terminal; callers who need to
// observe progress subscribe before calling Track.
func (r *Relay) Track(ctx context.Context, task *api.Task, run *negotiation.Run) {
	// Deterministic update ids: one counter per conversation direction.
	seq := make(map[string]int)

	for ev := range run.Events() {
		switch ev.Kind {
		case negotiation.EventIntermediate:
			pair := ev.From + "-" + ev.To
			seq[pair]++
			r.advance(ctx, task, api.StatusUpdate{
				TaskID:   task.TaskID,
				UpdateID: fmt.Sprintf("intermediate-%s-%s-%d", ev.From, ev.To, seq[pair]),
				State:    api.TaskStateWorking,
				From:     ev.From,
				To:       ev.To,
				Text:     ev.Text,
				At:       ev.At,
			})
		case negotiation.EventFinal:
			task.Result = ev.Text
			r.advance(ctx, task, api.StatusUpdate{
				TaskID:   task.TaskID,
				UpdateID: fmt.Sprintf("final-%s-%s", ev.From, ev.To),
				State:    api.TaskStateCompleted,
				From:     ev.From,
				To:       ev.To,
				Text:     ev.Text,
				Final:    true,
				At:       ev.At,
			})
		}
	}

	if _, err := run.Result(); err != nil {
		// A run that dies without an answer still closes its task.
		task.Error = err.Error()
		r.advance(ctx, task, api.StatusUpdate{
			TaskID:   task.TaskID,
			UpdateID: fmt.Sprintf("final-%s-%s", r.agentName, task.Sender),
			State:    api.TaskStateFailed,
			From:     r.agentName,
			To:       task.Sender,
			Text:     err.Error(),
			Final:    true,
			At:       time.Now().UTC(),
		})
		r.logger.Warn("task failed", "task_id", task.TaskID, "error", err)
	}

	r.closeSubscribers(task.TaskID)
}

// advance applies one state transition, persists it, and fans it out.
// Illegal transitions are dropped so a terminal task can never reopen.
func (r *Relay) advance(ctx context.Context, task *api.Task, update api.StatusUpdate) {
	if !validTransition(task.State, update.State) {
		r.logger.Warn("dropping illegal state transition",
			"task_id", task.TaskID, "from", task.State, "to", update.State)
		return
	}

	task.State = update.State
	task.Updates = append(task.Updates, update)
	task.UpdatedAt = time.Now().UTC()

	if err := r.store.Save(ctx, task); err != nil {
		r.logger.Error("failed to persist task", "task_id", task.TaskID, "error", err)
	}
	if r.mirror != nil {
		r.mirror.Publish(update)
	}

	r.mu.Lock()
	for _, ch := range r.subs[task.TaskID] {
		select {
		case ch <- update:
		default:
			r.logger.Warn("dropping update for slow subscriber", "task_id", task.TaskID)
		}
	}
	r.mu.Unlock()

	r.logger.Debug("task update", "task_id", task.TaskID,
		"update_id", update.UpdateID, "state", update.State)
}

func validTransition(from, to string) bool {
	switch from {
	case api.TaskStateSubmitted:
		return to == api.TaskStateWorking || to == api.TaskStateCompleted || to == api.TaskStateFailed
	case api.TaskStateWorking:
		return to == api.TaskStateWorking || to == api.TaskStateCompleted || to == api.TaskStateFailed
	default:
		return false
	}
}

// Subscribe registers for a task's status updates. The channel closes when
// the task reaches a terminal state. Call the returned func to detach early.
func (r *Relay) Subscribe(taskID string) (<-chan api.StatusUpdate, func()) {
	ch := make(chan api.StatusUpdate, 64)
	r.mu.Lock()
	r.subs[taskID] = append(r.subs[taskID], ch)
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		chans := r.subs[taskID]
		for i, c := range chans {
			if c == ch {
				r.subs[taskID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (r *Relay) closeSubscribers(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs[taskID] {
		close(ch)
	}
	delete(r.subs, taskID)
}

// GetTask returns the stored record for a task id.
func (r *Relay) GetTask(ctx context.Context, taskID string) (*api.Task, error) {
	return r.store.Get(ctx, taskID)
}
