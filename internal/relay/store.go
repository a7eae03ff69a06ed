package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/parley-agents/parley/pkg/api"
)

// ErrTaskNotFound is returned when a task id has no stored record.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore persists task records. The relay writes the full record on
// every state transition, so stores only need whole-record semantics.
type TaskStore interface {
	Save(ctx context.Context, task *api.Task) error
	Get(ctx context.Context, taskID string) (*api.Task, error)
	Close() error
}

// MemoryStore keeps tasks in process memory. It is the default backend
// when no store URL is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]api.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]api.Task)}
}

func (s *MemoryStore) Save(ctx context.Context, task *api.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *task
	stored.Updates = append([]api.StatusUpdate(nil), task.Updates...)
	s.tasks[task.TaskID] = stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, taskID string) (*api.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	stored.Updates = append([]api.StatusUpdate(nil), stored.Updates...)
	return &stored, nil
}

func (s *MemoryStore) Close() error { return nil }
