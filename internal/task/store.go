package task

import (
	"fmt"
	"sync"
)

// Store provides thread-safe storage of tasks keyed by identifier. It is a
// pure state container: the single source of truth for task state, with no
// download logic of its own. Reads hand out deep copies so callers can never
// observe a half-written record or mutate stored state directly.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewStore creates a Store with the specified initial capacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 128
	}
	return &Store{
		tasks: make(map[string]*Task, capacity),
	}
}

// Create adds a new task under id.
// Returns ErrExists if the identifier is already tracked.
func (s *Store) Create(id string, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		return fmt.Errorf("task %s: %w", id, ErrExists)
	}
	cp := t.Clone()
	s.tasks[id] = &cp
	return nil
}

// Get retrieves a snapshot of a single task.
// The second return value is false if the task is not tracked.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tasks[id]; ok {
		return t.Clone(), true
	}
	return Task{}, false
}

// Update atomically mutates a task through fn. Updates on different ids
// contend only on the map lock; updates on the same id are serialized.
// An absent id is a no-op and returns false: the task is no longer tracked
// and there is nothing to apply the mutation to.
func (s *Store) Update(id string, fn func(*Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// Snapshot returns a deep copy of every tracked task.
func (s *Store) Snapshot() map[string]Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Task, len(s.tasks))
	for id, t := range s.tasks {
		out[id] = t.Clone()
	}
	return out
}

// Len returns the number of tracked tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
