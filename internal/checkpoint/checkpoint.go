// Package checkpoint persists batch progress so an interrupted submission
// can resume without re-running contexts that already succeeded.
package checkpoint

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// Status is the lifecycle state of one context in a batch.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

const stateVersion = "1"

// State is the checkpoint for one batch. It is safe for concurrent use by
// the batch workers.
type State struct {
	mu sync.Mutex

	Version     string            `json:"version"`
	OperationID string            `json:"operation_id"`
	RunID       string            `json:"run_id,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Tasks       map[string]Task   `json:"tasks"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Task is the recorded state of one context.
type Task struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Attempts    int       `json:"attempts"`
	Output      string    `json:"output,omitempty"`
}

// Manager reads and writes checkpoint files in one directory.
type Manager struct {
	dir string
}

// NewManager returns a manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string { return m.dir }

// NewState creates an empty checkpoint for operationID.
func NewState(operationID string) *State {
	now := time.Now().UTC()
	return &State{
		Version:     stateVersion,
		OperationID: operationID,
		StartedAt:   now,
		UpdatedAt:   now,
		Tasks:       make(map[string]Task),
		Metadata:    make(map[string]string),
	}
}

func (m *Manager) path(operationID string) string {
	return filepath.Join(m.dir, operationID+".json")
}

// Save writes state atomically.
func (m *Manager) Save(state *State) error {
	if state == nil {
		return fmt.Errorf("checkpoint state is nil")
	}

	state.mu.Lock()
	state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	state.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, errors.KindIO,
			"create checkpoint directory "+m.dir, err)
	}

	tmp, err := os.CreateTemp(m.dir, "."+state.OperationID+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, errors.KindIO, "create checkpoint file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, errors.KindIO, "write checkpoint file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, errors.KindIO, "close checkpoint file", err)
	}
	if err := os.Rename(tmp.Name(), m.path(state.OperationID)); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, errors.KindIO, "replace checkpoint file", err)
	}
	return nil
}

// Load reads the checkpoint for operationID. A missing checkpoint is
// reported with os.ErrNotExist in the chain.
func (m *Manager) Load(operationID string) (*State, error) {
	data, err := os.ReadFile(m.path(operationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checkpoint not found: %s: %w", operationID, os.ErrNotExist)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, errors.KindIO, "read checkpoint file", err)
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint state: %w", err)
	}
	if state.Tasks == nil {
		state.Tasks = make(map[string]Task)
	}
	if state.Metadata == nil {
		state.Metadata = make(map[string]string)
	}
	return state, nil
}

// LoadOrNew returns the stored checkpoint for operationID, or a fresh one
// when none exists.
func (m *Manager) LoadOrNew(operationID string) (*State, bool, error) {
	state, err := m.Load(operationID)
	if err == nil {
		return state, true, nil
	}
	if stderrors.Is(err, os.ErrNotExist) {
		return NewState(operationID), false, nil
	}
	return nil, false, err
}

// Exists reports whether a checkpoint exists for operationID.
func (m *Manager) Exists(operationID string) bool {
	_, err := os.Stat(m.path(operationID))
	return err == nil
}

// Delete removes the checkpoint for operationID.
func (m *Manager) Delete(operationID string) error {
	if err := os.Remove(m.path(operationID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns the stored operation ids in lexical order.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || name[0] == '.' {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	sort.Strings(ids)
	return ids, nil
}

// Start marks taskID running and counts an attempt.
func (s *State) Start(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.task(taskID)
	now := time.Now().UTC()
	task.Status = StatusRunning
	task.StartedAt = now
	task.Attempts++
	task.Error, task.ErrorKind = "", ""
	s.Tasks[taskID] = task
	s.UpdatedAt = now
}

// Finish records the outcome of taskID. A nil err marks it succeeded with
// output as its artifact.
func (s *State) Finish(taskID, output string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.task(taskID)
	now := time.Now().UTC()
	task.CompletedAt = now
	if err != nil {
		task.Status = StatusFailed
		task.Error = err.Error()
		task.ErrorKind = errors.KindOf(err).String()
	} else {
		task.Status = StatusSucceeded
		task.Output = output
	}
	s.Tasks[taskID] = task
	s.UpdatedAt = now
}

// Skip marks taskID skipped.
func (s *State) Skip(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.task(taskID)
	task.Status = StatusSkipped
	task.CompletedAt = time.Now().UTC()
	s.Tasks[taskID] = task
}

// Register adds taskID as pending if it is not already tracked.
func (s *State) Register(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tasks[taskID] = s.task(taskID)
}

func (s *State) task(taskID string) Task {
	task, ok := s.Tasks[taskID]
	if !ok {
		task = Task{ID: taskID, Status: StatusPending}
	}
	return task
}

// Task returns a copy of the recorded task.
func (s *State) Task(taskID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.Tasks[taskID]
	return task, ok
}

// Succeeded reports whether taskID finished successfully in an earlier run.
func (s *State) Succeeded(taskID string) bool {
	task, ok := s.Task(taskID)
	return ok && task.Status == StatusSucceeded
}

// TasksWithStatus returns the ids in status, sorted.
func (s *State) TasksWithStatus(status Status) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, task := range s.Tasks {
		if task.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IsComplete reports whether every tracked task succeeded or was skipped.
func (s *State) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.Tasks {
		if task.Status != StatusSucceeded && task.Status != StatusSkipped {
			return false
		}
	}
	return len(s.Tasks) > 0
}

// Progress returns the completed fraction in [0, 1].
func (s *State) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Tasks) == 0 {
		return 0
	}
	done := 0
	for _, task := range s.Tasks {
		if task.Status == StatusSucceeded || task.Status == StatusSkipped {
			done++
		}
	}
	return float64(done) / float64(len(s.Tasks))
}

// SetMetadata records a key/value pair.
func (s *State) SetMetadata(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	s.Metadata[key] = value
}

// GetMetadata returns a metadata value.
func (s *State) GetMetadata(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.Metadata[key]
	return value, ok
}
