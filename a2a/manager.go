package a2a

import (
	"fmt"
	"sync"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/hupe1980/carbonmesh/logging"
)

// TaskManager owns the in-memory task store of one agent process and governs
// the submitted-to-terminal state machine. Tasks are never deleted; they live
// until process teardown.
type TaskManager struct {
	mu     sync.RWMutex
	tasks  map[string]*core.Task
	logger logging.Logger
}

// NewTaskManager creates an empty task manager.
func NewTaskManager(logger logging.Logger) *TaskManager {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &TaskManager{tasks: map[string]*core.Task{}, logger: logger}
}

// Upsert returns the existing task for id unchanged, or creates a new
// submitted task whose history holds msg. Idempotent on id: resubmission with
// the same id appends nothing.
func (m *TaskManager) Upsert(id, sessionID string, msg core.Message) *core.Task {
	m.mu.RLock()
	task, ok := m.tasks[id]
	m.mu.RUnlock()
	if ok {
		return task
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[id]; ok {
		return task
	}
	task = core.NewTask(id, sessionID, msg)
	m.tasks[id] = task
	m.logger.Debug("task.created", "task_id", id, "session_id", sessionID)
	return task
}

// Get returns the task for id if present.
func (m *TaskManager) Get(id string) (*core.Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Working marks the task as being processed. A no-op for terminal tasks.
func (m *TaskManager) Working(task *core.Task) {
	task.Lock()
	defer task.Unlock()
	if !task.Status.Terminal() {
		task.Status = core.TaskStateWorking
	}
}

// Complete finalizes the task under its exclusive lock: status becomes
// COMPLETED and exactly one agent message built from reply is appended.
// Calling Complete on an already terminal task is a precondition violation
// and returns an error without mutating the task.
func (m *TaskManager) Complete(task *core.Task, reply string) error {
	task.Lock()
	defer task.Unlock()

	if task.Status.Terminal() {
		return fmt.Errorf("task %s already in terminal state %s", task.ID, task.Status)
	}

	task.Status = core.TaskStateCompleted
	task.History = append(task.History, core.NewTextMessage("agent", reply))
	m.logger.Info("task.completed", "task_id", task.ID, "session_id", task.SessionID)
	return nil
}

// Fail marks a task whose submission itself was invalid. Like Complete it is
// terminal and appends one agent message explaining the failure. The bundled
// Server validates submissions before any task exists and so never reaches
// this transition; it is part of the lifecycle contract for embedders whose
// validation happens after upsert.
func (m *TaskManager) Fail(task *core.Task, reason string) error {
	task.Lock()
	defer task.Unlock()

	if task.Status.Terminal() {
		return fmt.Errorf("task %s already in terminal state %s", task.ID, task.Status)
	}

	task.Status = core.TaskStateFailed
	task.History = append(task.History, core.NewTextMessage("agent", reason))
	m.logger.Warn("task.failed", "task_id", task.ID, "reason", reason)
	return nil
}

// Len returns the number of tracked tasks.
func (m *TaskManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}
