package core

import (
	"sync"
	"time"
)

// TaskState enumerates the lifecycle states of a Task. A task is created in
// TaskStateSubmitted and reaches exactly one terminal state (completed or
// failed); terminal tasks are never mutated again.
type TaskState string

const (
	// TaskStateSubmitted marks a freshly created task awaiting processing.
	TaskStateSubmitted TaskState = "SUBMITTED"
	// TaskStateWorking marks a task currently being processed.
	TaskStateWorking TaskState = "WORKING"
	// TaskStateCompleted marks a task that produced a reply. Processing
	// failures are also encoded as completed tasks whose reply text carries
	// the error, so callers always receive a terminal task.
	TaskStateCompleted TaskState = "COMPLETED"
	// TaskStateFailed marks a task whose submission itself was invalid.
	TaskStateFailed TaskState = "FAILED"
)

// Terminal reports whether the state permits no further transitions.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// MessagePart is one text segment of a protocol message.
type MessagePart struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

// Message is a single entry in a task's history.
type Message struct {
	Role  string        `json:"role"` // "user" or "agent"
	Parts []MessagePart `json:"parts"`
}

// NewTextMessage builds a single-part text message for the given role.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Parts: []MessagePart{{Type: "text", Text: text}}}
}

// Text concatenates the text of all parts.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		out += p.Text
	}
	return out
}

// Task is the unit of work tracked by an agent. History is append-only: the
// first entry is the triggering user message, the last (once terminal) is the
// agent's reply. All mutation after creation happens under the task's own
// lock so readers never observe a half-appended history.
type Task struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Status    TaskState `json:"status"`
	History   []Message `json:"history"`
	CreatedAt time.Time `json:"createdAt"`

	mu sync.Mutex
}

// NewTask creates a submitted task whose history holds the triggering message.
func NewTask(id, sessionID string, msg Message) *Task {
	return &Task{
		ID:        id,
		SessionID: sessionID,
		Status:    TaskStateSubmitted,
		History:   []Message{msg},
		CreatedAt: time.Now(),
	}
}

// Lock acquires the task's exclusive mutation lock.
func (t *Task) Lock() { t.mu.Lock() }

// Unlock releases the task's mutation lock.
func (t *Task) Unlock() { t.mu.Unlock() }

// UserText returns the text of the first user message in the history.
func (t *Task) UserText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.History {
		if m.Role == "user" {
			return m.Text()
		}
	}
	return ""
}

// ReplyText returns the text of the last agent message, or "" if the task has
// not been completed yet.
func (t *Task) ReplyText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].Role == "agent" {
			return t.History[i].Text()
		}
	}
	return ""
}

// Snapshot returns a copy safe for serialization while the original may still
// be mutated by its owner. The copy is built field by field so the task's
// lock is never copied.
func (t *Task) Snapshot() *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := &Task{
		ID:        t.ID,
		SessionID: t.SessionID,
		Status:    t.Status,
		History:   make([]Message, len(t.History)),
		CreatedAt: t.CreatedAt,
	}
	copy(cp.History, t.History)
	return cp
}
