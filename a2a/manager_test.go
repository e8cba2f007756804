package a2a

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertIdempotentOnID(t *testing.T) {
	m := NewTaskManager(nil)

	first := m.Upsert("t1", "s1", core.NewTextMessage("user", "hello"))
	second := m.Upsert("t1", "s1", core.NewTextMessage("user", "different content"))

	assert.Same(t, first, second)
	assert.Len(t, first.History, 1)
	assert.Equal(t, "hello", first.UserText())
	assert.Equal(t, 1, m.Len())
}

func TestCompleteAppendsExactlyOneAgentMessage(t *testing.T) {
	m := NewTaskManager(nil)
	task := m.Upsert("t1", "s1", core.NewTextMessage("user", "hi"))

	require.NoError(t, m.Complete(task, "done"))

	assert.Equal(t, core.TaskStateCompleted, task.Status)
	require.Len(t, task.History, 2)
	assert.Equal(t, "user", task.History[0].Role)
	assert.Equal(t, "agent", task.History[1].Role)
	assert.Equal(t, "done", task.ReplyText())
}

func TestCompleteTwiceFails(t *testing.T) {
	m := NewTaskManager(nil)
	task := m.Upsert("t1", "s1", core.NewTextMessage("user", "hi"))

	require.NoError(t, m.Complete(task, "first"))
	err := m.Complete(task, "second")
	require.Error(t, err)

	// The second call must not have mutated the task.
	assert.Len(t, task.History, 2)
	assert.Equal(t, "first", task.ReplyText())
}

func TestFailIsTerminal(t *testing.T) {
	m := NewTaskManager(nil)
	task := m.Upsert("t1", "s1", core.NewTextMessage("user", "hi"))

	require.NoError(t, m.Fail(task, "bad submission"))
	assert.Equal(t, core.TaskStateFailed, task.Status)
	assert.Error(t, m.Complete(task, "too late"))
}

func TestConcurrentUpsertsDistinctIDs(t *testing.T) {
	m := NewTaskManager(nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Upsert(fmt.Sprintf("t%d", i), "s1", core.NewTextMessage("user", "x"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, m.Len())
}

func TestConcurrentUpsertsSameID(t *testing.T) {
	m := NewTaskManager(nil)

	tasks := make([]*core.Task, 50)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tasks[i] = m.Upsert("same", "s1", core.NewTextMessage("user", "x"))
		}(i)
	}
	wg.Wait()

	for _, task := range tasks {
		assert.Same(t, tasks[0], task)
	}
	assert.Equal(t, 1, m.Len())
}

func TestWorkingSkipsTerminalTasks(t *testing.T) {
	m := NewTaskManager(nil)
	task := m.Upsert("t1", "s1", core.NewTextMessage("user", "hi"))
	require.NoError(t, m.Complete(task, "done"))

	m.Working(task)
	assert.Equal(t, core.TaskStateCompleted, task.Status)
}
