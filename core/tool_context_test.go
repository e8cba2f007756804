package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolContextStateStaging(t *testing.T) {
	sess := NewSession("s1")
	tc := NewToolContext(context.Background(), sess, "fc-1", nil)

	tc.SetState("corr", "abc")

	// Visible immediately through the shared session.
	v, ok := sess.GetState("corr")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	// And staged for persistence.
	assert.Equal(t, map[string]any{"corr": "abc"}, tc.StateDelta())
}

func TestToolContextReadsSharedSession(t *testing.T) {
	sess := NewSession("s1")
	sess.SetState("seen", true)

	tc := NewToolContext(context.Background(), sess, "fc-1", nil)
	v, ok := tc.GetState("seen")
	assert.True(t, ok)
	assert.Equal(t, true, v)
	assert.Equal(t, "s1", tc.SessionID())
	assert.Equal(t, "fc-1", tc.FunctionCallID())
}

func TestToolContextLoadOrStoreState(t *testing.T) {
	sess := NewSession("s1")
	tc := NewToolContext(context.Background(), sess, "fc-1", nil)

	v, loaded := tc.LoadOrStoreState("corr", "abc")
	assert.False(t, loaded)
	assert.Equal(t, "abc", v)
	assert.Equal(t, map[string]any{"corr": "abc"}, tc.StateDelta())

	// A second context on the same session loads the winner and stages
	// nothing.
	tc2 := NewToolContext(context.Background(), sess, "fc-2", nil)
	v, loaded = tc2.LoadOrStoreState("corr", "xyz")
	assert.True(t, loaded)
	assert.Equal(t, "abc", v)
	assert.Empty(t, tc2.StateDelta())
}
