package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterReplacesSameName(t *testing.T) {
	r := New()
	r.Register(NewInstance(Identifier{Name: "SimpleApp", Version: "1.0.0"}))
	r.Register(NewInstance(Identifier{Name: "SimpleApp", Version: "2.0.0"}))

	inst := r.Get("SimpleApp")
	require.NotNil(t, inst)
	assert.Equal(t, "2.0.0", inst.Identifier().Version)
	assert.Len(t, r.GetAll(), 1)
}

func TestInstance_TransitionInvokesCallbackOutsideLock(t *testing.T) {
	inst := NewInstance(Identifier{Name: "SimpleApp", Version: "1.0.0"})
	var seen []State
	inst.SetStateChangeCallback(func(name string, oldState, newState State, err error) {
		// Reentrant read of the instance's own state must not deadlock.
		_ = inst.State()
		seen = append(seen, newState)
	})

	inst.Transition(StateInstalled, nil)
	inst.Transition(StateStarting, nil)
	inst.Transition(StateRunning, nil)

	assert.Equal(t, []State{StateInstalled, StateStarting, StateRunning}, seen)
	assert.True(t, inst.State().IsSuccess())
}

func TestInstance_TransitionSameStateNoCallback(t *testing.T) {
	inst := NewInstance(Identifier{Name: "SimpleApp", Version: "1.0.0"})
	calls := 0
	inst.SetStateChangeCallback(func(string, State, State, error) { calls++ })
	inst.Transition(StateNew, nil)
	assert.Equal(t, 0, calls)
}

func TestRegistry_RunningVersionsSnapshot(t *testing.T) {
	r := New()
	r.Register(NewInstance(Identifier{Name: "A", Version: "1.0.0"}))
	r.Register(NewInstance(Identifier{Name: "B", Version: "2.0.0"}))
	versions := r.RunningVersions()
	assert.Equal(t, map[string]string{"A": "1.0.0", "B": "2.0.0"}, versions)
}
