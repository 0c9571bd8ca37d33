package project

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/analysis"
	apperrors "stackpilot/internal/errors"
)

func TestStateInFlight(t *testing.T) {
	inFlight := map[State]bool{
		StateUninitialized: false,
		StateCreated:       false,
		StateAnalyzed:      false,
		StateDeploying:     true,
		StateDeployed:      false,
		StateDestroying:    true,
		StateDestroyed:     false,
		StateFailed:        false,
	}

	for state, expected := range inFlight {
		assert.Equal(t, expected, state.InFlight(), "state %s", state)
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateUninitialized: false,
		StateCreated:       false,
		StateAnalyzed:      false,
		StateDeploying:     false,
		StateDeployed:      false,
		StateDestroying:    false,
		StateDestroyed:     true,
		StateFailed:        true,
	}

	for state, expected := range terminal {
		assert.Equal(t, expected, state.Terminal(), "state %s", state)
	}
}

func TestSessionBegin(t *testing.T) {
	s := NewSession()

	p, err := s.Begin("my-site")
	require.NoError(t, err)
	assert.Equal(t, "my-site", p.Name)
	assert.Equal(t, StateUninitialized, p.State)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Same(t, p, s.Active())
}

func TestSessionBeginRejectsActiveProject(t *testing.T) {
	nonTerminal := []State{StateCreated, StateAnalyzed, StateDeploying, StateDeployed, StateDestroying}

	for _, state := range nonTerminal {
		t.Run(string(state), func(t *testing.T) {
			s := NewSession()
			p, err := s.Begin("first")
			require.NoError(t, err)
			p.State = state

			_, err = s.Begin("second")
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
			assert.Equal(t, "first", s.Active().Name)
		})
	}
}

func TestSessionBeginAfterTerminalState(t *testing.T) {
	for _, state := range []State{StateDestroyed, StateFailed} {
		t.Run(string(state), func(t *testing.T) {
			s := NewSession()
			p, err := s.Begin("first")
			require.NoError(t, err)
			p.State = state

			replacement, err := s.Begin("second")
			require.NoError(t, err)
			assert.Equal(t, "second", replacement.Name)
			assert.Equal(t, StateUninitialized, replacement.State)
		})
	}
}

func TestSnapshotEmptySession(t *testing.T) {
	s := NewSession()

	snap := s.Snapshot()
	assert.Empty(t, snap.Name)
	assert.Equal(t, StateUninitialized, snap.State)
	assert.Nil(t, snap.Outputs)
	assert.Nil(t, snap.CreatedAt)
}

func TestSnapshotCopiesOutputs(t *testing.T) {
	s := NewSession()
	p, err := s.Begin("my-site")
	require.NoError(t, err)

	p.State = StateDeployed
	p.Outputs = map[string]string{"originURL": "https://example.z13.web.core.windows.net"}
	p.Report = &analysis.Report{Content: "looks good"}
	p.LastError = fmt.Errorf("previous deploy timed out")

	snap := s.Snapshot()
	assert.Equal(t, "my-site", snap.Name)
	assert.Equal(t, StateDeployed, snap.State)
	assert.True(t, snap.Analyzed)
	assert.Equal(t, "previous deploy timed out", snap.LastError)

	// Mutating the snapshot must not leak into the live project
	snap.Outputs["originURL"] = "tampered"
	assert.Equal(t, "https://example.z13.web.core.windows.net", p.Outputs["originURL"])
}
