package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateValid(t *testing.T) {
	for s := range ValidStates {
		assert.True(t, s.Valid(), "state %q", s)
	}
	assert.False(t, State("").Valid())
	assert.False(t, State("orbiting").Valid())
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryQuietNebula.Valid())
	assert.True(t, CategorySupernova.Valid())
	assert.False(t, Category("").Valid())
	assert.False(t, Category("blackHole").Valid())
}

func TestCanTransition(t *testing.T) {
	legal := map[[2]State]bool{
		{StateActive, StateCompleted}: true,
		{StateActive, StateBacklog}:   true,
		{StateActive, StateArchived}:  true,
		{StateBacklog, StateActive}:   true,
		{StateBacklog, StateVoid}:     true,
		{StateBacklog, StateArchived}: true,
		{StateVoid, StateBacklog}:     true,
	}

	all := []State{StateActive, StateBacklog, StateVoid, StateCompleted, StateArchived}
	for _, from := range all {
		for _, to := range all {
			want := legal[[2]State{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateArchived.Terminal())
	assert.False(t, StateActive.Terminal())
	assert.False(t, StateBacklog.Terminal())
	assert.False(t, StateVoid.Terminal())
}
