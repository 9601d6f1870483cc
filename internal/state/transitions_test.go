package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateAwaitingWallet, true},
		{StateAwaitingWallet, StateAwaitingWallet, true},
		{StateAwaitingWallet, StateIdle, true},
		{StateIdle, StateIdle, true},
		{State("unknown"), StateAwaitingWallet, false},
		{StateIdle, State("unknown"), false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, IsTransitionAllowed(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStateValid(t *testing.T) {
	assert.True(t, StateIdle.Valid())
	assert.True(t, StateAwaitingWallet.Valid())
	assert.False(t, State("waiting_wallet").Valid())
}
