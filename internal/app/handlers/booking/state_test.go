package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_State_Transitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
		want bool
	}{
		{StateValidating, StateComputingIndex, true},
		{StateComputingIndex, StateCharging, true},
		{StateCharging, StatePersisting, true},
		{StatePersisting, StateDone, true},
		{StateValidating, StateCharging, false},
		{StateCharging, StateDone, false},
		{StatePersisting, StateCharging, false},
		{StateValidating, StateFailed, true},
		{StateCharging, StateFailed, true},
		{StatePersisting, StateFailed, true},
		{StateDone, StateFailed, false},
		{StateFailed, StateValidating, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}
